package main

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/samber/lo"

	"FeedDigest/internal/domain"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

// renderRunSummary prints per-source counts, the selection and the outcome.
func renderRunSummary(record domain.RunRecord) string {
	selected := lo.CountValuesBy(record.ItemsSelected, func(item domain.ScoredItem) string { return item.Source })

	sources := lo.Keys(record.SourcesFetched)
	slices.Sort(sources)

	rows := make([][]string, 0, len(sources))
	for _, source := range sources {
		status := "ok"
		if msg, failed := record.SourceErrors[source]; failed {
			status = msg
		}
		rows = append(rows, []string{
			source,
			strconv.Itoa(record.SourcesFetched[source]),
			strconv.Itoa(selected[source]),
			status,
		})
	}

	var b strings.Builder
	b.WriteString(renderTable(
		[]string{"Source", "Fetched", "Selected", "Status"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignLeft},
	))
	b.WriteString("\n")
	fmt.Fprintf(&b, "Run %s at %s\n", record.RunID, record.RunTimestamp.Format(time.RFC3339))
	fmt.Fprintf(&b, "Selected %d items, delivery %s", len(record.ItemsSelected), record.DeliveryOutcome)
	if record.FallbackPath != "" {
		fmt.Fprintf(&b, " (%s)", record.FallbackPath)
	}
	if record.DeliveryError != "" {
		fmt.Fprintf(&b, "\nDelivery error: %s", record.DeliveryError)
	}
	if record.Error != "" {
		fmt.Fprintf(&b, "\nError: %s", record.Error)
	}
	return b.String()
}

func renderCheckResults(results []domain.FetchResult) string {
	rows := make([][]string, 0, len(results))
	for _, res := range results {
		status := "ok"
		if res.Failed() {
			status = res.Err.Error()
		}
		rows = append(rows, []string{
			res.Source,
			strconv.Itoa(len(res.Items)),
			res.Elapsed.Round(time.Millisecond).String(),
			status,
		})
	}
	return renderTable(
		[]string{"Source", "Items", "Elapsed", "Status"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignLeft},
	)
}
