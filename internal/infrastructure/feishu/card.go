package feishu

import (
	"encoding/json"
	"fmt"
	"strings"

	"FeedDigest/internal/domain"
)

const timeLayout = "2006-01-02 15:04:05"

type message struct {
	MsgType string `json:"msg_type"`
	Card    card   `json:"card"`
}

type card struct {
	Config   cardConfig `json:"config"`
	Header   cardHeader `json:"header"`
	Elements []element  `json:"elements"`
}

type cardConfig struct {
	WideScreenMode bool `json:"wide_screen_mode"`
}

type cardHeader struct {
	Title    text   `json:"title"`
	Template string `json:"template"`
}

type text struct {
	Tag     string `json:"tag"`
	Content string `json:"content"`
}

type element struct {
	Tag      string `json:"tag"`
	Text     *text  `json:"text,omitempty"`
	Elements []text `json:"elements,omitempty"`
}

// Encode renders the digest as an interactive card message. The same bytes
// are posted to the webhook or written to the fallback directory.
func Encode(p domain.Payload) ([]byte, error) {
	elements := make([]element, 0, len(p.Entries)+2)
	elements = append(elements, element{
		Tag:  "div",
		Text: &text{Tag: "lark_md", Content: statsBlock(p)},
	})

	for _, entry := range p.Entries {
		content := fmt.Sprintf("%d. **%s**\n   %s", entry.Index, escape(entry.Title), escape(entry.Source))
		if entry.Link != "" {
			content += fmt.Sprintf("\n   [Open](%s)", linkTarget(entry.Link))
		}
		elements = append(elements, element{
			Tag:  "div",
			Text: &text{Tag: "lark_md", Content: content},
		})
	}

	elements = append(elements, element{
		Tag:      "note",
		Elements: []text{{Tag: "plain_text", Content: "Generated at " + p.GeneratedAt.Format(timeLayout)}},
	})

	msg := message{
		MsgType: "interactive",
		Card: card{
			Config:   cardConfig{WideScreenMode: true},
			Header:   cardHeader{Title: text{Tag: "plain_text", Content: p.Title}, Template: "blue"},
			Elements: elements,
		},
	}

	body, err := json.MarshalIndent(msg, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal card: %w", err)
	}
	return body, nil
}

func statsBlock(p domain.Payload) string {
	var b strings.Builder
	b.WriteString("**Sources**\n")
	for _, s := range p.Stats {
		fmt.Fprintf(&b, "%s: %d\n", s.Source, s.Count)
	}
	b.WriteString("\n")
	b.WriteString(p.Summary)
	return b.String()
}

var (
	markdownEscaper = strings.NewReplacer(
		"\\", "\\\\",
		"*", "\\*",
		"_", "\\_",
		"~", "\\~",
		"`", "\\`",
		"[", "\\[",
		"]", "\\]",
	)
	linkEscaper = strings.NewReplacer("(", "%28", ")", "%29", " ", "%20")
)

// escape keeps feed text from being read as lark_md markup.
func escape(s string) string {
	return markdownEscaper.Replace(s)
}

// linkTarget percent-encodes characters that would end a markdown link early.
func linkTarget(link string) string {
	return linkEscaper.Replace(link)
}
