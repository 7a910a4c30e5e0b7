package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var sourceNameExpr = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,64}$`)

// ConfigError reports a missing or invalid setting. It is fatal at startup.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Field, e.Reason)
}

// Validate checks every setting that matters for correctness and binds the
// derived schedule values. Nothing here is silently defaulted.
func (c *Config) Validate() error {
	if len(c.Sources) == 0 {
		return &ConfigError{Field: "sources", Reason: "at least one source is required"}
	}
	seen := make(map[string]struct{}, len(c.Sources))
	for i, src := range c.Sources {
		field := fmt.Sprintf("sources[%d]", i)
		if !sourceNameExpr.MatchString(src.Name) {
			return &ConfigError{Field: field + ".name", Reason: fmt.Sprintf("invalid source name %q", src.Name)}
		}
		key := strings.ToLower(src.Name)
		if _, dup := seen[key]; dup {
			return &ConfigError{Field: field + ".name", Reason: fmt.Sprintf("duplicate source %q", src.Name)}
		}
		seen[key] = struct{}{}

		switch src.Scanner {
		case ScannerReddit:
		case ScannerFeed, ScannerHTML:
			if strings.TrimSpace(src.URL) == "" {
				return &ConfigError{Field: field + ".url", Reason: fmt.Sprintf("scanner %s requires a url", src.Scanner)}
			}
		default:
			return &ConfigError{Field: field + ".scanner", Reason: fmt.Sprintf("unknown scanner %q", src.Scanner)}
		}
		if src.URL != "" {
			if err := validateHTTPURL(src.URL); err != nil {
				return &ConfigError{Field: field + ".url", Reason: err.Error()}
			}
		}
		if src.MaxItems <= 0 {
			return &ConfigError{Field: field + ".max_items", Reason: "must be positive"}
		}
	}

	if c.Fetch.Timeout <= 0 {
		return &ConfigError{Field: "fetch.timeout", Reason: "must be positive"}
	}
	if c.Fetch.MinInterval < 0 {
		return &ConfigError{Field: "fetch.min_interval", Reason: "must not be negative"}
	}
	if c.Fetch.CacheTTL < 0 {
		return &ConfigError{Field: "fetch.cache_ttl", Reason: "must not be negative"}
	}
	if c.Fetch.ProxyURL != "" {
		if err := validateHTTPURL(c.Fetch.ProxyURL); err != nil {
			return &ConfigError{Field: "fetch.proxy_url", Reason: err.Error()}
		}
	}

	if c.Selection.PerSourceCapValue() < 0 {
		return &ConfigError{Field: "selection.per_source_cap", Reason: "must not be negative"}
	}
	if c.Selection.TotalCapValue() < 0 {
		return &ConfigError{Field: "selection.total_cap", Reason: "must not be negative"}
	}

	if err := c.bindSchedule(); err != nil {
		return err
	}

	if c.Delivery.Timeout <= 0 {
		return &ConfigError{Field: "delivery.timeout", Reason: "must be positive"}
	}
	if c.Delivery.WebhookURL != "" {
		if err := validateHTTPURL(c.Delivery.WebhookURL); err != nil {
			return &ConfigError{Field: "delivery.webhook_url", Reason: err.Error()}
		}
	}

	if c.Ledger.Retention < 24*time.Hour {
		return &ConfigError{Field: "ledger.retention", Reason: "must be at least 24h"}
	}

	if strings.TrimSpace(c.Storage.DataDir) == "" {
		return &ConfigError{Field: "storage.data_dir", Reason: "must not be empty"}
	}

	switch strings.ToLower(c.Logging.Format) {
	case "", "auto", "text", "json":
	default:
		return &ConfigError{Field: "logging.format", Reason: fmt.Sprintf("unknown format %q", c.Logging.Format)}
	}

	return nil
}

func (c *Config) bindSchedule() error {
	hour, minute, err := ParseClock(c.Schedule.PushTime)
	if err != nil {
		return &ConfigError{Field: "schedule.push_time", Reason: err.Error()}
	}

	tz := c.Schedule.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return &ConfigError{Field: "schedule.timezone", Reason: fmt.Sprintf("unknown timezone %q", tz)}
	}

	c.Schedule.hour = hour
	c.Schedule.minute = minute
	c.Schedule.location = loc
	return nil
}

// ParseClock parses a 24h "HH:MM" clock time.
func ParseClock(raw string) (int, int, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) != 2 || len(parts[1]) != 2 || len(parts[0]) == 0 || len(parts[0]) > 2 {
		return 0, 0, fmt.Errorf("invalid clock time %q (want HH:MM)", raw)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", raw)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", raw)
	}
	return hour, minute, nil
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url %q: %v", raw, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid url %q: want http(s)://host", raw)
	}
	return nil
}
