package config

import "time"

// Scanner strategies understood by the feed source adapter.
const (
	ScannerReddit = "reddit"
	ScannerFeed   = "feed"
	ScannerHTML   = "html"
)

func defaultConfig() Config {
	perSource, total := 3, 15
	base, positive, negative := 0.0, 3.0, 3.0

	sources := make([]SourceConfig, 0, len(defaultSubreddits))
	for _, name := range defaultSubreddits {
		sources = append(sources, SourceConfig{Name: name, Scanner: ScannerReddit})
	}

	return Config{
		Logging: LoggingConfig{Level: "info", Format: "auto"},
		Sources: sources,
		Fetch: FetchConfig{
			MaxItems:    25,
			Timeout:     10 * time.Second,
			UserAgent:   "Mozilla/5.0 (compatible; FeedDigest/1.0)",
			MinInterval: time.Second,
		},
		Selection: SelectionConfig{
			PerSourceCap:   &perSource,
			TotalCap:       &total,
			BaseScore:      &base,
			PositiveWeight: &positive,
			NegativeWeight: &negative,
		},
		Keywords: KeywordConfig{
			Positive: []string{
				"tutorial", "guide", "how to", "learn",
				"news", "update", "release", "version",
				"tips", "tricks", "best practices",
				"open source", "free", "github",
			},
			Negative: []string{
				"job", "hire", "career", "salary",
				"political", "controversial",
				"nsfw", "spoiler",
			},
		},
		Schedule: ScheduleConfig{PushTime: "12:00", Timezone: defaultTimezone},
		Delivery: DeliveryConfig{Timeout: 10 * time.Second, Title: "Daily Feed Digest"},
		Ledger:   LedgerConfig{Retention: 90 * 24 * time.Hour},
		Storage:  StorageConfig{DataDir: "data"},
	}
}

var defaultSubreddits = []string{
	"programming",
	"technology",
	"python",
	"webdev",
	"linux",
	"opensource",
}
