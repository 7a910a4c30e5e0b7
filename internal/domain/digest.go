package domain

import "time"

// Payload is the composed digest message, independent of any wire format.
type Payload struct {
	Title       string        `json:"title"`
	Summary     string        `json:"summary"`
	GeneratedAt time.Time     `json:"generated_at"`
	Stats       []SourceCount `json:"stats"`
	Entries     []DigestEntry `json:"entries"`
}

// DigestEntry is one selected item as shown in the digest.
type DigestEntry struct {
	Index  int     `json:"index"`
	Source string  `json:"source"`
	Title  string  `json:"title"`
	Link   string  `json:"link"`
	Score  float64 `json:"score"`
}

// Empty reports whether the digest carries no selected items.
func (p Payload) Empty() bool {
	return len(p.Entries) == 0
}
