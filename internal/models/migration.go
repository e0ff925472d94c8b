package models

import "time"

// Outcomes of a single migration check, used as metric labels and in the
// journal.
const (
	ResultMigrated  = "migrated"
	ResultUpToDate  = "up_to_date"
	ResultUnchanged = "unchanged"
	ResultSkipped   = "skipped"
	ResultFailed    = "failed"
)

// FileResult is the outcome of migrating one file in a batch.
type FileResult struct {
	Path       string `json:"path"`
	Type       string `json:"type,omitempty"`
	Dependency string `json:"dependency"`
	From       string `json:"from,omitempty"`
	To         string `json:"to,omitempty"`
	Steps      int    `json:"steps"`
	Result     string `json:"result"`
	Saved      bool   `json:"saved"`
	ErrorKind  string `json:"error_kind,omitempty"`
	Error      string `json:"error,omitempty"`
	Err        error  `json:"-"`
}

// BatchSummary counts the results of a batch by outcome.
type BatchSummary struct {
	RunID   string         `json:"run_id"`
	Total   int            `json:"total"`
	Results map[string]int `json:"results"`
	DryRun  bool           `json:"dry_run"`
}

// JournalEntry is one recorded migration check.
type JournalEntry struct {
	ID         int64     `json:"id"`
	RunID      string    `json:"run_id"`
	Path       string    `json:"path"`
	Type       string    `json:"type,omitempty"`
	Dependency string    `json:"dependency"`
	From       string    `json:"from,omitempty"`
	To         string    `json:"to,omitempty"`
	Steps      int       `json:"steps"`
	Result     string    `json:"result"`
	ErrorKind  string    `json:"error_kind,omitempty"`
	Error      string    `json:"error,omitempty"`
	DryRun     bool      `json:"dry_run"`
	CreatedAt  time.Time `json:"created_at"`
}

// JournalQueryOpts holds filters for querying the journal.
type JournalQueryOpts struct {
	Path   string
	RunID  string
	Result string
	Limit  int
}
