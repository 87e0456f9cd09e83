package email

import "time"

// TimestampLayout matches the ISO-8601 strings already present in stored state.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// SyncResult is the output of one completed sync. It replaces the previous
// result as a whole.
type SyncResult struct {
	Records   []MessageRecord
	FetchedAt time.Time
}

func (r SyncResult) Stats() Stats {
	return Stats{
		TotalEmails: len(r.Records),
		Timestamp:   FormatTimestamp(r.FetchedAt),
	}
}

type Stats struct {
	TotalEmails int    `json:"totalEmails"`
	Timestamp   string `json:"timestamp"`
}

// Counters is the live estimate kept apart from sync results.
// Total always equals Inbox + Sent.
type Counters struct {
	Inbox int `json:"inboxCount"`
	Sent  int `json:"sentCount"`
	Total int `json:"total"`
}

func NewCounters(inbox, sent int) Counters {
	return Counters{Inbox: inbox, Sent: sent, Total: inbox + sent}
}

// State is everything persisted, as seen by readers.
type State struct {
	Records   []MessageRecord
	Stats     Stats
	Counters  Counters
	LastReset string
}

// SyncStats summarizes a completed run for its caller.
type SyncStats struct {
	RunID     string
	Count     int
	FetchedAt time.Time
}

// SyncResponse is the reply to a sync trigger.
type SyncResponse struct {
	Status    string `json:"status"`
	Detail    string `json:"detail,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

const (
	StatusOK    = "ok"
	StatusError = "error"
)

func ResponseFor(err error) SyncResponse {
	if err == nil {
		return SyncResponse{Status: StatusOK}
	}
	return SyncResponse{
		Status:    StatusError,
		Detail:    err.Error(),
		Retryable: IsRetryable(err),
	}
}
