// Package eventlog is the minimal in-memory activity log described in
// §3.1: an append-only list of {activity, started_at, ended_at, exit_code}
// entries for one invocation, flushed through the hooks publish sink on
// session close. Deliberately minimal — no broader telemetry schema is
// specified, per the §1 non-goal.
package eventlog

import (
	"encoding/json"
	"time"
)

// Entry records one timed activity within a single invocation.
type Entry struct {
	Activity  string    `json:"activity"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at,omitempty"`
	ExitCode  int       `json:"exit_code"`
}

// Log is an append-only, in-memory event log for one invocation.
type Log struct {
	entries []Entry
}

// New returns an empty Log.
func New() *Log {
	return &Log{}
}

// Start begins timing an activity and returns a function that ends it,
// recording the exit code.
func (l *Log) Start(activity string) func(exitCode int) {
	entry := Entry{Activity: activity, StartedAt: time.Now()}
	idx := len(l.entries)
	l.entries = append(l.entries, entry)

	return func(exitCode int) {
		l.entries[idx].EndedAt = time.Now()
		l.entries[idx].ExitCode = exitCode
	}
}

// Entries returns a copy of the recorded entries.
func (l *Log) Entries() []Entry {
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Publisher is anything that can accept an event log payload: the
// hooks.PublishTarget resolved to either an HTTP POST or a bin invocation.
type Publisher interface {
	Publish(payload []byte) error
}

// Flush serializes the log and hands it to pub, if one is configured. A
// nil Publisher is a no-op, matching §4.3's "optional terminal sink".
func (l *Log) Flush(pub Publisher) error {
	if pub == nil || len(l.entries) == 0 {
		return nil
	}

	payload, err := json.Marshal(l.entries)
	if err != nil {
		return err
	}
	return pub.Publish(payload)
}
