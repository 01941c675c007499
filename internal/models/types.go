package models

import "time"

// Record is one key/value row in the records table.
type Record struct {
	Namespace string    `json:"namespace"`
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	Checksum  string    `json:"checksum"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SessionInfo describes one interactive run.
type SessionInfo struct {
	ID        string     `json:"id"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	Commands  int        `json:"commands"`
}

// HistoryEntry is one dispatched command line.
type HistoryEntry struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	Line      string    `json:"line"`
	OK        bool      `json:"ok"`
	CreatedAt time.Time `json:"created_at"`
}
