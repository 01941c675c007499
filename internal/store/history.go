package store

import (
	"context"

	"github.com/dotcommander/kvsh/internal/models"
)

// BeginSession records the start of an interactive run and returns its id.
func (a *Adapter) BeginSession(ctx context.Context) (string, error) {
	id := newSessionID()
	if _, err := a.run(ctx, "begin session", false, `INSERT INTO sessions (id, started_at) VALUES (?, ?)`, id, a.now().UTC()); err != nil {
		return "", err
	}
	return id, nil
}

// EndSession stamps the session's end time.
func (a *Adapter) EndSession(ctx context.Context, sessionID string) error {
	_, err := a.run(ctx, "end session", false, `UPDATE sessions SET ended_at = ? WHERE id = ? AND ended_at IS NULL`, a.now().UTC(), sessionID)
	return err
}

// RecordCommand appends one dispatched line to the session's history.
func (a *Adapter) RecordCommand(ctx context.Context, sessionID, line string, ok bool) error {
	_, err := a.run(ctx, "record command", false, `
		INSERT INTO history (session_id, line, ok, created_at)
		VALUES (?, ?, ?, ?)
	`, sessionID, line, ok, a.now().UTC())
	return err
}

// History returns the most recent limit commands across all sessions in
// chronological order.
func (a *Adapter) History(ctx context.Context, limit int) ([]models.HistoryEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	res, err := a.run(ctx, "history", false, `
		SELECT id, session_id, line, ok, created_at FROM (
			SELECT id, session_id, line, ok, created_at
			FROM history
			ORDER BY id DESC
			LIMIT ?
		) ORDER BY id ASC
	`, limit)
	if err != nil {
		return nil, err
	}

	out := make([]models.HistoryEntry, 0, len(res.Rows))
	for _, row := range res.Rows {
		out = append(out, models.HistoryEntry{
			ID:        asInt64(row[0]),
			SessionID: asString(row[1]),
			Line:      asString(row[2]),
			OK:        asInt64(row[3]) != 0,
			CreatedAt: asTime(row[4]),
		})
	}
	return out, nil
}

// Session loads one session with its command count.
func (a *Adapter) Session(ctx context.Context, sessionID string) (models.SessionInfo, error) {
	res, err := a.run(ctx, "session", false, `
		SELECT s.id, s.started_at, s.ended_at,
			(SELECT COUNT(*) FROM history h WHERE h.session_id = s.id)
		FROM sessions s
		WHERE s.id = ?
	`, sessionID)
	if err != nil {
		return models.SessionInfo{}, err
	}
	if len(res.Rows) == 0 {
		return models.SessionInfo{}, ErrNotFound
	}

	row := res.Rows[0]
	info := models.SessionInfo{
		ID:        asString(row[0]),
		StartedAt: asTime(row[1]),
		Commands:  int(asInt64(row[3])),
	}
	if row[2] != nil {
		ended := asTime(row[2])
		info.EndedAt = &ended
	}
	return info, nil
}
