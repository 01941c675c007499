package store

import "context"

// StatusCounts summarizes what the store holds.
type StatusCounts struct {
	Records    int64 `json:"records"`
	Namespaces int64 `json:"namespaces"`
	ValueBytes int64 `json:"value_bytes"`
	Sessions   int64 `json:"sessions"`
	Commands   int64 `json:"commands"`
	FileBytes  int64 `json:"file_bytes"`
}

// GetStatusCounts retrieves all counts in a single query.
func (a *Adapter) GetStatusCounts(ctx context.Context) (*StatusCounts, error) {
	res, err := a.run(ctx, "stats", false, `
		SELECT
			(SELECT COUNT(*) FROM records),
			(SELECT COUNT(*) FROM namespaces),
			(SELECT COALESCE(SUM(length(CAST(value AS BLOB))), 0) FROM records),
			(SELECT COUNT(*) FROM sessions),
			(SELECT COUNT(*) FROM history),
			(SELECT page_count * page_size FROM pragma_page_count(), pragma_page_size())
	`)
	if err != nil {
		return nil, err
	}

	row := res.Rows[0]
	return &StatusCounts{
		Records:    asInt64(row[0]),
		Namespaces: asInt64(row[1]),
		ValueBytes: asInt64(row[2]),
		Sessions:   asInt64(row[3]),
		Commands:   asInt64(row[4]),
		FileBytes:  asInt64(row[5]),
	}, nil
}
