package store

import (
	"context"
	"fmt"
	"strings"
)

// Diagnostic represents a single consistency check finding.
type Diagnostic struct {
	Level           string `json:"level"` // "warning" or "error"
	Code            string `json:"code"`
	Message         string `json:"message"`
	SuggestedAction string `json:"suggested_action,omitempty"`
}

// VerifyReport is the outcome of a checksum pass over all records.
type VerifyReport struct {
	Checked int      `json:"checked"`
	Corrupt []string `json:"corrupt,omitempty"`
}

// OK reports whether every record matched its checksum.
func (r VerifyReport) OK() bool {
	return len(r.Corrupt) == 0
}

// Verify recomputes each record's checksum across all namespaces and reports
// the keys whose stored value no longer matches, qualified by namespace.
func (a *Adapter) Verify(ctx context.Context) (VerifyReport, error) {
	res, err := a.run(ctx, "check", false, `SELECT ns, key, value, checksum FROM records ORDER BY ns, key`)
	if err != nil {
		return VerifyReport{}, err
	}

	var report VerifyReport
	for _, row := range res.Rows {
		report.Checked++
		if Checksum(asString(row[2])) != asString(row[3]) {
			report.Corrupt = append(report.Corrupt, QualifiedKey(asString(row[0]), asString(row[1])))
		}
	}
	return report, nil
}

// RunDiagnostics performs consistency checks and returns findings.
func (a *Adapter) RunDiagnostics(ctx context.Context) ([]Diagnostic, error) {
	var diags []Diagnostic

	report, err := a.Verify(ctx)
	if err != nil {
		return nil, fmt.Errorf("checksum check: %w", err)
	}
	for _, qualified := range report.Corrupt {
		action := "rewrite it with: put " + qualified + " <value>"
		if ns, key, ok := strings.Cut(qualified, "/"); ok {
			action = fmt.Sprintf("rewrite it with: use %s, then put %s <value>", ns, key)
		}
		diags = append(diags, Diagnostic{
			Level:           "error",
			Code:            "CHECKSUM_MISMATCH",
			Message:         fmt.Sprintf("record %q does not match its stored checksum", qualified),
			SuggestedAction: action,
		})
	}

	res, err := a.run(ctx, "doctor", false, `PRAGMA quick_check`)
	if err != nil {
		return nil, fmt.Errorf("integrity check: %w", err)
	}
	for _, row := range res.Rows {
		if msg := asString(row[0]); msg != "ok" {
			diags = append(diags, Diagnostic{
				Level:   "error",
				Code:    "INTEGRITY",
				Message: msg,
			})
		}
	}

	res, err = a.run(ctx, "doctor", false, `SELECT COUNT(*) FROM sessions WHERE ended_at IS NULL`)
	if err != nil {
		return nil, fmt.Errorf("open sessions check: %w", err)
	}
	// One open session is the caller's own when run from inside a session.
	if n := asInt64(res.Rows[0][0]); n > 1 {
		diags = append(diags, Diagnostic{
			Level:           "warning",
			Code:            "UNCLOSED_SESSIONS",
			Message:         fmt.Sprintf("%d sessions never recorded an end time", n),
			SuggestedAction: "none; sessions killed with SIGKILL cannot record their end",
		})
	}

	return diags, nil
}
