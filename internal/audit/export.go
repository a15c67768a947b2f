package audit

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// ExportFormat defines supported export formats.
type ExportFormat string

const (
	// ExportFormatCSV exports logs as comma-separated values.
	ExportFormatCSV ExportFormat = "csv"
	// ExportFormatJSON exports logs as a JSON array.
	ExportFormatJSON ExportFormat = "json"
)

// ExportOptions selects the records of one event to export.
type ExportOptions struct {
	Format  ExportFormat
	EventID string
	From    time.Time // inclusive, zero = unbounded
	To      time.Time // inclusive, zero = unbounded
	Limit   int       // 0 = no limit
}

// ExportLogs renders the audit trail of an event, newest first.
func ExportLogs(ctx context.Context, repo Repository, opts ExportOptions) ([]byte, error) {
	if opts.Format != ExportFormatCSV && opts.Format != ExportFormatJSON {
		return nil, fmt.Errorf("unsupported export format: %s", opts.Format)
	}
	if opts.EventID == "" {
		return nil, ErrInvalidEntityID
	}

	logs, err := repo.QueryByEntity(ctx, EntityEvent, opts.EventID, 0)
	if err != nil {
		return nil, fmt.Errorf("query audit logs: %w", err)
	}

	filtered := logs[:0]
	for _, l := range logs {
		if !opts.From.IsZero() && l.CreatedAt.Before(opts.From) {
			continue
		}
		if !opts.To.IsZero() && l.CreatedAt.After(opts.To) {
			continue
		}
		filtered = append(filtered, l)
	}
	if opts.Limit > 0 && len(filtered) > opts.Limit {
		filtered = filtered[:opts.Limit]
	}

	if opts.Format == ExportFormatCSV {
		return exportToCSV(filtered)
	}
	data, err := json.MarshalIndent(filtered, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal audit logs: %w", err)
	}
	return data, nil
}

func exportToCSV(logs []*Log) ([]byte, error) {
	buf := new(bytes.Buffer)
	writer := csv.NewWriter(buf)

	header := []string{"id", "timestamp", "actor_id", "action", "outcome", "count", "request_id", "ip_address", "user_agent", "previous_hash"}
	if err := writer.Write(header); err != nil {
		return nil, fmt.Errorf("write CSV header: %w", err)
	}
	for _, l := range logs {
		row := []string{
			l.ID,
			l.CreatedAt.Format(time.RFC3339),
			l.ActorID,
			l.Action,
			l.Outcome,
			strconv.Itoa(l.Count),
			l.RequestID,
			l.IPAddress,
			l.UserAgent,
			l.PreviousHash,
		}
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("write CSV row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}
