// Package archive exports resolved security log entries to object storage and
// removes them from the database.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"storeadmin/api/internal/models"
)

const defaultPageSize = 500

type LogSource interface {
	ListResolvedBefore(ctx context.Context, cutoff time.Time, afterID string, limit int) ([]models.SecurityLog, error)
	DeleteByIDs(ctx context.Context, ids []string) (int64, error)
}

type Uploader interface {
	Put(ctx context.Context, key, contentType string, body []byte) error
}

type Recorder interface {
	AddArchived(n int)
}

type Archiver struct {
	logs     LogSource
	uploader Uploader
	recorder Recorder
	pageSize int
	log      zerolog.Logger
}

func NewArchiver(logs LogSource, uploader Uploader, recorder Recorder, pageSize int, log zerolog.Logger) *Archiver {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &Archiver{logs: logs, uploader: uploader, recorder: recorder, pageSize: pageSize, log: log}
}

// Run archives every resolved entry created before cutoff, one object per page.
// A page is deleted only after its object was written.
func (a *Archiver) Run(ctx context.Context, cutoff time.Time) (int, error) {
	var (
		afterID string
		total   int
	)
	for {
		page, err := a.logs.ListResolvedBefore(ctx, cutoff, afterID, a.pageSize)
		if err != nil {
			return total, fmt.Errorf("list resolved logs: %w", err)
		}
		if len(page) == 0 {
			return total, nil
		}

		body, ids, err := encodePage(page)
		if err != nil {
			return total, err
		}
		key := ObjectKey(cutoff, ids[0])
		if err := a.uploader.Put(ctx, key, "application/x-ndjson", body); err != nil {
			return total, err
		}

		deleted, err := a.logs.DeleteByIDs(ctx, ids)
		if err != nil {
			return total, fmt.Errorf("delete archived logs: %w", err)
		}
		total += int(deleted)
		if a.recorder != nil {
			a.recorder.AddArchived(int(deleted))
		}
		a.log.Info().Str("object", key).Int64("entries", deleted).Msg("security logs archived")

		afterID = ids[len(ids)-1]
		if len(page) < a.pageSize {
			return total, nil
		}
	}
}

func ObjectKey(cutoff time.Time, firstID string) string {
	return fmt.Sprintf("security-logs/%s/%s.jsonl", cutoff.UTC().Format("2006-01-02"), firstID)
}

func encodePage(page []models.SecurityLog) ([]byte, []string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	ids := make([]string, 0, len(page))
	for _, entry := range page {
		if err := enc.Encode(entry); err != nil {
			return nil, nil, fmt.Errorf("encode log %s: %w", entry.ID, err)
		}
		ids = append(ids, entry.ID)
	}
	return buf.Bytes(), ids, nil
}
