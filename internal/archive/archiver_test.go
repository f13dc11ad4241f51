package archive

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storeadmin/api/internal/models"
)

type memoryLogs struct {
	entries map[string]models.SecurityLog
}

func (m *memoryLogs) ListResolvedBefore(_ context.Context, cutoff time.Time, afterID string, limit int) ([]models.SecurityLog, error) {
	var out []models.SecurityLog
	for _, e := range m.entries {
		if e.IsResolved && e.CreatedAt.Before(cutoff) && e.ID > afterID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memoryLogs) DeleteByIDs(_ context.Context, ids []string) (int64, error) {
	var n int64
	for _, id := range ids {
		if _, ok := m.entries[id]; ok {
			delete(m.entries, id)
			n++
		}
	}
	return n, nil
}

type memoryBucket struct {
	objects map[string][]byte
	fail    bool
}

func (b *memoryBucket) Put(_ context.Context, key, _ string, body []byte) error {
	if b.fail {
		return errors.New("bucket unavailable")
	}
	b.objects[key] = append([]byte(nil), body...)
	return nil
}

type archivedCounter struct{ n int }

func (c *archivedCounter) AddArchived(n int) { c.n += n }

var cutoff = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func seed() *memoryLogs {
	logs := &memoryLogs{entries: map[string]models.SecurityLog{}}
	old := cutoff.Add(-48 * time.Hour)
	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("log-%02d", i)
		logs.entries[id] = models.SecurityLog{ID: id, EventType: models.EventLoginFailed, RiskLevel: models.RiskMedium, IsResolved: true, CreatedAt: old}
	}
	logs.entries["open"] = models.SecurityLog{ID: "open", EventType: models.EventSuspiciousActivity, RiskLevel: models.RiskHigh, CreatedAt: old}
	logs.entries["recent"] = models.SecurityLog{ID: "recent", EventType: models.EventLogout, RiskLevel: models.RiskLow, IsResolved: true, CreatedAt: cutoff.Add(time.Hour)}
	return logs
}

func TestRunArchivesResolvedEntriesInPages(t *testing.T) {
	logs := seed()
	bucket := &memoryBucket{objects: map[string][]byte{}}
	counter := &archivedCounter{}

	n, err := NewArchiver(logs, bucket, counter, 2, zerolog.Nop()).Run(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, 5, counter.n)
	assert.Len(t, bucket.objects, 3)

	assert.Contains(t, logs.entries, "open")
	assert.Contains(t, logs.entries, "recent")
	assert.Len(t, logs.entries, 2)

	first := bucket.objects[ObjectKey(cutoff, "log-00")]
	require.NotNil(t, first)
	scanner := bufio.NewScanner(bytes.NewReader(first))
	var ids []string
	for scanner.Scan() {
		var entry models.SecurityLog
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
		ids = append(ids, entry.ID)
	}
	assert.Equal(t, []string{"log-00", "log-01"}, ids)
}

func TestRunKeepsEntriesWhenUploadFails(t *testing.T) {
	logs := seed()
	bucket := &memoryBucket{objects: map[string][]byte{}, fail: true}

	n, err := NewArchiver(logs, bucket, nil, 10, zerolog.Nop()).Run(context.Background(), cutoff)
	require.Error(t, err)
	assert.Zero(t, n)
	assert.Len(t, logs.entries, 7)
}

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "security-logs/2024-06-01/abc.jsonl", ObjectKey(cutoff, "abc"))
}
