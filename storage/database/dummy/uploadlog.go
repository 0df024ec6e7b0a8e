package dummydb

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/campusgrid/core"
	"github.com/trezcool/campusgrid/core/ingest"
)

var errUploadLogNotFound = errors.New("upload log not found")

type uploadLogTable struct {
	sync.RWMutex
	table map[string]*ingest.UploadLog
}

type uploadLogRepository struct {
	db *uploadLogTable
}

var _ ingest.UploadLogRepository = (*uploadLogRepository)(nil) // interface compliance check

func NewUploadLogRepository(db *DB) ingest.UploadLogRepository {
	return &uploadLogRepository{db: db.uploadLog}
}

func (repo *uploadLogRepository) CreateUploadLog(_ context.Context, log ingest.UploadLog, _ ...core.DBExecutor) (ingest.UploadLog, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, exists := repo.db.table[log.ID]; exists {
		return ingest.UploadLog{}, errors.Errorf("upload log %s already exists", log.ID)
	}
	repo.db.table[log.ID] = &log
	return log, nil
}

func (repo *uploadLogRepository) UpdateUploadLog(_ context.Context, log ingest.UploadLog, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, exists := repo.db.table[log.ID]; !exists {
		return errUploadLogNotFound
	}
	repo.db.table[log.ID] = &log
	return nil
}

func (repo *uploadLogRepository) QueryUploadLogs(
	_ context.Context,
	filter ingest.UploadLogFilter,
	ordering []core.DBOrdering,
	_ ...core.DBExecutor,
) ([]ingest.UploadLog, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	logs := make([]ingest.UploadLog, 0, len(repo.db.table))
	for _, l := range repo.db.table {
		if filter.Domain != "" && l.Domain != filter.Domain {
			continue
		}
		if filter.Status != "" && l.Status != filter.Status {
			continue
		}
		logs = append(logs, *l)
	}

	sort.SliceStable(logs, func(i, j int) bool {
		for _, ord := range ordering {
			c := compareLogs(logs[i], logs[j], ord.Field)
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return logs[i].ID < logs[j].ID
	})

	if filter.Limit > 0 && len(logs) > filter.Limit {
		logs = logs[:filter.Limit]
	}
	return logs, nil
}

func compareLogs(a, b ingest.UploadLog, field string) int {
	switch field {
	case "started_at":
		return compareInt64(a.StartedAt.UnixNano(), b.StartedAt.UnixNano())
	case "finished_at":
		return compareInt64(a.FinishedAt.Time.UnixNano(), b.FinishedAt.Time.UnixNano())
	case "domain":
		return strings.Compare(a.Domain, b.Domain)
	case "status":
		return strings.Compare(a.Status, b.Status)
	case "rows_ingested":
		return compareInt64(int64(a.RowsIngested), int64(b.RowsIngested))
	}
	return 0
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
