package boiledrepos

import (
	"context"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/volatiletech/sqlboiler/v4/boil"
	"github.com/volatiletech/sqlboiler/v4/queries"
	"github.com/volatiletech/strmangle"

	"github.com/trezcool/campusgrid/core"
	"github.com/trezcool/campusgrid/core/ingest"
)

var uploadLogColumns = []string{
	"id", "domain", "table_name", "file_name", "mode", "status",
	"rows_ingested", "error", "error_kind", "started_at", "finished_at",
}

type uploadLogRepository struct {
	exec core.DBExecutor
}

var _ ingest.UploadLogRepository = (*uploadLogRepository)(nil) // interface compliance check

func NewUploadLogRepository(exec core.DBExecutor) *uploadLogRepository {
	return &uploadLogRepository{exec: exec}
}

func (repo uploadLogRepository) getExec(svcExec []core.DBExecutor) boil.ContextExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return repo.exec
}

func (repo uploadLogRepository) CreateUploadLog(ctx context.Context, log ingest.UploadLog, exec ...core.DBExecutor) (ingest.UploadLog, error) {
	q := "INSERT INTO upload_logs (" + strings.Join(uploadLogColumns, ", ") + ") VALUES (" +
		strmangle.Placeholders(true, len(uploadLogColumns), 1, 1) + ")"
	_, err := queries.Raw(q,
		log.ID, log.Domain, log.TableName, log.FileName, log.Mode, log.Status,
		log.RowsIngested, log.Error, log.ErrorKind, log.StartedAt.UTC(), log.FinishedAt,
	).ExecContext(ctx, repo.getExec(exec))
	if err != nil {
		return ingest.UploadLog{}, errors.Wrap(err, "inserting upload log")
	}
	return log, nil
}

func (repo uploadLogRepository) UpdateUploadLog(ctx context.Context, log ingest.UploadLog, exec ...core.DBExecutor) error {
	q := `UPDATE upload_logs SET status = $1, rows_ingested = $2, error = $3, error_kind = $4, finished_at = $5 WHERE id = $6`
	res, err := queries.Raw(q, log.Status, log.RowsIngested, log.Error, log.ErrorKind, log.FinishedAt, log.ID).
		ExecContext(ctx, repo.getExec(exec))
	if err != nil {
		return errors.Wrap(err, "updating upload log")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.Errorf("upload log %q not found", log.ID)
	}
	return nil
}

func (repo uploadLogRepository) QueryUploadLogs(
	ctx context.Context,
	filter ingest.UploadLogFilter,
	ordering []core.DBOrdering,
	exec ...core.DBExecutor,
) ([]ingest.UploadLog, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.Domain != "" {
		args = append(args, filter.Domain)
		where = append(where, "domain = $"+strconv.Itoa(len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, "status = $"+strconv.Itoa(len(args)))
	}

	q := new(strings.Builder)
	q.WriteString("SELECT " + strings.Join(uploadLogColumns, ", ") + " FROM upload_logs")
	if len(where) > 0 {
		q.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	if len(ordering) > 0 {
		orders := make([]string, 0, len(ordering))
		for _, ord := range ordering {
			orders = append(orders, ord.String())
		}
		q.WriteString(" ORDER BY " + strings.Join(orders, ", "))
	}
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		q.WriteString(" LIMIT $" + strconv.Itoa(len(args)))
	}

	var logs []ingest.UploadLog
	if err := queries.Raw(q.String(), args...).Bind(ctx, repo.getExec(exec), &logs); err != nil {
		return nil, errors.Wrap(err, "querying upload logs")
	}
	if logs == nil {
		logs = make([]ingest.UploadLog, 0)
	}
	return logs, nil
}
