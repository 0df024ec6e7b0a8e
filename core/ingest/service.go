package ingest

import (
	"context"
	"database/sql"
	"expvar"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"golang.org/x/sync/semaphore"

	"github.com/trezcool/campusgrid/core"
)

// ingestions counts ingestion runs per "<domain>.<outcome>", exposed under /debug/vars.
var ingestions = expvar.NewMap("ingestions")

// ErrTableNotFound is returned when reading a table that was never ingested.
var ErrTableNotFound = errors.New("table not found")

// allowed upload log orderings
var uploadLogOrderFields = map[string]bool{
	"started_at":    true,
	"finished_at":   true,
	"domain":        true,
	"status":        true,
	"rows_ingested": true,
}

type (
	// Store opens transactions on the relational store holding the inferred tables.
	Store interface {
		Begin(ctx context.Context) (core.DBTransactor, error)
		// LockTable takes a transaction-scoped lock on `table`, serializing runs across processes.
		LockTable(ctx context.Context, tx core.DBExecutor, table string) error
	}

	UploadLogRepository interface {
		CreateUploadLog(ctx context.Context, log UploadLog, exec ...core.DBExecutor) (UploadLog, error)
		UpdateUploadLog(ctx context.Context, log UploadLog, exec ...core.DBExecutor) error
		QueryUploadLogs(ctx context.Context, filter UploadLogFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]UploadLog, error)
	}

	// TableReader reads back ingested tables. Unknown tables return ErrTableNotFound.
	TableReader interface {
		ReadTable(ctx context.Context, table string, exec ...core.DBExecutor) (TableData, error)
	}

	// SheetParser reads the sheet of an uploaded file. `name` carries the extension used to pick the format.
	SheetParser func(name string, r io.Reader) (Sheet, error)

	// Publisher notifies other services (eg. the calendar/reminder service) of ingestion runs.
	Publisher interface {
		Publish(ctx context.Context, evt Event) error
	}

	ServiceInterface interface {
		Ingest(ctx context.Context, req Request) (Result, error)
		Domains() []Domain
		QueryUploadLogs(ctx context.Context, filter UploadLogFilter, ordering []core.DBOrdering) ([]UploadLog, error)
		ReadTable(ctx context.Context, domain, filename string) (TableData, error)
	}

	ServiceDeps struct {
		Conf     *core.Config
		Logger   core.Logger
		Store    Store
		Logs     UploadLogRepository
		Tables   TableReader
		Events   Publisher
		Registry *Registry   // defaults to the DefaultDomains
		Parser   SheetParser // parses Request.Source
	}

	Service struct {
		registry *Registry
		store    Store
		logs     UploadLogRepository
		tables   TableReader
		events   Publisher
		parser   SheetParser
		logger   core.Logger
		loader   *Loader
		layout   RosterLayout
		timeout  time.Duration
		sem      *semaphore.Weighted
		locks    *tableLocks
		now      func() time.Time
	}
)

var _ ServiceInterface = (*Service)(nil) // interface compliance check

func NewService(deps ServiceDeps) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(deps.Conf, "Conf"),
		vala.IsNotNil(deps.Logger, "Logger"),
		vala.IsNotNil(deps.Store, "Store"),
		vala.IsNotNil(deps.Logs, "Logs"),
		vala.IsNotNil(deps.Tables, "Tables"),
		vala.IsNotNil(deps.Events, "Events"),
	).CheckAndPanic()

	conf := deps.Conf.Ingest
	vala.BeginValidation().Validate(
		vala.GreaterThan(int(conf.MaxConcurrent), 0, "Ingest.MaxConcurrent"),
		vala.GreaterThan(int(conf.Timeout), 0, "Ingest.Timeout"),
	).CheckAndPanic()

	reg := deps.Registry
	if reg == nil {
		reg = NewRegistry(DefaultDomains()...)
	}

	return &Service{
		registry: reg,
		store:    deps.Store,
		logs:     deps.Logs,
		tables:   deps.Tables,
		events:   deps.Events,
		parser:   deps.Parser,
		logger:   deps.Logger,
		loader:   NewLoader(conf.BatchSize, deps.Logger, deps.Conf.Debug),
		layout: RosterLayout{
			WeekColumn: conf.RosterWeekColumn,
			TeamColumn: conf.RosterTeamColumn,
			Anchor:     conf.RosterAnchor,
		},
		timeout: conf.Timeout,
		sem:     semaphore.NewWeighted(conf.MaxConcurrent),
		locks:   newTableLocks(),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (svc *Service) Domains() []Domain {
	return svc.registry.All()
}

// Ingest runs the ingestion pipeline of one uploaded sheet:
// parse the source file if any, infer schema, normalize rows, then (re)create the table and bulk-load it in a single transaction.
// Runs on the same table never interleave.
func (svc *Service) Ingest(ctx context.Context, req Request) (Result, error) {
	domain, err := svc.registry.Lookup(req.Domain)
	if err != nil {
		return Result{}, err
	}

	mode := domain.Mode
	if req.Mode != "" {
		if !req.Mode.Valid() {
			return Result{}, core.NewValidationError(
				errors.Errorf("invalid mode %q", req.Mode),
				core.FieldError{Field: "mode", Error: "must be one of: ensure, replace"},
			)
		}
		mode = req.Mode
	}

	table, err := TableName(domain, req.Filename)
	if err != nil {
		return Result{}, err
	}

	res := Result{RunID: uuid.New().String(), Table: table, Mode: mode}
	fileName := req.Filename
	if req.Source != nil {
		fileName = req.SourceName
	}
	entry := svc.startLog(ctx, res, domain, fileName)

	runCtx, cancel := context.WithTimeout(ctx, svc.timeout)
	defer cancel()

	sheet, err := svc.parse(runCtx, req)
	if err == nil {
		res.Columns, res.RowCount, err = svc.run(runCtx, domain, table, mode, sheet)
	}

	svc.finishLog(ctx, entry, res.RowCount, err)
	svc.publish(ctx, res, domain, err)
	if err != nil {
		ingestions.Add(domain.Name+".failure", 1)
		return Result{}, err
	}
	ingestions.Add(domain.Name+".success", 1)
	return res, nil
}

// parse reads the sheet of req.Source, or returns req.Sheet when there is no source.
// The parser is not context aware: past the deadline, the run fails with a TimeoutError while it finishes.
func (svc *Service) parse(ctx context.Context, req Request) (Sheet, error) {
	if req.Source == nil {
		return req.Sheet, nil
	}
	if svc.parser == nil {
		return Sheet{}, errors.New("no sheet parser configured")
	}

	type parsed struct {
		sheet Sheet
		err   error
	}
	done := make(chan parsed, 1)
	go func() {
		sheet, err := svc.parser(req.SourceName, req.Source)
		done <- parsed{sheet, err}
	}()

	select {
	case p := <-done:
		return p.sheet, p.err
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return Sheet{}, TimeoutError(ctx.Err())
		}
		return Sheet{}, errors.Wrap(ctx.Err(), "parsing "+req.SourceName)
	}
}

func (svc *Service) run(ctx context.Context, domain Domain, table string, mode Mode, sheet Sheet) ([]ColumnSpec, int, error) {
	cols, rows, err := svc.normalize(domain, sheet)
	if err != nil {
		return nil, 0, err
	}

	// table lock before slot: runs queued on a busy table hold no ingestion slot
	unlock, err := svc.locks.Lock(ctx, table)
	if err != nil {
		return nil, 0, ctxError(ctx, err, "waiting for table "+table)
	}
	defer unlock()

	if err = svc.sem.Acquire(ctx, 1); err != nil {
		return nil, 0, ctxError(ctx, err, "waiting for an ingestion slot")
	}
	defer svc.sem.Release(1)

	tx, err := svc.store.Begin(ctx)
	if err != nil {
		return nil, 0, ctxError(ctx, err, "beginning transaction")
	}
	committed := false
	defer func() {
		if !committed {
			if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
				svc.logger.Warn("rolling back ingestion", errors.Wrap(rbErr, "rolling back"), map[string]interface{}{"table": table})
			}
		}
	}()

	if err = svc.store.LockTable(ctx, tx, table); err != nil {
		return nil, 0, ctxError(ctx, err, "locking table "+table)
	}

	n, err := svc.loader.Load(ctx, tx, table, cols, rows, mode)
	if err != nil {
		return nil, 0, ctxError(ctx, err, "loading table "+table)
	}

	if err = tx.Commit(); err != nil {
		return nil, 0, ctxError(ctx, err, "committing")
	}
	committed = true
	return cols, n, nil
}

// normalize derives the columns & rows of a sheet according to the domain kind.
func (svc *Service) normalize(domain Domain, sheet Sheet) ([]ColumnSpec, []NormalizedRow, error) {
	if domain.Kind == KindRoster {
		entries := NormalizeRoster(svc.layout, sheet.Rows)
		if len(entries) == 0 {
			return nil, nil, NoDataError()
		}
		return RosterColumns, RosterRows(entries), nil
	}

	cols, err := InferSchema(sheet.Header, sheet.Rows)
	if err != nil {
		return nil, nil, err
	}
	rows, err := NormalizeRows(cols, sheet.Rows)
	if err != nil {
		return nil, nil, err
	}
	return cols, rows, nil
}

// ctxError maps an error happening past the run deadline to a TimeoutError.
func ctxError(ctx context.Context, err error, msg string) error {
	if ctx.Err() == context.DeadlineExceeded {
		return TimeoutError(err)
	}
	return StorageError(err, msg)
}

func (svc *Service) startLog(ctx context.Context, res Result, domain Domain, filename string) UploadLog {
	entry := UploadLog{
		ID:        res.RunID,
		Domain:    domain.Name,
		TableName: res.Table,
		FileName:  filename,
		Mode:      string(res.Mode),
		Status:    StatusPending,
		StartedAt: svc.now(),
	}
	created, err := svc.logs.CreateUploadLog(ctx, entry)
	if err != nil {
		svc.logger.Warn("creating upload log", errors.Wrap(err, "creating upload log"), map[string]interface{}{"run_id": res.RunID})
		return entry
	}
	return created
}

func (svc *Service) finishLog(ctx context.Context, entry UploadLog, rows int, runErr error) {
	entry.FinishedAt = null.TimeFrom(svc.now())
	entry.RowsIngested = rows
	entry.Status = StatusSuccess
	if runErr != nil {
		entry.Status = StatusFailure
		entry.RowsIngested = 0
		entry.Error = null.StringFrom(runErr.Error())
		if kind := KindOf(runErr); kind != "" {
			entry.ErrorKind = null.StringFrom(string(kind))
		}
	}
	if err := svc.logs.UpdateUploadLog(ctx, entry); err != nil {
		svc.logger.Warn("updating upload log", errors.Wrap(err, "updating upload log"), map[string]interface{}{"run_id": entry.ID})
	}
}

func (svc *Service) publish(ctx context.Context, res Result, domain Domain, runErr error) {
	evt := Event{
		Type:       EventCompleted,
		RunID:      res.RunID,
		Domain:     domain.Name,
		Table:      res.Table,
		Mode:       res.Mode,
		Rows:       res.RowCount,
		OccurredAt: svc.now(),
	}
	if runErr != nil {
		evt.Type = EventFailed
		evt.Rows = 0
		evt.Error = runErr.Error()
		evt.ErrorKind = string(KindOf(runErr))
	}
	if err := svc.events.Publish(ctx, evt); err != nil {
		svc.logger.Warn("publishing ingestion event", errors.Wrap(err, "publishing event"), map[string]interface{}{"run_id": res.RunID})
	}
}

// QueryUploadLogs lists the upload history, most recent first unless ordered otherwise.
func (svc *Service) QueryUploadLogs(ctx context.Context, filter UploadLogFilter, ordering []core.DBOrdering) ([]UploadLog, error) {
	for _, ord := range ordering {
		if !uploadLogOrderFields[ord.Field] {
			return nil, core.NewValidationError(
				errors.Errorf("invalid ordering %q", ord.Field),
				core.FieldError{Field: "ordering", Error: fmt.Sprintf("cannot order by %q", ord.Field)},
			)
		}
	}
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "started_at", Ascending: false}}
	}
	logs, err := svc.logs.QueryUploadLogs(ctx, filter, ordering)
	if err != nil {
		return nil, errors.Wrap(err, "querying upload logs")
	}
	return logs, nil
}

// ReadTable returns the content of the table of a domain (and term label, for partitioned domains).
func (svc *Service) ReadTable(ctx context.Context, domain, filename string) (TableData, error) {
	d, err := svc.registry.Lookup(domain)
	if err != nil {
		return TableData{}, err
	}
	table, err := TableName(d, filename)
	if err != nil {
		return TableData{}, err
	}
	data, err := svc.tables.ReadTable(ctx, table)
	if err != nil {
		return TableData{}, errors.Wrap(err, "reading table "+table)
	}
	return data, nil
}
