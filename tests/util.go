package testutil

import (
	"bytes"
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/campusgrid/core"
	"github.com/trezcool/campusgrid/core/ingest"
	"github.com/trezcool/campusgrid/storage/database"
	"github.com/trezcool/campusgrid/storage/database/dummy"
)

// NewConfig returns the app config with test-friendly ingestion settings.
func NewConfig() *core.Config {
	conf := core.NewConfig()
	conf.TestMode = true
	conf.Debug = false
	conf.Ingest.Timeout = 5 * time.Second
	conf.Ingest.BatchSize = 2
	conf.Ingest.MaxConcurrent = 4
	conf.Ingest.RosterAnchor = time.Date(2025, time.January, 6, 0, 0, 0, 0, time.UTC)
	conf.Ingest.RosterWeekColumn = 0
	conf.Ingest.RosterTeamColumn = 1
	return conf
}

type LogEntry struct {
	Level string
	Msg   string
	Args  []interface{}
}

// Logger records log entries in memory.
type Logger struct {
	mu      sync.Mutex
	Entries []LogEntry
}

var _ core.Logger = (*Logger)(nil)

func (l *Logger) log(level, msg string, args []interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Entries = append(l.Entries, LogEntry{Level: level, Msg: msg, Args: args})
}

func (l *Logger) Debug(msg string, args ...interface{}) { l.log("debug", msg, args) }
func (l *Logger) Info(msg string, args ...interface{})  { l.log("info", msg, args) }
func (l *Logger) Warn(msg string, args ...interface{})  { l.log("warn", msg, args) }
func (l *Logger) Error(msg string, args ...interface{}) { l.log("error", msg, args) }
func (l *Logger) Fatal(msg string, args ...interface{}) { l.log("fatal", msg, args) }

// Messages returns the logged messages of the given level.
func (l *Logger) Messages(level string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var msgs []string
	for _, e := range l.Entries {
		if e.Level == level {
			msgs = append(msgs, e.Msg)
		}
	}
	return msgs
}

// Publisher records published events in memory.
type Publisher struct {
	mu     sync.Mutex
	Err    error // returned by Publish, if set
	Events []ingest.Event
}

var _ ingest.Publisher = (*Publisher)(nil)

func (p *Publisher) Publish(_ context.Context, evt ingest.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Events = append(p.Events, evt)
	return p.Err
}

// Env is an ingestion service wired to the in-memory store.
type Env struct {
	Conf      *core.Config
	DB        *dummydb.DB
	Logs      ingest.UploadLogRepository
	Logger    *Logger
	Publisher *Publisher
	Svc       *ingest.Service
	Deps      ingest.ServiceDeps
}

func NewDummyEnv(t *testing.T, conf ...*core.Config) *Env {
	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open(): %v", err)
	}
	env := &Env{
		DB:        db,
		Logs:      dummydb.NewUploadLogRepository(db),
		Logger:    new(Logger),
		Publisher: new(Publisher),
	}
	if len(conf) > 0 {
		env.Conf = conf[0]
	} else {
		env.Conf = NewConfig()
	}
	env.Deps = ingest.ServiceDeps{
		Conf:   env.Conf,
		Logger: env.Logger,
		Store:  db,
		Logs:   env.Logs,
		Tables: dummydb.NewTableReader(db),
		Events: env.Publisher,
	}
	env.Svc = ingest.NewService(env.Deps)
	return env
}

// UseParser rebuilds the service with a sheet parser, for requests carrying a Source file.
func (env *Env) UseParser(parser ingest.SheetParser) {
	env.Deps.Parser = parser
	env.Svc = ingest.NewService(env.Deps)
}

// Workbook builds an .xlsx file whose first sheet holds `rows`.
func Workbook(t *testing.T, sheet string, rows ...[]interface{}) []byte {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if sheet != "" && sheet != "Sheet1" {
		if err := f.SetSheetName("Sheet1", sheet); err != nil {
			t.Fatalf("Workbook(): %v", err)
		}
	} else {
		sheet = "Sheet1"
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("Workbook(): %v", err)
		}
		if err = f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("Workbook(): %v", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("Workbook(): %v", err)
	}
	return buf.Bytes()
}

// CSV builds a csv file from `rows`.
func CSV(rows ...[]string) []byte {
	var buf bytes.Buffer
	for _, row := range rows {
		for i, c := range row {
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.WriteString(c)
		}
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// PrepareDB opens the postgres test database, or skips the test if it is unreachable.
func PrepareDB(t *testing.T) *sql.DB {
	conf := NewConfig()
	if conf.Database.InMemory() {
		t.Skip("postgres disabled (memory engine)")
	}
	db, err := database.Open(conf)
	if err != nil {
		t.Skipf("postgres unavailable: %v", err)
	}
	if err = db.Ping(); err != nil {
		_ = db.Close()
		t.Skipf("postgres unavailable: %v", err)
	}
	if err = database.Migrate(db); err != nil {
		_ = db.Close()
		t.Fatalf("PrepareDB(): %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

// ResetTables truncates the app tables & drops the given ingested tables.
func ResetTables(t *testing.T, db *sql.DB, tables ...string) {
	stmts := []string{"TRUNCATE TABLE upload_logs"}
	for _, tbl := range tables {
		stmts = append(stmts, "DROP TABLE IF EXISTS "+pq.QuoteIdentifier(tbl))
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("ResetTables(): %v", err)
		}
	}
}
