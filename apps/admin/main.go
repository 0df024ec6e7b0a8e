package main

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"golang.org/x/term"

	"github.com/trezcool/campusgrid/core"
	"github.com/trezcool/campusgrid/core/ingest"
	eventsvc "github.com/trezcool/campusgrid/services/events"
	logsvc "github.com/trezcool/campusgrid/services/logger"
	"github.com/trezcool/campusgrid/services/sheets"
	"github.com/trezcool/campusgrid/storage/database"
	dummydb "github.com/trezcool/campusgrid/storage/database/dummy"
	boiledrepos "github.com/trezcool/campusgrid/storage/database/sqlboiler"
	sqlxrepos "github.com/trezcool/campusgrid/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(logsvc.NewStdLogger("ADMIN", conf), conf)
	logger.Enable(!conf.Debug)

	deps := ingest.ServiceDeps{
		Conf:   conf,
		Logger: logger,
		Events: eventsvc.NewConsolePublisher(logger),
		Parser: sheets.Parse,
	}

	var db *sql.DB
	if conf.Database.InMemory() {
		mem, err := dummydb.Open()
		errAndDie(logger, err)
		deps.Store = mem
		deps.Logs = dummydb.NewUploadLogRepository(mem)
		deps.Tables = dummydb.NewTableReader(mem)
	} else {
		var err error
		db, err = database.Open(conf)
		errAndDie(logger, err)
		defer func() { _ = db.Close() }()
		errAndDie(logger, db.Ping())

		deps.Store = database.NewStore(db)
		deps.Logs = boiledrepos.NewUploadLogRepository(db)
		deps.Tables = sqlxrepos.NewTableReader(db)
	}

	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)

	// start CLI
	cli := commandLine{
		db:       db,
		svc:      ingest.NewService(deps),
		validate: validate,
		out:      os.Stdout,
		color:    term.IsTerminal(int(os.Stdout.Fd())),
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			_, _ = fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
		}
		if db != nil {
			_ = db.Close()
		}
		os.Exit(1)
	}
}

func errAndDie(logger core.Logger, err error) {
	if err != nil {
		logger.Fatal(err.Error(), err)
	}
}
