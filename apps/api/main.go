package main

import (
	"context"
	"database/sql"
	"expvar"
	"fmt"
	"net/http"
	_ "net/http/pprof" // register the /debug/pprof handlers

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	echoapi "github.com/trezcool/campusgrid/apps/api/echo"
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
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := logsvc.NewRollbarLogger(logsvc.NewStdLogger("API", conf), conf)
	logger.Enable(!conf.Debug)

	dbLogger := logsvc.NewRollbarLogger(logsvc.NewStdLogger("DB", conf), conf)
	dbLogger.Enable(!conf.Debug)

	// set up storage
	var storeDeps ingest.ServiceDeps
	if conf.Database.InMemory() {
		logger.Warn("using the in-memory store: ingested data is lost on exit")
		db, err := dummydb.Open()
		if err != nil {
			logger.Fatal(fmt.Sprintf("opening in-memory store: %v", err), err)
		}
		storeDeps = ingest.ServiceDeps{
			Store:  db,
			Logs:   dummydb.NewUploadLogRepository(db),
			Tables: dummydb.NewTableReader(db),
		}
	} else {
		db, err := setUpDB(conf)
		if err != nil {
			logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
		}
		defer func() {
			if err = db.Close(); err != nil {
				dbLogger.Fatal("Failed to close", err)
			}
		}()
		storeDeps = ingest.ServiceDeps{
			Store:  database.NewStore(db),
			Logs:   boiledrepos.NewUploadLogRepository(db),
			Tables: sqlxrepos.NewTableReader(db),
		}
	}

	// set up services
	var publisher ingest.Publisher
	if conf.Events.RabbitMQURL != "" {
		pub, err := eventsvc.NewRabbitMQPublisher(conf)
		if err != nil {
			logger.Fatal(fmt.Sprintf("setting up event publisher: %v", err), err)
		}
		defer func() {
			if err = pub.Close(); err != nil {
				logger.Error("closing event publisher", err)
			}
		}()
		publisher = pub
	} else {
		publisher = eventsvc.NewConsolePublisher(logger)
	}

	ingestSvc := ingest.NewService(ingest.ServiceDeps{
		Conf:   conf,
		Logger: logger,
		Store:  storeDeps.Store,
		Logs:   storeDeps.Logs,
		Tables: storeDeps.Tables,
		Events: publisher,
		Parser: sheets.Parse,
	})

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:       conf,
			Logger:     logger,
			IngestSvc:  ingestSvc,
			Validate:   validate,
			Translator: translator,
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err := <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err := server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func setUpDB(conf *core.Config) (*sql.DB, error) {
	if err := database.CreateIfNotExist(context.Background(), conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}
