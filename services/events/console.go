package eventsvc

import (
	"context"

	"github.com/trezcool/campusgrid/core"
	"github.com/trezcool/campusgrid/core/ingest"
)

// ConsolePublisher logs events; used when no broker is configured.
type ConsolePublisher struct {
	logger core.Logger
}

var _ ingest.Publisher = (*ConsolePublisher)(nil)

func NewConsolePublisher(logger core.Logger) *ConsolePublisher {
	return &ConsolePublisher{logger: logger}
}

func (p ConsolePublisher) Publish(_ context.Context, evt ingest.Event) error {
	fields := map[string]interface{}{
		"run_id": evt.RunID,
		"domain": evt.Domain,
		"table":  evt.Table,
		"mode":   string(evt.Mode),
		"rows":   evt.Rows,
	}
	if evt.ErrorKind != "" {
		fields["error_kind"] = evt.ErrorKind
		fields["error"] = evt.Error
	}
	p.logger.Info(evt.Type, fields)
	return nil
}
