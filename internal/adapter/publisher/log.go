package publisher

import (
	"context"

	"collateral-loans/internal/domain/event"

	"github.com/rs/zerolog"
)

// Log writes events to the structured log; used when no broker is configured.
type Log struct{ log zerolog.Logger }

func NewLog(log zerolog.Logger) *Log { return &Log{log: log} }

func (p *Log) Publish(_ context.Context, e *event.Event) error {
	p.log.Info().
		Uint64("seq", e.Seq).
		Str("event_id", e.EventID).
		Str("type", string(e.Type)).
		Uint64("loan_id", e.LoanID).
		RawJSON("payload", e.Payload).
		Msg("loan event")
	return nil
}
