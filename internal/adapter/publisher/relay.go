package publisher

import (
	"context"
	"time"

	"collateral-loans/internal/domain/event"

	"github.com/rs/zerolog"
)

// Relay republishes outbox rows whose post-commit publish did not go through.
type Relay struct {
	events event.Repository
	pub    event.Publisher
	log    zerolog.Logger
	batch  int
}

func NewRelay(events event.Repository, pub event.Publisher, log zerolog.Logger) *Relay {
	return &Relay{events: events, pub: pub, log: log, batch: 100}
}

// Drain publishes pending events in sequence order and stops at the first failure so
// ordering is kept. It returns how many events were published.
func (r *Relay) Drain(ctx context.Context) (int, error) {
	pending, err := r.events.ListUnpublished(ctx, r.batch)
	if err != nil {
		return 0, err
	}
	n := 0
	for i := range pending {
		e := &pending[i]
		if err := r.pub.Publish(ctx, e); err != nil {
			return n, err
		}
		if err := r.events.MarkPublished(ctx, e.Seq, time.Now()); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// Run drains every interval until ctx is done.
func (r *Relay) Run(ctx context.Context, interval time.Duration) error {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			n, err := r.Drain(ctx)
			if err != nil {
				r.log.Warn().Err(err).Int("published", n).Msg("outbox relay")
				continue
			}
			if n > 0 {
				r.log.Debug().Int("published", n).Msg("outbox relay")
			}
		}
	}
}
