package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"collateral-loans/internal/domain/event"

	"github.com/nats-io/nats.go/jetstream"
)

// streamPublisher is the part of jetstream.JetStream used here.
type streamPublisher interface {
	Publish(ctx context.Context, subject string, payload []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// Envelope is the wire form of an outbox event.
type Envelope struct {
	Seq        uint64          `json:"seq"`
	EventID    string          `json:"event_id"`
	Type       event.Type      `json:"type"`
	LoanID     uint64          `json:"loan_id"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

type JetStream struct {
	js     streamPublisher
	prefix string
}

var _ event.Publisher = (*JetStream)(nil)

func NewJetStream(js streamPublisher, prefix string) *JetStream {
	return &JetStream{js: js, prefix: prefix}
}

func Subject(prefix string, t event.Type) string {
	return fmt.Sprintf("%s.events.%s", prefix, t)
}

// Publish sends the event with its event id as the JetStream message id, so relaying an
// event twice is deduplicated server-side.
func (p *JetStream) Publish(ctx context.Context, e *event.Event) error {
	data, err := json.Marshal(Envelope{
		Seq:        e.Seq,
		EventID:    e.EventID,
		Type:       e.Type,
		LoanID:     e.LoanID,
		OccurredAt: e.OccurredAt,
		Payload:    e.Payload,
	})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	_, err = p.js.Publish(ctx, Subject(p.prefix, e.Type), data, jetstream.WithMsgID(e.EventID))
	return err
}
