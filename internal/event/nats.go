package event

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-grading/internal/config"
)

// NATSPublisher publishes graded events on <prefix>.submission.graded.
type NATSPublisher struct {
	nc      *nats.Conn
	subject string
	log     zerolog.Logger
}

// NewNATSPublisher creates a NATSPublisher.
func NewNATSPublisher(nc *nats.Conn, prefix string, log zerolog.Logger) *NATSPublisher {
	return &NATSPublisher{
		nc:      nc,
		subject: config.Subject.SubmissionGraded(prefix),
		log:     log.With().Str("component", "event_publisher").Logger(),
	}
}

// Subject returns the subject events are published on.
func (p *NATSPublisher) Subject() string {
	return p.subject
}

// PublishGraded encodes ev as JSON and publishes it. The connection buffers
// while reconnecting, so a nil error does not mean a consumer has seen it.
func (p *NATSPublisher) PublishGraded(ctx context.Context, ev SubmissionGraded) error {
	if p == nil || p.nc == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := nats.NewMsg(p.subject)
	msg.Data = data
	msg.Header.Set("Nats-Msg-Id", ev.SubmissionID.String())
	if err := p.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish %s: %w", p.subject, err)
	}

	p.log.Debug().
		Str("submission_id", ev.SubmissionID.String()).
		Str("trigger", string(ev.Trigger)).
		Msg("Graded event published")
	return nil
}
