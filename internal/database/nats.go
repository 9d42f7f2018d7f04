package database

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-grading/internal/config"
)

// NewNATSConn connects to the event bus. It returns a nil connection when no
// URL is configured; callers treat that as "publishing disabled".
func NewNATSConn(cfg *config.Config, log zerolog.Logger) (*nats.Conn, error) {
	if cfg.NATSURL == "" {
		log.Info().Msg("NATS disabled, graded events will not be published")
		return nil, nil
	}

	nc, err := nats.Connect(cfg.NATSURL,
		nats.Name("exstem-grading"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info().Str("url", c.ConnectedUrlRedacted()).Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	log.Info().
		Str("url", nc.ConnectedUrlRedacted()).
		Msg("NATS connected")

	return nc, nil
}
