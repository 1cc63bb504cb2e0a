// Package stream publishes engine events to NATS JetStream for downstream
// consumers (indexers, dashboards, the migration target).
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"github.com/whetstoneresearch/doppler-sub010/internal/event"
)

// Publisher drains the publish channel and writes each envelope to
// JetStream. Subjects follow auction.events.{event_type}.{auction_id}.
// Publishing is best-effort: a failed publish is logged and skipped, since
// the Postgres event log remains the source of truth.
type Publisher struct {
	js            jetstream.JetStream
	input         <-chan event.Envelope
	subjectPrefix string
	log           zerolog.Logger
}

func NewPublisher(js jetstream.JetStream, input <-chan event.Envelope, subjectPrefix string, log zerolog.Logger) *Publisher {
	return &Publisher{
		js:            js,
		input:         input,
		subjectPrefix: subjectPrefix,
		log:           log,
	}
}

// Run drains the input channel until it closes or the context is cancelled.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case env, ok := <-p.input:
			if !ok {
				return nil
			}
			if err := p.publish(ctx, env); err != nil {
				p.log.Warn().
					Err(err).
					Int64("sequence", env.Sequence).
					Str("type", env.Type.String()).
					Msg("outbound publish failed")
			}
		}
	}
}

func (p *Publisher) publish(ctx context.Context, env event.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	subject := fmt.Sprintf("%s.%s.%s", p.subjectPrefix, env.Type.String(), env.AuctionID)
	_, err = p.js.Publish(ctx, subject, data)
	return err
}

// EnsureStream creates or updates the outbound events stream.
func EnsureStream(ctx context.Context, js jetstream.JetStream, name, subjectPrefix string) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      name,
		Subjects:  []string{subjectPrefix + ".>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    72 * time.Hour,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create outbound stream %s: %w", name, err)
	}
	return nil
}
