// Package events publishes fire-and-forget notifications on the NATS message
// bus. Delivery is best-effort: publish failures are logged and never raised
// to the caller, and publishing never blocks the triggering operation.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// Subjects published by the core.
const (
	SubjectServerCreated    = "server.created"
	SubjectServerStarted    = "server.started"
	SubjectServerStopped    = "server.stopped"
	SubjectUsageSampled     = "usage.sampled"
	SubjectInvoiceGenerated = "invoice.generated"
)

// NATSPublisher publishes JSON payloads to a NATS server.
type NATSPublisher struct {
	nc     *nats.Conn
	logger zerolog.Logger
}

func NewNATSPublisher(url, name string, logger zerolog.Logger) (*NATSPublisher, error) {
	logger = logger.With().Str("component", "events").Logger()

	opts := []nats.Option{
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Warn().Err(err).Msg("nats disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info().Str("url", nc.ConnectedUrl()).Msg("nats reconnected")
		}),
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, err
	}
	return &NATSPublisher{nc: nc, logger: logger}, nil
}

// Publish marshals the payload and publishes it on the subject. Failures are
// logged, never returned.
func (p *NATSPublisher) Publish(ctx context.Context, subject string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		p.logger.Error().Err(err).Str("subject", subject).Msg("failed to marshal event payload")
		return
	}

	if p.nc == nil || p.nc.IsClosed() {
		p.logger.Warn().Str("subject", subject).Msg("nats not connected, dropping event")
		return
	}

	if err := p.nc.Publish(subject, data); err != nil {
		p.logger.Warn().Err(err).Str("subject", subject).Msg("failed to publish event")
		return
	}
	p.logger.Debug().Str("subject", subject).Msg("event published")
}

func (p *NATSPublisher) Close() {
	if p.nc != nil {
		p.nc.Drain()
		p.nc.Close()
	}
}

// Noop discards every event. Used when no message bus is configured.
type Noop struct{}

func (Noop) Publish(ctx context.Context, subject string, payload any) {}
