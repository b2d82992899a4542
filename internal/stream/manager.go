package stream

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

const (
	reconnectInitialWait = time.Second
	reconnectMaxWait     = time.Minute

	// A session that survives this long resets the backoff schedule.
	stableSession = 2 * time.Minute
)

// Manager keeps a stream session alive, reconnecting with exponential
// backoff when it drops. Auth rejection is not retried.
type Manager struct {
	cfg    Config
	logger zerolog.Logger
}

// NewManager wraps a session config in a reconnect loop.
func NewManager(cfg Config, logger zerolog.Logger) *Manager {
	return &Manager{
		cfg:    cfg,
		logger: logger.With().Str("component", "stream").Logger(),
	}
}

// Run blocks until ctx is cancelled (returns nil) or authentication fails
// (returns ErrAuthFailed). Every decoded bar is passed to handler.
func (m *Manager) Run(ctx context.Context, handler BarHandler) error {
	if err := m.cfg.Validate(); err != nil {
		return err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = reconnectInitialWait
	policy.MaxInterval = reconnectMaxWait
	policy.MaxElapsedTime = 0

	for {
		startedAt := time.Now()
		err := m.session(ctx, handler)
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, ErrAuthFailed) {
			return err
		}

		if time.Since(startedAt) >= stableSession {
			policy.Reset()
		}
		wait := policy.NextBackOff()
		m.logger.Warn().Err(err).Dur("retry_in", wait).Msg("stream session ended, reconnecting")

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

func (m *Manager) session(ctx context.Context, handler BarHandler) error {
	client := NewClient(m.cfg, m.logger)
	if err := client.Connect(ctx); err != nil {
		return err
	}
	defer client.Close()

	return client.Listen(ctx, handler)
}
