package tui

import (
	"context"
	"time"
)

// ShutdownManager coordinates graceful shutdown of the receivers, the
// engine loop and the store once the dashboard exits.
type ShutdownManager struct {
	// DrainTimeout is the maximum time to wait for in-flight requests to complete.
	DrainTimeout time.Duration

	// StopReceivers stops the network receivers from accepting new signals.
	StopReceivers func(ctx context.Context) error

	// StopLoop stops the engine loop after it drains queued signals.
	StopLoop func()

	// Cleanup performs any additional cleanup, such as flushing the store.
	Cleanup func()
}

// NewShutdownManager creates a ShutdownManager with a 5-second drain timeout.
func NewShutdownManager() *ShutdownManager {
	return &ShutdownManager{
		DrainTimeout: 5 * time.Second,
	}
}

// Shutdown stops the receivers first so no signal is accepted that the
// loop will not process, then stops the loop, then runs cleanup. It
// returns the receivers' error, if any, after every step has run.
func (sm *ShutdownManager) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), sm.DrainTimeout)
	defer cancel()

	var err error
	if sm.StopReceivers != nil {
		err = sm.StopReceivers(ctx)
	}

	if sm.StopLoop != nil {
		sm.StopLoop()
	}

	if sm.Cleanup != nil {
		sm.Cleanup()
	}

	return err
}
