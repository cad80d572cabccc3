package app

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"dappkit/internal/bootstrap"
)

// ErrClosed is returned by Wait once the controller has been closed.
var ErrClosed = errors.New("controller closed")

// Mode selects which view the front end shows.
type Mode int

const (
	ModeLoading Mode = iota
	ModeInstallWallet
	ModeConnected
	ModeFailed
)

func (m Mode) String() string {
	switch m {
	case ModeLoading:
		return "loading"
	case ModeInstallWallet:
		return "install-wallet"
	case ModeConnected:
		return "connected"
	case ModeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Bootstrapper produces the application state.
type Bootstrapper interface {
	Run(ctx context.Context) (bootstrap.State, error)
}

// Snapshot is a consistent read of the published state.
type Snapshot struct {
	Mode  Mode
	State bootstrap.State
	Err   error
}

// Controller owns the published application state. Bootstrap runs at most once; a result that
// arrives after the caller's context is done or after Close is discarded and its resources released.
type Controller struct {
	bootstrapper Bootstrapper
	logger       *zap.Logger

	once sync.Once
	done chan struct{}

	mu       sync.RWMutex
	snapshot Snapshot
	closed   bool
}

// NewController builds a controller in loading mode.
func NewController(b Bootstrapper, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		bootstrapper: b,
		logger:       logger.With(zap.String("component", "app")),
		done:         make(chan struct{}),
	}
}

// Start launches the bootstrap in the background. Only the first call has any effect.
func (c *Controller) Start(ctx context.Context) {
	c.once.Do(func() {
		go c.run(ctx)
	})
}

// Wait starts the bootstrap if needed and blocks until it has settled or ctx is done.
func (c *Controller) Wait(ctx context.Context) (Snapshot, error) {
	c.Start(ctx)
	select {
	case <-c.done:
	case <-ctx.Done():
		return c.Snapshot(), ctx.Err()
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return c.snapshot, ErrClosed
	}
	return c.snapshot, nil
}

// Snapshot returns the current published state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot
}

// Mode returns the current view mode.
func (c *Controller) Mode() Mode {
	return c.Snapshot().Mode
}

// Close releases the published state. Later bootstrap results are discarded.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	state := c.snapshot.State
	c.snapshot = Snapshot{Mode: ModeLoading}
	c.mu.Unlock()

	state.Close()
}

func (c *Controller) run(ctx context.Context) {
	defer close(c.done)

	state, err := c.bootstrapper.Run(ctx)
	c.publish(ctx, state, err)
}

func (c *Controller) publish(ctx context.Context, state bootstrap.State, err error) {
	c.mu.Lock()
	if c.closed || ctx.Err() != nil {
		c.mu.Unlock()
		c.logger.Info("discarding late bootstrap result", zap.String("session", state.SessionID))
		state.Close()
		return
	}

	switch {
	case err != nil:
		c.snapshot = Snapshot{Mode: ModeFailed, Err: err}
	case !state.WalletFound:
		c.snapshot = Snapshot{Mode: ModeInstallWallet, State: state}
	default:
		c.snapshot = Snapshot{Mode: ModeConnected, State: state}
	}
	mode := c.snapshot.Mode
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn("bootstrap failed", zap.Error(err))
		state.Close()
		return
	}
	c.logger.Info("state published", zap.Stringer("mode", mode), zap.String("session", state.SessionID))
}
