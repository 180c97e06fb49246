package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Real-Bird/upload-server/internal/apperr"
	"github.com/Real-Bird/upload-server/internal/config"
	"github.com/Real-Bird/upload-server/internal/metrics"
	"github.com/cenkalti/backoff/v4"
	"go.mongodb.org/mongo-driver/event"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

const defaultDisconnectTimeout = 5 * time.Second

// ErrNotConnected is returned while the manager has no live client.
var ErrNotConnected = apperr.New(apperr.KindUnavailable, "database not connected")

// State is a step of the connection lifecycle.
type State int32

const (
	StateUnconnected State = iota
	StateConnecting
	StateConnected
	StateFailed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnconnected:
		return "unconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Client is the subset of *mongo.Client the manager relies on.
type Client interface {
	Ping(ctx context.Context, rp *readpref.ReadPref) error
	Disconnect(ctx context.Context) error
	Database(name string, opts ...*options.DatabaseOptions) *mongo.Database
}

// Dialer opens a client with the options prepared by the manager.
type Dialer func(ctx context.Context, opts *options.ClientOptions) (Client, error)

// Option customizes a Manager.
type Option func(*Manager)

// WithDialer replaces mongo.Connect, mostly for tests.
func WithDialer(d Dialer) Option {
	return func(m *Manager) {
		m.dial = d
	}
}

// Manager owns the process-wide MongoDB client. It connects with bounded exponential backoff and
// starts a new connect cycle whenever the driver reports the connection as lost.
type Manager struct {
	cfg  config.MongoConfig
	log  *zap.Logger
	dial Dialer

	state atomic.Int32
	lost  chan struct{}

	mu     sync.RWMutex
	client Client
}

// NewManager builds an unconnected manager. Call Run to start supervising.
func NewManager(cfg config.MongoConfig, log *zap.Logger, opts ...Option) *Manager {
	m := &Manager{
		cfg:  cfg,
		log:  log.Named("mongo"),
		dial: dialMongo,
		lost: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(m)
	}
	metrics.SetMongoState(int(StateUnconnected))
	return m
}

func dialMongo(ctx context.Context, opts *options.ClientOptions) (Client, error) {
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// State reports the current lifecycle step.
func (m *Manager) State() State {
	return State(m.state.Load())
}

// Run supervises the connection until ctx is done. Connection failures are logged, never returned,
// so a dead database does not stop the HTTP server. When a connect cycle exhausts its attempts the
// manager stays Failed for ReconnectMaxInterval and then starts a fresh cycle.
func (m *Manager) Run(ctx context.Context) error {
	for {
		m.drainLost()
		m.setState(StateConnecting)

		client, err := m.connect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				m.Close(context.Background())
				return nil
			}
			m.setState(StateFailed)
			m.log.Error("connection failed, pausing before next cycle",
				zap.Int("max_attempts", m.cfg.ReconnectMaxAttempts),
				zap.Duration("next_cycle_in", m.cfg.ReconnectMaxInterval),
				zap.Error(err))
			if !sleep(ctx, m.cfg.ReconnectMaxInterval) {
				m.Close(context.Background())
				return nil
			}
			continue
		}

		m.mu.Lock()
		m.client = client
		m.mu.Unlock()
		m.setState(StateConnected)
		m.log.Info("connected", zap.String("database", m.cfg.Database))

		if !m.awaitLoss(ctx) {
			m.Close(context.Background())
			return nil
		}
		m.log.Warn("connection lost, reconnecting")
		metrics.MongoReconnect()
		m.dropClient(ctx)
	}
}

// NotifyDisconnected signals that a server of the topology stopped answering. The manager only
// reconnects when the primary no longer answers a ping. Calls while not connected are ignored.
func (m *Manager) NotifyDisconnected() {
	if m.State() != StateConnected {
		return
	}
	select {
	case m.lost <- struct{}{}:
	default:
	}
}

// Database returns a handle on the configured database.
func (m *Manager) Database() (*mongo.Database, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.client == nil {
		return nil, ErrNotConnected
	}
	return m.client.Database(m.cfg.Database), nil
}

// Ping checks the live client against the primary.
func (m *Manager) Ping(ctx context.Context) error {
	m.mu.RLock()
	client := m.client
	m.mu.RUnlock()
	if client == nil {
		return ErrNotConnected
	}
	return client.Ping(ctx, readpref.Primary())
}

// Close disconnects the client and marks the manager closed.
func (m *Manager) Close(ctx context.Context) {
	if m.State() == StateClosed {
		return
	}
	m.dropClient(ctx)
	m.setState(StateClosed)
}

// awaitLoss blocks until the primary is unreachable after a disconnect signal. It returns false
// when ctx is done first.
func (m *Manager) awaitLoss(ctx context.Context) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case <-m.lost:
			pingCtx, cancel := context.WithTimeout(ctx, m.cfg.ConnectTimeout)
			err := m.Ping(pingCtx)
			cancel()
			if err != nil {
				m.log.Debug("primary ping failed", zap.Error(err))
				return true
			}
			m.log.Debug("server heartbeat failed, primary still reachable")
		}
	}
}

func (m *Manager) connect(ctx context.Context) (Client, error) {
	attempt := 0
	var client Client

	op := func() error {
		attempt++
		attemptCtx, cancel := context.WithTimeout(ctx, m.cfg.ConnectTimeout)
		defer cancel()

		c, err := m.dial(attemptCtx, m.clientOptions())
		if err != nil {
			return fmt.Errorf("dial: %w", err)
		}
		if err := c.Ping(attemptCtx, readpref.Primary()); err != nil {
			m.disconnect(ctx, c)
			return fmt.Errorf("ping: %w", err)
		}
		client = c
		return nil
	}

	notify := func(err error, wait time.Duration) {
		m.log.Warn("connect attempt failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", wait),
			zap.Error(err))
	}

	if err := backoff.RetryNotify(op, m.policy(ctx), notify); err != nil {
		return nil, err
	}
	return client, nil
}

func (m *Manager) policy(ctx context.Context) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = m.cfg.ReconnectInitialInterval
	eb.MaxInterval = m.cfg.ReconnectMaxInterval
	eb.MaxElapsedTime = 0

	var b backoff.BackOff = eb
	if m.cfg.ReconnectMaxAttempts > 0 {
		b = backoff.WithMaxRetries(b, uint64(m.cfg.ReconnectMaxAttempts-1))
	}
	return backoff.WithContext(b, ctx)
}

func (m *Manager) clientOptions() *options.ClientOptions {
	opts := options.Client().
		ApplyURI(m.cfg.URI).
		SetServerMonitor(&event.ServerMonitor{
			ServerHeartbeatFailed: func(e *event.ServerHeartbeatFailedEvent) {
				m.log.Debug("heartbeat failed", zap.String("connection_id", e.ConnectionID), zap.Error(e.Failure))
				m.NotifyDisconnected()
			},
		})
	if m.cfg.Debug {
		opts.SetMonitor(m.commandMonitor())
	}
	return opts
}

func (m *Manager) commandMonitor() *event.CommandMonitor {
	return &event.CommandMonitor{
		Started: func(_ context.Context, e *event.CommandStartedEvent) {
			m.log.Debug("command",
				zap.String("db", e.DatabaseName),
				zap.String("command", e.CommandName),
				zap.Int64("request_id", e.RequestID),
				zap.String("body", e.Command.String()))
		},
		Failed: func(_ context.Context, e *event.CommandFailedEvent) {
			m.log.Debug("command failed",
				zap.String("command", e.CommandName),
				zap.Int64("request_id", e.RequestID),
				zap.Duration("duration", e.Duration),
				zap.String("failure", e.Failure))
		},
	}
}

func (m *Manager) setState(s State) {
	prev := State(m.state.Swap(int32(s)))
	metrics.SetMongoState(int(s))
	if prev != s {
		m.log.Debug("state change", zap.Stringer("from", prev), zap.Stringer("to", s))
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (m *Manager) drainLost() {
	select {
	case <-m.lost:
	default:
	}
}

func (m *Manager) dropClient(ctx context.Context) {
	m.mu.Lock()
	client := m.client
	m.client = nil
	m.mu.Unlock()

	if client != nil {
		m.disconnect(ctx, client)
	}
}

func (m *Manager) disconnect(ctx context.Context, c Client) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultDisconnectTimeout)
	defer cancel()
	if err := c.Disconnect(ctx); err != nil && !errors.Is(err, mongo.ErrClientDisconnected) {
		m.log.Warn("disconnect failed", zap.Error(err))
	}
}
