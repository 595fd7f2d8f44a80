package proxy

import (
	"context"
	"sync"
	"time"

	"github.com/louisf098/Otternet-Team-Otter-sub000/market"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	log2 "github.com/rs/zerolog/log"
)

const (
	defaultFlushInterval = 15 * time.Second
	flushTimeout         = 5 * time.Second
)

// Manager owns the single active proxy session: connect handshake,
// elapsed-time accounting and snapshot persistence. Only the manager mutates
// session state; readers get snapshot values.
type Manager struct {
	handshake     Handshaker
	store         *SessionStore
	flushInterval time.Duration
	log           zerolog.Logger

	mu          sync.Mutex
	node        market.ProxyNode
	connectedAt time.Time
	base        time.Duration
	frozen      time.Duration
	enabled     bool
	stopFlush   chan struct{}
}

type Config struct {
	Handshaker    Handshaker
	Store         *SessionStore
	FlushInterval time.Duration
}

func NewManager(config Config) *Manager {
	flushInterval := config.FlushInterval
	if flushInterval == 0 {
		flushInterval = defaultFlushInterval
	}

	return &Manager{
		handshake:     config.Handshaker,
		store:         config.Store,
		flushInterval: flushInterval,
		log:           log2.With().Str("role", "proxy_session_manager").Caller().Logger(),
	}
}

// Connect performs the confirmation handshake against node and, on success,
// starts the session: enabled, elapsed reset, snapshot persisted. The
// handshake wait is cancelable through ctx. A failed handshake leaves state
// untouched.
func (m *Manager) Connect(ctx context.Context, node market.ProxyNode) error {
	m.mu.Lock()
	if m.enabled {
		m.mu.Unlock()

		return market.NewError(market.KindSessionAlreadyActive, "disconnect the current proxy session first")
	}
	m.mu.Unlock()

	err := m.handshake.Confirm(ctx, node)
	if err != nil {
		return errors.Wrap(err, "handshake with proxy node failed")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// A concurrent Connect may have won the race during the handshake wait.
	if m.enabled {
		return market.NewError(market.KindSessionAlreadyActive, "disconnect the current proxy session first")
	}

	now := time.Now()

	err = m.store.SaveSnapshot(ctx, market.ProxySession{
		Node:           node,
		ConnectedAt:    now,
		ElapsedSeconds: 0,
		Enabled:        true,
	})
	if err != nil {
		return errors.Wrap(err, "cannot persist session snapshot")
	}

	m.node = node
	m.connectedAt = now
	m.base = 0
	m.frozen = 0
	m.enabled = true
	m.stopFlush = make(chan struct{})

	go m.flushLoop(m.stopFlush)

	m.log.Info().Str("node", node.ID).Str("rate", node.PricePerUnit.String()).Msg("proxy session established")

	return nil
}

// Disconnect freezes the elapsed time, clears the persisted snapshot and
// records the finished session in the history. Calling it without an active
// session is a no-op so UI double-invocation is harmless.
func (m *Manager) Disconnect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.enabled {
		return nil
	}

	// The snapshot is cleared before any in-memory state flips: a failed
	// clear leaves the session active rather than letting the next restart's
	// Reconcile resurrect a session the user already ended.
	err := m.store.ClearSnapshot(ctx)
	if err != nil {
		return errors.Wrap(err, "cannot clear session snapshot")
	}

	close(m.stopFlush)
	m.frozen = m.base + time.Since(m.connectedAt)
	m.enabled = false

	finished := market.ProxySession{
		Node:           m.node,
		ConnectedAt:    m.connectedAt,
		ElapsedSeconds: int64(m.frozen.Seconds()),
		Enabled:        false,
	}

	err = m.store.AppendHistory(ctx, finished)
	if err != nil {
		m.log.Warn().Err(err).Msg("cannot record finished session in history")
	}

	m.log.Info().Str("node", m.node.ID).Int64("elapsedSeconds", finished.ElapsedSeconds).
		Msg("proxy session closed")

	return nil
}

// Elapsed returns whole seconds since connect: non-decreasing while the
// session is enabled, frozen after disconnect. Accumulation is wall-clock
// based and may include intervals the process spent suspended.
func (m *Manager) Elapsed() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.enabled {
		return int64(m.frozen.Seconds())
	}

	return int64((m.base + time.Since(m.connectedAt)).Seconds())
}

// Session returns a snapshot of the current session for display, or nil when
// no node has ever been selected.
func (m *Manager) Session() *market.ProxySession {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.node.ID == "" {
		return nil
	}

	session := m.sessionLocked()

	return &session
}

func (m *Manager) sessionLocked() market.ProxySession {
	elapsed := m.frozen
	if m.enabled {
		elapsed = m.base + time.Since(m.connectedAt)
	}

	return market.ProxySession{
		Node:           m.node,
		ConnectedAt:    m.connectedAt,
		ElapsedSeconds: int64(elapsed.Seconds()),
		Enabled:        m.enabled,
	}
}

// Reconcile resumes the persisted session after a restart. The snapshot is
// advisory only: the handshake is re-run once, and a node that no longer
// confirms leaves the client disconnected with the snapshot cleared.
func (m *Manager) Reconcile(ctx context.Context) (*market.ProxySession, error) {
	snapshot, err := m.store.LoadSnapshot(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "cannot load session snapshot")
	}

	if snapshot == nil {
		return nil, nil
	}

	err = m.handshake.Confirm(ctx, snapshot.Node)
	if err != nil {
		m.log.Warn().Err(err).Str("node", snapshot.Node.ID).
			Msg("persisted session did not survive restart, clearing snapshot")

		clearErr := m.store.ClearSnapshot(ctx)
		if clearErr != nil {
			return nil, errors.Wrap(clearErr, "cannot clear stale session snapshot")
		}

		return nil, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.node = snapshot.Node
	m.connectedAt = time.Now()
	m.base = time.Duration(snapshot.ElapsedSeconds) * time.Second
	m.frozen = 0
	m.enabled = true
	m.stopFlush = make(chan struct{})

	go m.flushLoop(m.stopFlush)

	session := m.sessionLocked()

	m.log.Info().Str("node", session.Node.ID).Int64("elapsedSeconds", session.ElapsedSeconds).
		Msg("proxy session resumed")

	return &session, nil
}

// flushLoop periodically persists the running elapsed time so a restart
// resumes accounting close to where it left off.
func (m *Manager) flushLoop(stop chan struct{}) {
	ticker := time.NewTicker(m.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.mu.Lock()
			if !m.enabled {
				m.mu.Unlock()
				return
			}

			session := m.sessionLocked()
			m.mu.Unlock()

			ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)

			err := m.store.SaveSnapshot(ctx, session)
			if err != nil {
				m.log.Warn().Err(err).Msg("cannot flush session snapshot")
			}

			cancel()
		}
	}
}
