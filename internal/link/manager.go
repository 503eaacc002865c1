package link

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"sync"
	"time"

	"golang.org/x/crypto/sha3"

	"github.com/zelara-ai/app-mobile/internal/debuglog"
	"github.com/zelara-ai/app-mobile/internal/metrics"
	"github.com/zelara-ai/app-mobile/internal/pairing"
	"github.com/zelara-ai/app-mobile/internal/pending"
	"github.com/zelara-ai/app-mobile/internal/proto"
)

const dialLogInterval = 30 * time.Second

// State is the connection lifecycle: Disconnected -> Connecting -> Connected
// -> Disconnected. A transport close while Connected goes straight back to
// Disconnected; reconnection is always caller-initiated.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Conn is the bidirectional byte stream a Dialer hands back. Reads and writes
// carry length-prefixed JSON envelopes.
type Conn interface {
	io.Reader
	io.Writer
	Close() error
}

// Dialer opens one Conn to a candidate address. The production implementation
// is QUICDialer; tests inject pipe-backed fakes.
type Dialer interface {
	Dial(ctx context.Context, addr string) (Conn, error)
}

// Manager owns at most one live connection to the desktop. Connect, Disconnect
// and Send are serialized relative to each other; inbound frames are decoded
// and handed to the pending table in arrival order.
type Manager struct {
	dialer  Dialer
	table   *pending.Table
	metrics *metrics.Metrics

	connectMu sync.Mutex
	writeMu   sync.Mutex

	mu    sync.Mutex
	state State
	conn  Conn
	token string
	gen   uint64
}

func NewManager(dialer Dialer, table *pending.Table, m *metrics.Metrics) *Manager {
	if m == nil {
		m = metrics.New()
	}
	return &Manager{dialer: dialer, table: table, metrics: m}
}

// Connect tries candidates strictly in order, each attempt bounded by
// dialTimeout. The first success wins and the remaining candidates are
// abandoned. When every candidate fails the aggregate error names each one.
func (m *Manager) Connect(ctx context.Context, candidates []pairing.Candidate, token string) error {
	m.connectMu.Lock()
	defer m.connectMu.Unlock()

	if len(candidates) == 0 {
		return fmt.Errorf("no candidates to try")
	}
	m.mu.Lock()
	if m.state != Disconnected {
		state := m.state
		m.mu.Unlock()
		return fmt.Errorf("already %s", state)
	}
	m.state = Connecting
	m.mu.Unlock()

	attempts := make([]AttemptError, 0, len(candidates))
	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			attempts = append(attempts, AttemptError{Addr: c.Addr(), Err: err})
			break
		}
		addr := c.Addr()
		m.metrics.IncDialAttempts()
		dialCtx, cancel := context.WithTimeout(ctx, dialTimeout())
		conn, err := m.dialer.Dial(dialCtx, addr)
		cancel()
		if err != nil {
			m.metrics.IncDialFail()
			debuglog.RateLimitedf("dial:"+addr, dialLogInterval, "link dial failed addr=%s err=%v", addr, err)
			attempts = append(attempts, AttemptError{Addr: addr, Err: err})
			continue
		}
		m.metrics.IncDialSuccess()
		m.metrics.IncConnects()

		m.mu.Lock()
		m.conn = conn
		m.token = token
		m.state = Connected
		m.gen++
		gen := m.gen
		m.mu.Unlock()

		debuglog.Debugf("link connected addr=%s token_fp=%s", addr, tokenFingerprint(token))
		go m.readLoop(conn, gen)
		return nil
	}

	m.mu.Lock()
	m.state = Disconnected
	m.mu.Unlock()
	return &ConnectError{Attempts: attempts}
}

// Disconnect closes the active connection and discards transport and token
// state. Idempotent. In-flight tasks complete with ErrConnClosed.
func (m *Manager) Disconnect() {
	m.connectMu.Lock()
	defer m.connectMu.Unlock()

	m.mu.Lock()
	conn := m.conn
	m.conn = nil
	m.token = ""
	wasConnected := m.state == Connected
	m.state = Disconnected
	m.gen++ // invalidates the read loop's teardown for the old connection
	m.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	if wasConnected {
		m.metrics.IncDisconnects()
		if m.table != nil {
			m.table.FailAll(ErrConnClosed)
		}
	}
}

func (m *Manager) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == Connected
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Token returns the bearer token captured at connect time, "" when
// disconnected.
func (m *Manager) Token() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

// Send writes one envelope frame. It fails when no connection is open or the
// transport rejects the write; it never buffers across a disconnect.
func (m *Manager) Send(payload []byte) error {
	m.mu.Lock()
	conn := m.conn
	connected := m.state == Connected
	m.mu.Unlock()
	if !connected || conn == nil {
		return ErrNotConnected
	}
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	if err := proto.WriteFrame(conn, payload); err != nil {
		return &SendError{Err: err}
	}
	return nil
}

// readLoop delivers inbound frames one at a time in arrival order. Malformed
// frames are logged and dropped; they cannot be correlated to any pending id.
func (m *Manager) readLoop(conn Conn, gen uint64) {
	for {
		payload, err := proto.ReadFrame(conn)
		if err != nil {
			m.teardown(conn, gen, err)
			return
		}
		m.metrics.IncFramesIn()
		resp, err := proto.DecodeTaskResponse(payload)
		if err != nil {
			m.metrics.IncFramesDropped()
			debuglog.Debugf("link dropping malformed frame len=%d err=%v", len(payload), err)
			continue
		}
		if m.table == nil || !m.table.Resolve(resp.TaskID, resp) {
			debuglog.Debugf("link unmatched response taskId=%s", resp.TaskID)
		}
	}
}

// teardown handles a transport-level close observed by the read loop. The
// generation check makes it a no-op when Disconnect or a newer Connect already
// superseded this connection. Holding connectMu across the state clear and
// FailAll keeps a reconnect from slipping in between them, which would fail
// fresh entries registered against the new connection.
func (m *Manager) teardown(conn Conn, gen uint64, cause error) {
	m.connectMu.Lock()
	defer m.connectMu.Unlock()

	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		return
	}
	m.conn = nil
	m.token = ""
	m.state = Disconnected
	m.mu.Unlock()

	_ = conn.Close()
	m.metrics.IncDisconnects()
	debuglog.Debugf("link transport closed err=%v", cause)
	if m.table != nil {
		m.table.FailAll(fmt.Errorf("%w: %v", ErrConnClosed, cause))
	}
}

// tokenFingerprint keeps raw bearer tokens out of logs.
func tokenFingerprint(token string) string {
	if token == "" {
		return ""
	}
	sum := sha3.Sum224([]byte(token))
	return hex.EncodeToString(sum[:6])
}
