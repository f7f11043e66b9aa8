package walletconnect

import (
	"context"
	"fungily.io/fungily-score/pkg/errors"
	"sync"
)

// Connector events.
const (
	EventConnect       = "connect"
	EventDisconnect    = "disconnect"
	EventSessionUpdate = "session_update"
)

// EventHandler receives a connector event. err is set when the event
// reports a failure (rejected pairing, relay loss).
type EventHandler func(err error, payload *Payload)

// Connector is the bridge pairing capability the adapter drives.
// At most one handler is kept per event: On replaces, Off removes.
type Connector interface {
	Connected() bool
	Accounts() []string
	// URI is the pairing URI of the pending or active session.
	URI() string
	// Resume attaches a restored, already connected session to the relay.
	Resume(ctx context.Context) error
	// CreateSession publishes a session request and shows the pairing UI.
	// It returns once the request is sent; approval arrives as EventConnect.
	CreateSession(ctx context.Context) error
	// KillSession ends the session with the peer and always leaves the
	// connector closed. EventDisconnect is emitted in every case.
	KillSession(ctx context.Context) error
	On(event string, handler EventHandler)
	Off(event string)
}

// QRCodeModal is the pairing UI hook.
type QRCodeModal interface {
	Open(uri string, png []byte) error
	Close()
}

var ErrSessionNotFound = errors.New("wallet connect session not found")

// Storage persists the pairing handle between processes.
type Storage interface {
	Load(ctx context.Context, key string) (*Session, error)
	Save(ctx context.Context, key string, session *Session) error
	Remove(ctx context.Context, key string) error
}

// MemoryStorage keeps sessions for the life of the process.
type MemoryStorage struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{sessions: make(map[string]*Session)}
}

func (m *MemoryStorage) Load(_ context.Context, key string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[key]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s.copy(), nil
}

func (m *MemoryStorage) Save(_ context.Context, key string, session *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[key] = session.copy()
	return nil
}

func (m *MemoryStorage) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, key)
	return nil
}
