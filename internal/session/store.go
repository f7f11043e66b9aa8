package session

import (
	"fungily.io/fungily-score/pkg/log"
	"github.com/ethereum/go-ethereum/common"
	"sync"
)

// Observer is notified after every change of the connection state.
type Observer interface {
	OnStateChanged(state ConnectionState)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(state ConnectionState)

func (f ObserverFunc) OnStateChanged(state ConnectionState) {
	f(state)
}

// Store holds the connection state for one browser session.
//
// The published state always satisfies the address/wallet-type invariant:
// an address set without a wallet type (or the reverse) is staged and only
// becomes visible once its counterpart arrives. Nothing here returns an
// error or panics.
type Store struct {
	mu        sync.Mutex
	state     ConnectionState
	pendAddr  string
	pendType  WalletType
	nextID    int
	observers []observerEntry

	// published snapshots not yet delivered; one goroutine drains at a time
	// so observers see changes in order and may call back into the store
	queue    []ConnectionState
	draining bool
}

type observerEntry struct {
	id int
	o  Observer
}

func NewStore() *Store {
	return &Store{}
}

// State returns a snapshot.
func (s *Store) State() ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// SetAddress sets the account. The empty address is the generic
// "disconnected" signal and clears the wallet type too.
func (s *Store) SetAddress(address string) {
	address = normalizeAddress(address)
	s.mutate(func(st *ConnectionState) {
		if address == "" {
			st.Address, st.WalletType = "", WalletNone
			s.pendAddr, s.pendType = "", WalletNone
			return
		}
		if st.WalletType != WalletNone {
			st.Address = address
			return
		}
		if s.pendType != WalletNone {
			st.Address, st.WalletType = address, s.pendType
			s.pendType = WalletNone
			return
		}
		s.pendAddr = address
	})
}

// SetWalletType sets the owning adapter. WalletNone clears the address too.
func (s *Store) SetWalletType(t WalletType) {
	s.mutate(func(st *ConnectionState) {
		if t == WalletNone {
			st.Address, st.WalletType = "", WalletNone
			s.pendAddr, s.pendType = "", WalletNone
			return
		}
		if st.Address != "" {
			st.WalletType = t
			return
		}
		if s.pendAddr != "" {
			st.Address, st.WalletType = s.pendAddr, t
			s.pendAddr = ""
			return
		}
		s.pendType = t
	})
}

// SetError records the latest failure; nil clears it.
func (s *Store) SetError(desc *ErrorDescriptor) {
	s.mutate(func(st *ConnectionState) {
		if desc == nil {
			st.LastError = nil
			return
		}
		e := *desc
		st.LastError = &e
	})
}

// SetConnected publishes a successful connect in one change and clears the
// last error.
func (s *Store) SetConnected(t WalletType, address string) {
	address = normalizeAddress(address)
	if t == WalletNone || address == "" {
		s.Reset()
		return
	}
	s.mutate(func(st *ConnectionState) {
		st.Address, st.WalletType, st.LastError = address, t, nil
		s.pendAddr, s.pendType = "", WalletNone
	})
}

// Reset is the successful-disconnect transition.
func (s *Store) Reset() {
	s.mutate(func(st *ConnectionState) {
		*st = ConnectionState{}
		s.pendAddr, s.pendType = "", WalletNone
	})
}

// Subscribe registers an observer; the returned func removes it.
func (s *Store) Subscribe(o Observer) (unsubscribe func()) {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.observers = append(s.observers, observerEntry{id: id, o: o})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, e := range s.observers {
				if e.id == id {
					s.observers = append(s.observers[:i:i], s.observers[i+1:]...)
					return
				}
			}
		})
	}
}

func (s *Store) mutate(fn func(st *ConnectionState)) {
	s.mu.Lock()
	before := s.state.clone()
	fn(&s.state)
	if !before.equal(s.state) {
		s.queue = append(s.queue, s.state.clone())
	}
	if s.draining {
		s.mu.Unlock()
		return
	}
	s.draining = true
	for len(s.queue) > 0 {
		next := s.queue[0]
		s.queue = s.queue[1:]
		observers := make([]observerEntry, len(s.observers))
		copy(observers, s.observers)
		s.mu.Unlock()

		log.Debugf("wallet session - state changed: type=%v address=%v error=%v",
			next.WalletType, next.Address, next.LastError)
		for _, e := range observers {
			notify(e.o, next.clone())
		}

		s.mu.Lock()
	}
	s.draining = false
	s.mu.Unlock()
}

func notify(o Observer, state ConnectionState) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("wallet session - observer panicked: %v", r)
		}
	}()
	o.OnStateChanged(state)
}

// normalizeAddress returns the EIP-55 form of hex account addresses and
// leaves anything else untouched.
func normalizeAddress(address string) string {
	if common.IsHexAddress(address) {
		return common.HexToAddress(address).Hex()
	}
	return address
}

// ShortAddress is the display form, e.g. 0x1234...abcd.
func ShortAddress(address string) string {
	if len(address) <= 10 {
		return address
	}
	return address[:6] + "..." + address[len(address)-4:]
}
