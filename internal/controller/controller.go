package controller

import (
	"context"
	"fungily.io/fungily-score/internal/databus"
	"fungily.io/fungily-score/internal/session"
	"fungily.io/fungily-score/pkg/errors"
	"fungily.io/fungily-score/pkg/log"
	"sync"
)

// InjectedAdapter is the injected provider side.
type InjectedAdapter interface {
	Connect(ctx context.Context) ([]string, error)
	OnAccountsChanged(onChanged func(address string), onRevoked func())
	Disconnect()
}

// BridgeAdapter is the pairing relay side.
type BridgeAdapter interface {
	Connect(ctx context.Context) ([]string, error)
	Disconnect(ctx context.Context) error
	RestoreSessionIfAny(ctx context.Context) []string
	OnSessionEnded(cb func())
	OnAccountsChanged(cb func(address string))
}

// EventBus delivers the open-modal request from decoupled UI.
type EventBus interface {
	Subscribe(topic string, handler databus.Handler) (unsubscribe func())
}

// Controller owns the single wallet session. Adapter errors end up in the
// store; operations only return the resulting State.
type Controller struct {
	store    *session.Store
	injected InjectedAdapter
	bridge   BridgeAdapter
	bus      EventBus

	mu          sync.Mutex
	connecting  session.WalletType
	unsubscribe func()
}

type Option func(*Controller)

// WithEventBus makes Start listen for open-modal requests.
func WithEventBus(bus EventBus) Option {
	return func(c *Controller) {
		c.bus = bus
	}
}

func New(store *session.Store, injected InjectedAdapter, bridge BridgeAdapter, opts ...Option) *Controller {
	c := &Controller{
		store:    store,
		injected: injected,
		bridge:   bridge,
	}
	for _, opt := range opts {
		opt(c)
	}
	bridge.OnSessionEnded(func() { c.sessionEnded(session.WalletBridge) })
	bridge.OnAccountsChanged(func(addr string) { c.accountChanged(session.WalletBridge, addr) })
	return c
}

// Start restores a previously approved bridge session without prompting and
// begins serving open-modal requests.
func (c *Controller) Start(ctx context.Context) {
	if c.begin(session.WalletBridge) {
		accounts := c.bridge.RestoreSessionIfAny(ctx)
		if len(accounts) > 0 {
			c.store.SetConnected(session.WalletBridge, accounts[0])
			log.Infof("controller - restored walletconnect session %v", session.ShortAddress(c.store.State().Address))
		}
		c.end()
	}

	if c.bus != nil {
		unsubscribe := c.bus.Subscribe(databus.TopicOpenWalletConnectModal, func(databus.Event) {
			// the chooser defaults to the injected wallet
			go func() {
				st := c.ConnectInjected(context.Background())
				log.Debugf("controller - open modal request handled, phase %v", st.Phase)
			}()
		})
		c.mu.Lock()
		c.unsubscribe = unsubscribe
		c.mu.Unlock()
	}
}

// Stop drops the open-modal subscription. The wallet session is kept.
func (c *Controller) Stop() {
	c.mu.Lock()
	unsubscribe := c.unsubscribe
	c.unsubscribe = nil
	c.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	connecting := c.connecting
	c.mu.Unlock()
	return stateOf(c.store.State(), connecting)
}

func (c *Controller) ConnectInjected(ctx context.Context) State {
	return c.connect(ctx, session.WalletInjected)
}

func (c *Controller) ConnectBridge(ctx context.Context) State {
	return c.connect(ctx, session.WalletBridge)
}

func (c *Controller) connect(ctx context.Context, kind session.WalletType) State {
	if !c.begin(kind) {
		log.Debugf("controller - %v connect ignored, another connect is pending", kind)
		return c.State()
	}
	defer c.end()

	if active := c.store.State().WalletType; active != session.WalletNone && active != kind {
		log.Infof("controller - switching wallet from %v to %v", active, kind)
		c.teardown(ctx, active)
	}

	log.Debugf("controller - connecting %v", kind)
	var (
		accounts []string
		err      error
	)
	switch kind {
	case session.WalletInjected:
		accounts, err = c.injected.Connect(ctx)
	case session.WalletBridge:
		accounts, err = c.bridge.Connect(ctx)
	}
	if err == nil && len(accounts) == 0 {
		err = session.NewError(session.SessionFailed, "no accounts returned by %v", kind)
	}
	if err != nil {
		desc := descriptorOf(err, session.SessionFailed)
		log.Warnf("controller - %v connect failed: %v", kind, desc)
		c.store.SetError(desc)
		// a failed reconnect dropped the listener of the session that is still active
		if c.store.State().WalletType == session.WalletInjected {
			c.watchInjected()
		}
		return c.stateAfter()
	}

	c.store.SetConnected(kind, accounts[0])
	if kind == session.WalletInjected {
		c.watchInjected()
	}
	log.Infof("controller - connected %v %v", kind, session.ShortAddress(c.store.State().Address))
	return c.stateAfter()
}

func (c *Controller) watchInjected() {
	c.injected.OnAccountsChanged(
		func(addr string) { c.accountChanged(session.WalletInjected, addr) },
		func() { c.sessionEnded(session.WalletInjected) },
	)
}

// Disconnect always leaves the store disconnected. A failed remote teardown
// is recorded as DisconnectFailed afterwards.
func (c *Controller) Disconnect(ctx context.Context) State {
	active := c.store.State().WalletType
	if active == session.WalletNone {
		return c.State()
	}
	c.teardown(ctx, active)
	return c.State()
}

func (c *Controller) teardown(ctx context.Context, kind session.WalletType) {
	var err error
	switch kind {
	case session.WalletInjected:
		c.injected.Disconnect()
	case session.WalletBridge:
		err = c.bridge.Disconnect(ctx)
	}
	c.store.Reset()
	if err != nil {
		desc := descriptorOf(err, session.DisconnectFailed)
		log.Warnf("controller - %v disconnect failed: %v", kind, desc)
		c.store.SetError(desc)
		return
	}
	log.Infof("controller - %v disconnected", kind)
}

// sessionEnded handles a provider-originated end of session. It skips Failed
// and goes straight to Disconnected, but only for the adapter that owns the
// session.
func (c *Controller) sessionEnded(kind session.WalletType) {
	if c.store.State().WalletType != kind {
		return
	}
	log.Infof("controller - %v session ended by provider", kind)
	c.store.Reset()
}

func (c *Controller) accountChanged(kind session.WalletType, addr string) {
	if c.store.State().WalletType != kind {
		return
	}
	log.Debugf("controller - %v account changed to %v", kind, session.ShortAddress(addr))
	c.store.SetConnected(kind, addr)
}

func (c *Controller) begin(kind session.WalletType) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connecting != session.WalletNone {
		return false
	}
	c.connecting = kind
	return true
}

func (c *Controller) end() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connecting = session.WalletNone
}

// stateAfter is the snapshot once the pending connect has settled.
func (c *Controller) stateAfter() State {
	return stateOf(c.store.State(), session.WalletNone)
}

func descriptorOf(err error, fallback session.ErrorKind) *session.ErrorDescriptor {
	var desc *session.ErrorDescriptor
	if errors.As(err, &desc) {
		return desc
	}
	return session.NewError(fallback, "%v", err)
}
