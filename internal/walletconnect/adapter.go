package walletconnect

import (
	"context"
	"fungily.io/fungily-score/internal/session"
	"fungily.io/fungily-score/pkg/log"
	"sync"
	"time"
)

const abandonTimeout = 5 * time.Second

// ConnectorFactory builds a connector, restoring a stored session if one
// exists. The relay endpoint and pairing UI are bound inside it.
type ConnectorFactory func() (Connector, error)

type connectResult struct {
	accounts []string
	err      error
}

// Adapter is the bridge ProviderAdapter.
type Adapter struct {
	newConnector ConnectorFactory
	modal        QRCodeModal

	mu        sync.Mutex
	connector Connector
	onEnded   func()
	onChanged func(address string)
}

func NewAdapter(newConnector ConnectorFactory, modal QRCodeModal) *Adapter {
	return &Adapter{newConnector: newConnector, modal: modal}
}

// OnSessionEnded is called whenever the active session ends, whether the
// user asked for it or the peer dropped it.
func (a *Adapter) OnSessionEnded(cb func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onEnded = cb
}

// OnAccountsChanged is called when the peer switches account.
func (a *Adapter) OnAccountsChanged(cb func(address string)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onChanged = cb
}

// Active reports whether the adapter holds a connected session.
func (a *Adapter) Active() bool {
	a.mu.Lock()
	c := a.connector
	a.mu.Unlock()
	return c != nil && c.Connected()
}

// RestoreSessionIfAny silently reattaches a previously approved session.
func (a *Adapter) RestoreSessionIfAny(ctx context.Context) []string {
	c, err := a.newConnector()
	if err != nil {
		log.Warnf("wallet connect - create connector: %v", err)
		return nil
	}
	accounts := c.Accounts()
	if !c.Connected() || len(accounts) == 0 {
		return nil
	}
	a.wire(c, nil)
	if err := c.Resume(ctx); err != nil {
		log.Warnf("wallet connect - resume restored session: %v", err)
		a.unwire(c)
		return nil
	}
	a.mu.Lock()
	a.connector = c
	a.mu.Unlock()
	log.Infof("wallet connect - restored session for %v", accounts[0])
	return accounts
}

// Connect pairs with a wallet and resolves with its accounts. Failures are
// *session.ErrorDescriptor values of kind SessionFailed.
func (a *Adapter) Connect(ctx context.Context) ([]string, error) {
	a.mu.Lock()
	c := a.connector
	a.mu.Unlock()
	if c == nil {
		var err error
		if c, err = a.newConnector(); err != nil {
			return nil, session.NewError(session.SessionFailed, "failed to connect WalletConnect: %v", err)
		}
		a.mu.Lock()
		a.connector = c
		a.mu.Unlock()
	}

	result := make(chan connectResult, 1)
	a.wire(c, result)

	if c.Connected() {
		if accounts := c.Accounts(); len(accounts) > 0 {
			return accounts, nil
		}
	}
	if err := c.CreateSession(ctx); err != nil {
		a.abandon(c)
		return nil, session.NewError(session.SessionFailed, "failed to connect WalletConnect: %v", err)
	}
	select {
	case r := <-result:
		if r.err != nil {
			a.abandon(c)
			return nil, session.NewError(session.SessionFailed, "WalletConnect connection failed: %v", r.err)
		}
		return r.accounts, nil
	case <-ctx.Done():
		a.abandon(c)
		return nil, session.NewError(session.SessionFailed, "WalletConnect pairing not completed: %v", ctx.Err())
	}
}

// Disconnect kills the active session and dismisses the pairing UI. The
// local reference is dropped even when the kill fails.
func (a *Adapter) Disconnect(ctx context.Context) error {
	a.mu.Lock()
	c := a.connector
	a.connector = nil
	a.mu.Unlock()
	if c == nil {
		return nil
	}
	err := c.KillSession(ctx)
	if a.modal != nil {
		a.modal.Close()
	}
	if err != nil {
		log.Warnf("wallet connect - kill session: %v", err)
		return session.NewError(session.DisconnectFailed, "failed to disconnect: %v", err)
	}
	return nil
}

// wire replaces the connector's handlers; repeated calls never stack them.
func (a *Adapter) wire(c Connector, pending chan connectResult) {
	a.unwire(c)
	c.On(EventConnect, func(err error, p *Payload) {
		r := connectResult{err: err}
		if err == nil && p != nil {
			r.accounts = p.Accounts
		}
		if pending != nil {
			select {
			case pending <- r:
				return
			default:
			}
		}
		if err != nil {
			log.Warnf("wallet connect - connect event error: %v", err)
			return
		}
		if len(r.accounts) > 0 {
			a.accountsChanged(r.accounts[0])
		}
	})
	c.On(EventDisconnect, func(err error, p *Payload) {
		if err != nil {
			log.Warnf("wallet connect - disconnected: %v", err)
		}
		if pending != nil {
			select {
			case pending <- connectResult{err: sessionEndedError(err, p)}:
			default:
			}
		}
		a.sessionEnded(c)
	})
	c.On(EventSessionUpdate, func(err error, p *Payload) {
		if err == nil && p != nil && len(p.Accounts) > 0 {
			a.accountsChanged(p.Accounts[0])
		}
	})
}

func (a *Adapter) unwire(c Connector) {
	c.Off(EventConnect)
	c.Off(EventDisconnect)
	c.Off(EventSessionUpdate)
}

// abandon throws away a connector whose pairing did not complete.
func (a *Adapter) abandon(c Connector) {
	a.unwire(c)
	a.mu.Lock()
	if a.connector == c {
		a.connector = nil
	}
	a.mu.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), abandonTimeout)
	defer cancel()
	if err := c.KillSession(ctx); err != nil {
		log.Debugf("wallet connect - abandon pairing: %v", err)
	}
	if a.modal != nil {
		a.modal.Close()
	}
}

func (a *Adapter) sessionEnded(c Connector) {
	a.mu.Lock()
	if a.connector == c {
		a.connector = nil
	}
	cb := a.onEnded
	a.mu.Unlock()
	if a.modal != nil {
		a.modal.Close()
	}
	if cb != nil {
		cb()
	}
}

func (a *Adapter) accountsChanged(address string) {
	a.mu.Lock()
	cb := a.onChanged
	a.mu.Unlock()
	if cb != nil {
		cb(address)
	}
}

type endedError struct {
	msg string
}

func (e endedError) Error() string { return e.msg }

func sessionEndedError(err error, p *Payload) error {
	if err != nil {
		return err
	}
	msg := "session ended before approval"
	if p != nil && p.Message != "" {
		msg = p.Message
	}
	return endedError{msg: msg}
}
