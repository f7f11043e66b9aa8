package injected

import (
	"context"
	"fungily.io/fungily-score/internal/session"
	"fungily.io/fungily-score/pkg/errors"
	"fungily.io/fungily-score/pkg/log"
	"sync"
)

// DefaultInstallURL is opened when no injected wallet is present.
const DefaultInstallURL = "https://metamask.io/download.html"

// rpcCoder matches provider errors that carry a JSON-RPC error code.
type rpcCoder interface {
	ErrorCode() int
}

// Adapter connects through an injected provider. A nil provider means the
// environment has no injected wallet.
type Adapter struct {
	mu          sync.Mutex
	provider    Provider
	installURL  string
	openInstall func(url string)
}

type Option func(*Adapter)

// WithInstallPage sets the page opened when the provider is missing and the
// function that opens it.
func WithInstallPage(url string, open func(url string)) Option {
	return func(a *Adapter) {
		if url != "" {
			a.installURL = url
		}
		a.openInstall = open
	}
}

func NewAdapter(provider Provider, opts ...Option) *Adapter {
	a := &Adapter{
		provider:   provider,
		installURL: DefaultInstallURL,
		openInstall: func(url string) {
			log.Infof("injected wallet - no provider found, install from %v", url)
		},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// IsAvailable reports whether an injected provider exists.
func (a *Adapter) IsAvailable() bool {
	return a.currentProvider() != nil
}

func (a *Adapter) currentProvider() Provider {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.provider
}

// Connect asks the provider for account access. Any previous accountsChanged
// listener is removed first so a stale callback never fires. Failures are
// *session.ErrorDescriptor values.
func (a *Adapter) Connect(ctx context.Context) ([]string, error) {
	p := a.currentProvider()
	if p == nil {
		if a.openInstall != nil {
			a.openInstall(a.installURL)
		}
		return nil, session.NewError(session.ProviderMissing, "MetaMask not installed")
	}
	p.RemoveAllListeners(EventAccountsChanged)

	accounts, err := p.Request(ctx, MethodRequestAccounts)
	if err != nil {
		log.Warnf("injected wallet - request accounts: %v", err)
		var coded rpcCoder
		if errors.As(err, &coded) && coded.ErrorCode() == codeUserRejected {
			return nil, session.NewError(session.UserRejected, "user rejected the request")
		}
		return nil, session.NewError(session.UserRejected, "failed to connect MetaMask: %v", err)
	}
	if len(accounts) == 0 {
		return nil, session.NewError(session.UserRejected, "no accounts authorized")
	}
	log.Debugf("injected wallet - accounts granted: %v", accounts)
	return accounts, nil
}

// OnAccountsChanged keeps exactly one live accountsChanged subscription.
// An empty account list means access was revoked: the adapter disconnects
// and calls onRevoked instead of onChanged.
func (a *Adapter) OnAccountsChanged(onChanged func(address string), onRevoked func()) {
	p := a.currentProvider()
	if p == nil {
		return
	}
	p.RemoveAllListeners(EventAccountsChanged)
	p.On(EventAccountsChanged, func(accounts []string) {
		if len(accounts) == 0 {
			log.Info("injected wallet - accounts revoked by provider")
			a.Disconnect()
			if onRevoked != nil {
				onRevoked()
			}
			return
		}
		if onChanged != nil {
			onChanged(accounts[0])
		}
	})
}

// Disconnect drops the accountsChanged subscription. Injected wallets keep
// no remote session, so there is nothing else to tear down.
func (a *Adapter) Disconnect() {
	if p := a.currentProvider(); p != nil {
		p.RemoveAllListeners(EventAccountsChanged)
	}
}
