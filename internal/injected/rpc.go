package injected

import (
	"context"
	"fungily.io/fungily-score/pkg/errors"
	"fungily.io/fungily-score/pkg/log"
	"github.com/ethereum/go-ethereum/rpc"
	"sync"
	"time"
)

const defaultPollInterval = 2 * time.Second

// RPCProvider is a Provider backed by an EIP-1193 capable JSON-RPC endpoint,
// e.g. a desktop wallet exposing ws://127.0.0.1:1248.
type RPCProvider struct {
	client       *rpc.Client
	pollInterval time.Duration

	mu       sync.Mutex
	watchers map[string][]context.CancelFunc
	closed   bool
}

// DialRPCProvider connects to the wallet endpoint.
func DialRPCProvider(ctx context.Context, endpoint string, pollInterval time.Duration) (*RPCProvider, error) {
	if endpoint == "" {
		return nil, errors.New("empty injected provider endpoint")
	}
	client, err := rpc.DialContext(ctx, endpoint)
	if err != nil {
		return nil, errors.Wrapf(err, "dial injected provider %v", endpoint)
	}
	return NewRPCProvider(client, pollInterval), nil
}

func NewRPCProvider(client *rpc.Client, pollInterval time.Duration) *RPCProvider {
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	return &RPCProvider{
		client:       client,
		pollInterval: pollInterval,
		watchers:     make(map[string][]context.CancelFunc),
	}
}

func (p *RPCProvider) Request(ctx context.Context, method string) ([]string, error) {
	var accounts []string
	if err := p.client.CallContext(ctx, &accounts, method); err != nil {
		return nil, err
	}
	return accounts, nil
}

// On watches accountsChanged through eth_subscribe, or by polling
// eth_accounts when the transport has no notifications.
func (p *RPCProvider) On(event string, handler AccountsHandler) {
	if event != EventAccountsChanged {
		log.Warnf("injected wallet - unsupported provider event %v", event)
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.watchers[event] = append(p.watchers[event], cancel)
	go p.watch(ctx, handler)
}

func (p *RPCProvider) RemoveAllListeners(event string) {
	p.mu.Lock()
	cancels := p.watchers[event]
	delete(p.watchers, event)
	p.mu.Unlock()
	for _, cancel := range cancels {
		cancel()
	}
}

// Close stops all watchers and closes the client.
func (p *RPCProvider) Close() {
	p.mu.Lock()
	p.closed = true
	all := p.watchers
	p.watchers = make(map[string][]context.CancelFunc)
	p.mu.Unlock()
	for _, cancels := range all {
		for _, cancel := range cancels {
			cancel()
		}
	}
	p.client.Close()
}

func (p *RPCProvider) watch(ctx context.Context, handler AccountsHandler) {
	ch := make(chan []string, 4)
	sub, err := p.client.EthSubscribe(ctx, ch, EventAccountsChanged)
	if err != nil {
		log.Debugf("injected wallet - accountsChanged subscription unavailable (%v), polling", err)
		p.poll(ctx, handler)
		return
	}
	defer sub.Unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-sub.Err():
			if err != nil {
				log.Warnf("injected wallet - accountsChanged subscription dropped: %v, polling", err)
				p.poll(ctx, handler)
			}
			return
		case accounts := <-ch:
			if ctx.Err() != nil {
				return
			}
			handler(accounts)
		}
	}
}

func (p *RPCProvider) poll(ctx context.Context, handler AccountsHandler) {
	last, err := p.Request(ctx, MethodAccounts)
	if err != nil && ctx.Err() == nil {
		log.Warnf("injected wallet - poll accounts: %v", err)
	}
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			accounts, err := p.Request(ctx, MethodAccounts)
			if err != nil {
				if ctx.Err() == nil {
					log.Warnf("injected wallet - poll accounts: %v", err)
				}
				continue
			}
			if sameAccounts(last, accounts) {
				continue
			}
			last = accounts
			if ctx.Err() == nil {
				handler(accounts)
			}
		}
	}
}

func sameAccounts(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
