package injected

import "context"

// Event and method names of the EIP-1193 provider surface used here.
const (
	EventAccountsChanged = "accountsChanged"

	MethodRequestAccounts = "eth_requestAccounts"
	MethodAccounts        = "eth_accounts"
)

// codeUserRejected is the EIP-1193 "user rejected the request" error code.
const codeUserRejected = 4001

// AccountsHandler receives the provider's full account list.
type AccountsHandler func(accounts []string)

// Provider is the injected wallet capability (window.ethereum in a browser,
// a local signer daemon elsewhere).
type Provider interface {
	// Request performs an account-returning RPC such as eth_requestAccounts.
	Request(ctx context.Context, method string) ([]string, error)
	// On adds a handler for the event.
	On(event string, handler AccountsHandler)
	// RemoveAllListeners drops every handler of the event.
	RemoveAllListeners(event string)
}
