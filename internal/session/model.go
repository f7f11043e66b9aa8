package session

import "fmt"

// WalletType names the adapter that owns the active session.
type WalletType int

const (
	WalletNone WalletType = iota
	WalletInjected
	WalletBridge
)

func (t WalletType) String() string {
	switch t {
	case WalletInjected:
		return "metamask"
	case WalletBridge:
		return "walletconnect"
	default:
		return "none"
	}
}

// ErrorKind classifies connection failures.
type ErrorKind int

const (
	ProviderMissing ErrorKind = iota + 1
	UserRejected
	SessionFailed
	DisconnectFailed
)

func (k ErrorKind) String() string {
	switch k {
	case ProviderMissing:
		return "provider_missing"
	case UserRejected:
		return "user_rejected"
	case SessionFailed:
		return "session_failed"
	case DisconnectFailed:
		return "disconnect_failed"
	default:
		return "unknown"
	}
}

func (k ErrorKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *ErrorKind) UnmarshalText(text []byte) error {
	for c := ProviderMissing; c <= DisconnectFailed; c++ {
		if c.String() == string(text) {
			*k = c
			return nil
		}
	}
	return fmt.Errorf("unknown error kind %q", text)
}

// ErrorDescriptor is the failure shown to the user. It is also the error
// value adapters return, so callers can read the kind with errors.As.
type ErrorDescriptor struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

func NewError(kind ErrorKind, format string, args ...interface{}) *ErrorDescriptor {
	return &ErrorDescriptor{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func (e *ErrorDescriptor) Error() string {
	return e.Kind.String() + ": " + e.Message
}

// ConnectionState is the single source of truth rendered by the UI.
// Address is empty when disconnected; WalletType is WalletNone exactly then.
type ConnectionState struct {
	Address    string
	WalletType WalletType
	LastError  *ErrorDescriptor
}

// Connected reports whether a wallet currently owns the session.
func (s ConnectionState) Connected() bool {
	return s.Address != "" && s.WalletType != WalletNone
}

func (s ConnectionState) clone() ConnectionState {
	cp := s
	if s.LastError != nil {
		e := *s.LastError
		cp.LastError = &e
	}
	return cp
}

func (s ConnectionState) equal(o ConnectionState) bool {
	if s.Address != o.Address || s.WalletType != o.WalletType {
		return false
	}
	if s.LastError == nil || o.LastError == nil {
		return s.LastError == o.LastError
	}
	return *s.LastError == *o.LastError
}
