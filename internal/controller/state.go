package controller

import "fungily.io/fungily-score/internal/session"

// Phase is the controller's view of the connection lifecycle.
type Phase int

const (
	Disconnected Phase = iota
	Connecting
	Connected
	Failed
)

func (p Phase) String() string {
	switch p {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Failed:
		return "error"
	default:
		return "disconnected"
	}
}

// State is a snapshot of the controller. Kind is the adapter being connected
// or the one owning the session. Previous is only meaningful in Failed and
// tells whether a session survived the failure.
type State struct {
	Phase     Phase
	Kind      session.WalletType
	Address   string
	Previous  Phase
	LastError *session.ErrorDescriptor
}

func stateOf(st session.ConnectionState, connecting session.WalletType) State {
	s := State{
		Kind:      st.WalletType,
		Address:   st.Address,
		LastError: st.LastError,
	}
	switch {
	case connecting != session.WalletNone:
		s.Phase, s.Kind = Connecting, connecting
	case st.LastError != nil:
		s.Phase, s.Previous = Failed, Disconnected
		if st.Connected() {
			s.Previous = Connected
		}
	case st.Connected():
		s.Phase = Connected
	}
	return s
}
