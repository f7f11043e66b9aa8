package databus

import (
	"encoding/json"
	"fungily.io/fungily-score/internal/session"
	"fungily.io/fungily-score/pkg/log"
	"time"
)

// TopicOpenWalletConnectModal is the event decoupled UI publishes to ask for
// the wallet chooser. Other components rely on the exact name.
const TopicOpenWalletConnectModal = "openWalletConnectModal"

const DefaultStateTopic = "wallet_session"

type OpenWalletConnectModal struct{}

func (OpenWalletConnectModal) Topic() string {
	return TopicOpenWalletConnectModal
}

func (OpenWalletConnectModal) Serialize() []byte {
	return []byte("{}")
}

// StateChanged carries a store snapshot.
type StateChanged struct {
	topic        string
	Address      string                   `json:"address"`
	ShortAddress string                   `json:"short_address"`
	WalletType   string                   `json:"wallet_type"`
	Connected    bool                     `json:"connected"`
	Error        *session.ErrorDescriptor `json:"error,omitempty"`
	At           int64                    `json:"at"`
}

func NewStateChanged(topic string, st session.ConnectionState) *StateChanged {
	if topic == "" {
		topic = DefaultStateTopic
	}
	e := &StateChanged{
		topic:      topic,
		Address:    st.Address,
		WalletType: st.WalletType.String(),
		Connected:  st.Connected(),
		Error:      st.LastError,
		At:         time.Now().UnixMilli(),
	}
	if st.Address != "" {
		e.ShortAddress = session.ShortAddress(st.Address)
	}
	return e
}

func (e *StateChanged) Topic() string {
	return e.topic
}

func (e *StateChanged) Serialize() []byte {
	b, err := json.Marshal(e)
	if err != nil {
		log.Errorf("marshal state event:%v", err)
	}
	return b
}

// StateObserver publishes every store change on topic.
func StateObserver(db *DataBus, topic string) session.Observer {
	return session.ObserverFunc(func(st session.ConnectionState) {
		if err := db.Publish(NewStateChanged(topic, st)); err != nil {
			log.Warnf("publish wallet state: %v", err)
		}
	})
}
