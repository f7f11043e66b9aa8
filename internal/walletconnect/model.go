package walletconnect

import (
	"encoding/json"
	"fungily.io/fungily-score/pkg/errors"
	"fungily.io/fungily-score/pkg/log"
	"strings"
)

// ClientMeta describes one side of the pairing to the other.
type ClientMeta struct {
	Description string   `json:"description"`
	URL         string   `json:"url"`
	Icons       []string `json:"icons"`
	Name        string   `json:"name"`
}

// Session is the persisted pairing handle. It is what lets a later process
// restore the wallet silently.
type Session struct {
	Connected      bool        `json:"connected"`
	Accounts       []string    `json:"accounts"`
	ChainID        int         `json:"chainId"`
	Bridge         string      `json:"bridge"`
	Key            string      `json:"key"`
	ClientID       string      `json:"clientId"`
	PeerID         string      `json:"peerId"`
	PeerMeta       *ClientMeta `json:"peerMeta,omitempty"`
	HandshakeID    int64       `json:"handshakeId"`
	HandshakeTopic string      `json:"handshakeTopic"`
}

func (s *Session) copy() *Session {
	cp := *s
	cp.Accounts = append([]string{}, s.Accounts...)
	if s.PeerMeta != nil {
		m := *s.PeerMeta
		cp.PeerMeta = &m
	}
	return &cp
}

// Payload is what event handlers receive.
type Payload struct {
	Accounts []string
	ChainID  int
	PeerID   string
	PeerMeta *ClientMeta
	Message  string
}

type wcMessagePayload struct {
	Data string `json:"data"`
	Hmac string `json:"hmac"`
	IV   string `json:"iv"`
}

func newWCMessagePayloadFromBytes(data []byte) (*wcMessagePayload, error) {
	var payload wcMessagePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, errors.Wrap(err, "unmarshal wallet connect message payload")
	}
	return &payload, nil
}

func (e *wcMessagePayload) Marshal() string {
	s, err := json.Marshal(e)
	if err != nil {
		log.Errorf("marshal:%v", err)
	}
	return string(s)
}

type peer struct {
	PeerID   string      `json:"peerId"`
	PeerMeta ClientMeta  `json:"peerMeta"`
	ChainID  interface{} `json:"chainId"`
}

// sessionParams is the body of wc_sessionUpdate and of the approval result.
type sessionParams struct {
	Approved  bool        `json:"approved"`
	ChainID   int         `json:"chainId"`
	NetworkID int         `json:"networkId"`
	Accounts  []string    `json:"accounts"`
	PeerID    string      `json:"peerId,omitempty"`
	PeerMeta  *ClientMeta `json:"peerMeta,omitempty"`
}

const (
	messagePub = "pub"
	messageSub = "sub"
	messageAck = "ack"
)

type wcMessage struct {
	Topic   string `json:"topic"`
	Type    string `json:"type"`
	Payload string `json:"payload"`
	Silent  bool   `json:"silent"`
}

func newWCMessageFromBytes(data []byte) (*wcMessage, error) {
	var msg wcMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, errors.Wrap(err, "unmarshal wallet connect message")
	}
	return &msg, nil
}

func (msg *wcMessage) Marshal() []byte {
	bytes, _ := json.Marshal(msg)
	return bytes
}

type jsonRpcRequest struct {
	Id      int64         `json:"id"`
	JSONRpc string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

func newJSONRpcRequest(id int64, method string, params ...interface{}) *jsonRpcRequest {
	r := &jsonRpcRequest{
		Id:      id,
		JSONRpc: "2.0",
		Method:  method,
		Params:  []interface{}{},
	}
	if len(params) > 0 {
		r.Params = params
	}
	return r
}

func (e *jsonRpcRequest) Marshal() string {
	s, err := json.Marshal(e)
	if err != nil {
		log.Errorf("marshal:%v", err)
	}
	return string(s)
}

// IsSilentPayload tells whether the relay should skip push notifications.
func (e *jsonRpcRequest) IsSilentPayload() bool {
	return strings.HasPrefix(e.Method, "wc_")
}
