package walletconnect

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fungily.io/fungily-score/pkg/errors"
	"fungily.io/fungily-score/pkg/log"
	"fungily.io/fungily-score/pkg/wccrypto"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/skip2/go-qrcode"
	"github.com/tidwall/gjson"
	"go.uber.org/atomic"
	"sync"
	"time"
)

const (
	methodSessionRequest = "wc_sessionRequest"
	methodSessionUpdate  = "wc_sessionUpdate"

	defaultEnv        = "browser"
	defaultQRSize     = 256
	defaultStorageKey = "walletconnect"
	writeTimeout      = 10 * time.Second
)

var (
	errSessionRejected = errors.New("Session Rejected")
	errNotConnected    = errors.New("wallet connect session not connected")
	errAlreadyPaired   = errors.New("wallet connect session already connected")
)

// Options configures a Client. Zero values get defaults.
type Options struct {
	// BridgeURL is the relay; empty picks a random public bridge.
	BridgeURL string
	Meta      ClientMeta
	// ChainID requested from the wallet; 0 lets the wallet choose.
	ChainID    int
	Env        string
	QRSize     int
	Modal      QRCodeModal
	Storage    Storage
	StorageKey string
	Dialer     *websocket.Dialer
}

// Client speaks WalletConnect v1 to a bridge relay on behalf of the dapp.
type Client struct {
	opts Options

	mu       sync.Mutex
	session  *Session
	key      []byte
	uri      string
	conn     *websocket.Conn
	handlers map[string]EventHandler

	writeMu   sync.Mutex
	payloadID atomic.Int64
}

var _ Connector = (*Client)(nil)

// NewClient restores the stored session for opts.StorageKey, or prepares a
// fresh one.
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	if opts.Env == "" {
		opts.Env = defaultEnv
	}
	if opts.QRSize <= 0 {
		opts.QRSize = defaultQRSize
	}
	if opts.Storage == nil {
		opts.Storage = NewMemoryStorage()
	}
	if opts.StorageKey == "" {
		opts.StorageKey = defaultStorageKey
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	c := &Client{
		opts:     opts,
		handlers: make(map[string]EventHandler),
	}
	c.payloadID.Store(time.Now().UnixNano() / int64(time.Microsecond))

	stored, err := opts.Storage.Load(ctx, opts.StorageKey)
	switch {
	case err == nil && stored.Connected:
		key, err := hex.DecodeString(stored.Key)
		if err != nil || len(key) != wccrypto.KeySize {
			log.Warnf("wallet connect - discarding stored session with invalid key")
			_ = opts.Storage.Remove(ctx, opts.StorageKey)
			return c, c.newSession()
		}
		c.session, c.key = stored, key
		c.uri = wccrypto.PairingURI(stored.HandshakeTopic, stored.Bridge, key)
		log.Debugf("wallet connect - restored session with peer %v", stored.PeerID)
		return c, nil
	case err != nil && !errors.Is(err, ErrSessionNotFound):
		log.Warnf("wallet connect - load stored session: %v", err)
	}
	return c, c.newSession()
}

func (c *Client) newSession() error {
	key, err := wccrypto.GenerateRandomBytes(wccrypto.KeySize)
	if err != nil {
		return err
	}
	bridge := c.opts.BridgeURL
	if bridge == "" {
		bridge = wccrypto.RandomBridgeURL()
	}
	c.key = key
	c.session = &Session{
		Bridge:         bridge,
		Key:            hex.EncodeToString(key),
		ClientID:       uuid.NewString(),
		HandshakeTopic: uuid.NewString(),
		ChainID:        c.opts.ChainID,
	}
	c.uri = wccrypto.PairingURI(c.session.HandshakeTopic, bridge, key)
	return nil
}

func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.Connected
}

func (c *Client) Accounts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string{}, c.session.Accounts...)
}

func (c *Client) URI() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.uri
}

// QRCode renders the pairing URI.
func (c *Client) QRCode() ([]byte, error) {
	png, err := qrcode.Encode(c.URI(), qrcode.Medium, c.opts.QRSize)
	if err != nil {
		return nil, errors.Wrap(err, "encode wallet connect qr code")
	}
	return png, nil
}

func (c *Client) On(event string, handler EventHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[event] = handler
}

func (c *Client) Off(event string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.handlers, event)
}

func (c *Client) emit(event string, err error, payload *Payload) {
	c.mu.Lock()
	h := c.handlers[event]
	c.mu.Unlock()
	if h == nil {
		log.Debugf("wallet connect - no handler for %v event", event)
		return
	}
	h(err, payload)
}

func (c *Client) Resume(ctx context.Context) error {
	c.mu.Lock()
	connected := c.session.Connected
	c.mu.Unlock()
	if !connected {
		return errNotConnected
	}
	return c.ensureTransport(ctx)
}

func (c *Client) CreateSession(ctx context.Context) error {
	c.mu.Lock()
	if c.session.Connected {
		c.mu.Unlock()
		return errAlreadyPaired
	}
	c.session.HandshakeID = c.nextPayloadID()
	req := newJSONRpcRequest(c.session.HandshakeID, methodSessionRequest, peer{
		PeerID:   c.session.ClientID,
		PeerMeta: c.opts.Meta,
		ChainID:  chainIDParam(c.opts.ChainID),
	})
	topic := c.session.HandshakeTopic
	c.mu.Unlock()

	if err := c.ensureTransport(ctx); err != nil {
		return err
	}
	if err := c.publish(topic, req); err != nil {
		return err
	}
	log.Debugf("wallet connect - session request published, uri:%v", c.URI())

	if c.opts.Modal != nil {
		png, err := c.QRCode()
		if err != nil {
			return err
		}
		if err := c.opts.Modal.Open(c.URI(), png); err != nil {
			return errors.Wrap(err, "display wallet connect qr code")
		}
	}
	return nil
}

func (c *Client) KillSession(ctx context.Context) error {
	c.mu.Lock()
	wasConnected := c.session.Connected
	peerID := c.session.PeerID
	c.mu.Unlock()

	var sendErr error
	if wasConnected && peerID != "" {
		req := newJSONRpcRequest(c.nextPayloadID(), methodSessionUpdate, map[string]interface{}{
			"approved":  false,
			"chainId":   nil,
			"networkId": nil,
			"accounts":  nil,
		})
		if err := c.ensureTransport(ctx); err != nil {
			sendErr = err
		} else {
			sendErr = c.publish(peerID, req)
		}
	}
	c.endSession(ctx)
	c.emit(EventDisconnect, nil, &Payload{Message: "Session disconnected"})
	if sendErr != nil {
		return errors.Wrap(sendErr, "kill wallet connect session")
	}
	return nil
}

// endSession closes the transport and forgets the session locally.
func (c *Client) endSession(ctx context.Context) {
	c.closeTransport()
	c.mu.Lock()
	c.session.Connected = false
	c.session.Accounts = nil
	c.mu.Unlock()
	if err := c.opts.Storage.Remove(ctx, c.opts.StorageKey); err != nil {
		log.Warnf("wallet connect - remove stored session: %v", err)
	}
	if c.opts.Modal != nil {
		c.opts.Modal.Close()
	}
}

func (c *Client) ensureTransport(ctx context.Context) error {
	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		return nil
	}
	bridge, clientID := c.session.Bridge, c.session.ClientID
	c.mu.Unlock()

	wsURL := wccrypto.WebSocketURL(bridge, c.opts.Env)
	conn, _, err := c.opts.Dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return errors.WrapAndReport(err, "dial to wallet connect bridge url")
	}

	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		conn.Close()
		return nil
	}
	c.conn = conn
	c.mu.Unlock()

	if err := c.send(&wcMessage{Topic: clientID, Type: messageSub, Silent: true}); err != nil {
		c.closeTransport()
		return err
	}
	go c.readLoop(conn)
	return nil
}

func (c *Client) closeTransport() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn == nil {
		return
	}
	c.writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	c.writeMu.Unlock()
	conn.Close()
}

func (c *Client) send(msg *wcMessage) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return errNotConnected
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, msg.Marshal()); err != nil {
		return errors.Wrap(err, "write wallet connect message to server")
	}
	return nil
}

func (c *Client) publish(topic string, req *jsonRpcRequest) error {
	payload, err := c.encryptJSONRpc(req.Marshal())
	if err != nil {
		return err
	}
	return c.send(&wcMessage{
		Topic:   topic,
		Type:    messagePub,
		Payload: payload.Marshal(),
		Silent:  req.IsSilentPayload(),
	})
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			// a socket the client detached itself is not a relay loss
			c.mu.Lock()
			own := c.conn == conn
			if own {
				c.conn = nil
			}
			c.mu.Unlock()
			if !own {
				return
			}
			log.Warnf("wallet connect - relay connection lost: %v", err)
			conn.Close()
			c.emit(EventDisconnect, errors.Wrap(err, "read from wallet connect bridge"), &Payload{Message: "Relay connection lost"})
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		c.handleMessage(data)
	}
}

func (c *Client) handleMessage(data []byte) {
	msg, err := newWCMessageFromBytes(data)
	if err != nil {
		log.Warn(err)
		return
	}
	if msg.Type != messagePub || msg.Payload == "" {
		return
	}
	c.mu.Lock()
	clientID := c.session.ClientID
	c.mu.Unlock()
	if err := c.send(&wcMessage{Topic: clientID, Type: messageAck, Silent: true}); err != nil {
		log.Debugf("wallet connect - ack: %v", err)
	}
	payload, err := c.decryptJSONRpc(msg)
	if err != nil {
		log.Warnf("wallet connect - drop message: %v", err)
		return
	}
	log.Debugf("wallet connect - receive:%v", payload)

	if method := gjson.Get(payload, "method"); method.Exists() {
		if method.String() == methodSessionUpdate {
			c.handleSessionUpdate(payload)
		}
		return
	}
	c.mu.Lock()
	handshakeID := c.session.HandshakeID
	c.mu.Unlock()
	if gjson.Get(payload, "id").Int() == handshakeID {
		c.handleSessionResponse(payload)
	}
}

func (c *Client) handleSessionResponse(payload string) {
	if msg := gjson.Get(payload, "error.message"); msg.Exists() {
		c.closeModal()
		c.emit(EventConnect, errors.New(msg.String()), nil)
		return
	}
	var result sessionParams
	if err := json.Unmarshal([]byte(gjson.Get(payload, "result").Raw), &result); err != nil {
		c.emit(EventConnect, errors.Wrap(err, "unmarshal wallet info"), nil)
		return
	}
	if !result.Approved {
		c.closeModal()
		c.emit(EventConnect, errSessionRejected, nil)
		return
	}
	if len(result.Accounts) == 0 {
		c.emit(EventConnect, errors.New("no wallet accounts acquired"), nil)
		return
	}

	c.mu.Lock()
	c.session.Connected = true
	c.session.Accounts = append([]string{}, result.Accounts...)
	c.session.ChainID = result.ChainID
	c.session.PeerID = result.PeerID
	c.session.PeerMeta = result.PeerMeta
	snapshot := c.session.copy()
	c.mu.Unlock()

	c.save(snapshot)
	c.closeModal()
	c.emit(EventConnect, nil, payloadFrom(snapshot))
}

func (c *Client) handleSessionUpdate(payload string) {
	params := gjson.Get(payload, "params").Array()
	if len(params) == 0 {
		return
	}
	approved := params[0].Get("approved")
	if approved.Exists() && !approved.Bool() {
		log.Warnf("wallet connect - session closed by peer")
		c.endSession(context.Background())
		c.emit(EventDisconnect, nil, &Payload{Message: "Session disconnected by peer"})
		return
	}
	var update sessionParams
	if err := json.Unmarshal([]byte(params[0].Raw), &update); err != nil {
		log.Warnf("wallet connect - bad session update: %v", err)
		return
	}
	c.mu.Lock()
	if len(update.Accounts) > 0 {
		c.session.Accounts = append([]string{}, update.Accounts...)
	}
	if update.ChainID != 0 {
		c.session.ChainID = update.ChainID
	}
	snapshot := c.session.copy()
	c.mu.Unlock()

	c.save(snapshot)
	c.emit(EventSessionUpdate, nil, payloadFrom(snapshot))
}

func (c *Client) save(s *Session) {
	if err := c.opts.Storage.Save(context.Background(), c.opts.StorageKey, s); err != nil {
		log.Warnf("wallet connect - save session: %v", err)
	}
}

func (c *Client) closeModal() {
	if c.opts.Modal != nil {
		c.opts.Modal.Close()
	}
}

func (c *Client) encryptJSONRpc(jsonRpc string) (*wcMessagePayload, error) {
	iv, err := wccrypto.GenerateRandomBytes(wccrypto.IVSize)
	if err != nil {
		return nil, err
	}
	data, err := wccrypto.Aes256Encrypt([]byte(jsonRpc), c.key, iv)
	if err != nil {
		return nil, err
	}
	unsigned := append(append([]byte{}, data...), iv...)
	return &wcMessagePayload{
		Data: hex.EncodeToString(data),
		IV:   hex.EncodeToString(iv),
		Hmac: hex.EncodeToString(wccrypto.HmacSha256(unsigned, c.key)),
	}, nil
}

func (c *Client) decryptJSONRpc(msg *wcMessage) (string, error) {
	mp, err := newWCMessagePayloadFromBytes([]byte(msg.Payload))
	if err != nil {
		return "", err
	}
	iv, err := hex.DecodeString(mp.IV)
	if err != nil {
		return "", errors.Wrap(err, "decode iv hex")
	}
	cipherText, err := hex.DecodeString(mp.Data)
	if err != nil {
		return "", errors.Wrap(err, "decode cipher hex")
	}
	mac, err := hex.DecodeString(mp.Hmac)
	if err != nil {
		return "", errors.Wrap(err, "decode hmac hex")
	}
	unsigned := append(append([]byte{}, cipherText...), iv...)
	if !wccrypto.VerifyHmacSha256(unsigned, c.key, mac) {
		return "", wccrypto.ErrHmacMismatch
	}
	data, err := wccrypto.Aes256Decrypt(cipherText, c.key, iv)
	if err != nil {
		return "", errors.Wrap(err, "aes256 decrypt")
	}
	return string(data), nil
}

func (c *Client) nextPayloadID() int64 {
	return c.payloadID.Inc()
}

func payloadFrom(s *Session) *Payload {
	return &Payload{
		Accounts: append([]string{}, s.Accounts...),
		ChainID:  s.ChainID,
		PeerID:   s.PeerID,
		PeerMeta: s.PeerMeta,
	}
}

func chainIDParam(id int) interface{} {
	if id == 0 {
		return nil
	}
	return id
}
