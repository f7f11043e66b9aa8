package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"fungily.io/fungily-score/internal/config"
	"fungily.io/fungily-score/internal/controller"
	"fungily.io/fungily-score/internal/databus"
	"fungily.io/fungily-score/internal/session"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

// fakeController reads its state from a real store.
type fakeController struct {
	mu       sync.Mutex
	store    *session.Store
	calls    []string
	bridgeCh chan struct{}
}

func (f *fakeController) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeController) called() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.calls...)
}

func (f *fakeController) State() controller.State {
	st := f.store.State()
	out := controller.State{Kind: st.WalletType, Address: st.Address, LastError: st.LastError}
	switch {
	case st.LastError != nil:
		out.Phase = controller.Failed
	case st.Connected():
		out.Phase = controller.Connected
	}
	return out
}

func (f *fakeController) ConnectInjected(context.Context) controller.State {
	f.record("injected")
	f.store.SetConnected(session.WalletInjected, "0x52908400098527886e0f7030069857d2e4169ee7")
	return f.State()
}

func (f *fakeController) ConnectBridge(context.Context) controller.State {
	f.record("bridge")
	if f.bridgeCh != nil {
		close(f.bridgeCh)
	}
	return f.State()
}

func (f *fakeController) Disconnect(context.Context) controller.State {
	f.record("disconnect")
	f.store.Reset()
	return f.State()
}

type fakePairing struct {
	uri string
	png []byte
}

func (p *fakePairing) Current() (string, []byte, bool) {
	return p.uri, p.png, p.uri != ""
}

type fixture struct {
	store   *session.Store
	ctrl    *fakeController
	pairing *fakePairing
	bus     *databus.DataBus
	server  *Server
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	t.Setenv("DEBUG", "1")
	f := &fixture{store: session.NewStore(), pairing: &fakePairing{}, bus: databus.New(nil)}
	f.ctrl = &fakeController{store: f.store}
	f.server = NewServer(f.ctrl, f.store, f.pairing, f.bus, config.HTTP{
		RequestTimeout:     time.Second,
		ConnectTimeout:     time.Second,
		RateLimitPerMinute: 2,
	}, opts...)
	return f
}

func (f *fixture) do(method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = "10.0.0.1:1234"
	f.server.Handler().ServeHTTP(w, req)
	return w
}

func TestGetState(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodGet, "/wallet/state")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Equal(t, "disconnected", gjson.Get(body, "data.phase").String())
	assert.Equal(t, "none", gjson.Get(body, "data.wallet_type").String())
	assert.False(t, gjson.Get(body, "data.error").Exists())
	assert.NotEmpty(t, w.Header().Get("x-request-id"))
}

func TestConnectInjectedRoute(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodPost, "/wallet/connect/injected")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Equal(t, "connected", gjson.Get(body, "data.phase").String())
	assert.Equal(t, "metamask", gjson.Get(body, "data.wallet_type").String())
	assert.Equal(t, "0x52908400098527886E0F7030069857D2E4169EE7", gjson.Get(body, "data.address").String())
	assert.Equal(t, "0x5290...9EE7", gjson.Get(body, "data.short_address").String())
}

func TestErrorIsRendered(t *testing.T) {
	f := newFixture(t)
	f.store.SetError(session.NewError(session.ProviderMissing, "MetaMask not installed"))

	body := f.do(http.MethodGet, "/wallet/state").Body.String()
	assert.Equal(t, "error", gjson.Get(body, "data.phase").String())
	assert.Equal(t, "disconnected", gjson.Get(body, "data.previous").String())
	assert.Equal(t, "provider_missing", gjson.Get(body, "data.error.kind").String())
	assert.Equal(t, "MetaMask not installed", gjson.Get(body, "data.error.message").String())
}

func TestConnectBridgeRunsInBackground(t *testing.T) {
	f := newFixture(t)
	f.ctrl.bridgeCh = make(chan struct{})

	w := f.do(http.MethodPost, "/wallet/connect/bridge")
	assert.Equal(t, http.StatusAccepted, w.Code)
	select {
	case <-f.ctrl.bridgeCh:
	case <-time.After(time.Second):
		t.Fatal("bridge connect not started")
	}
}

func TestBridgePairingRoutes(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/wallet/bridge/qr").Code)
	w := f.do(http.MethodGet, "/wallet/bridge/uri")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, int64(codeNoPairing), gjson.Get(w.Body.String(), "code").Int())

	f.pairing.uri, f.pairing.png = "wc:topic@1?bridge=x&key=y", []byte{0x89, 'P', 'N', 'G'}
	w = f.do(http.MethodGet, "/wallet/bridge/qr")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, f.pairing.png, w.Body.Bytes())

	w = f.do(http.MethodGet, "/wallet/bridge/uri")
	assert.Equal(t, "wc:topic@1?bridge=x&key=y", gjson.Get(w.Body.String(), "data.uri").String())
}

func TestDisconnectRoute(t *testing.T) {
	f := newFixture(t)
	f.store.SetConnected(session.WalletBridge, "0xabc")

	w := f.do(http.MethodPost, "/wallet/disconnect")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "disconnected", gjson.Get(w.Body.String(), "data.phase").String())
	assert.Equal(t, []string{"disconnect"}, f.ctrl.called())
}

func TestOpenModalPublishes(t *testing.T) {
	f := newFixture(t)
	published := 0
	f.bus.Subscribe(databus.TopicOpenWalletConnectModal, func(databus.Event) { published++ })

	assert.Equal(t, http.StatusAccepted, f.do(http.MethodPost, "/wallet/modal").Code)
	assert.Equal(t, 1, published)
}

func TestConnectIsRateLimited(t *testing.T) {
	var keys []string
	budget := map[string]int{}
	f := newFixture(t, WithLimiter(func(_ context.Context, key string, perMinute int) (bool, error) {
		keys = append(keys, key)
		budget[key]++
		return budget[key] <= perMinute, nil
	}))

	assert.Equal(t, http.StatusOK, f.do(http.MethodPost, "/wallet/connect/injected").Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodPost, "/wallet/connect/injected").Code)
	w := f.do(http.MethodPost, "/wallet/connect/injected")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, int64(codeTooManyRequests), gjson.Get(w.Body.String(), "code").Int())
	assert.Equal(t, []string{"injected", "injected"}, f.ctrl.called())
	assert.Equal(t, "wallet:connect:10.0.0.1", keys[0])

	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/wallet/state").Code, "reads are not limited")
}

func TestStreamPushesChanges(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.server.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/wallet/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var first stateView
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, "disconnected", first.Phase)

	f.store.SetConnected(session.WalletBridge, "0xdef")
	var next stateView
	require.NoError(t, conn.ReadJSON(&next))
	assert.Equal(t, "connected", next.Phase)
	assert.Equal(t, "walletconnect", next.WalletType)
	assert.Equal(t, "0xdef", next.Address)
}
