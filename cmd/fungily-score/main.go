package main

import (
	"context"
	"fungily.io/fungily-score/internal/cache"
	"fungily.io/fungily-score/internal/config"
	"fungily.io/fungily-score/internal/controller"
	"fungily.io/fungily-score/internal/databus"
	"fungily.io/fungily-score/internal/http"
	"fungily.io/fungily-score/internal/injected"
	"fungily.io/fungily-score/internal/session"
	"fungily.io/fungily-score/internal/starter"
	"fungily.io/fungily-score/internal/walletconnect"
	"fungily.io/fungily-score/pkg/errors"
	"fungily.io/fungily-score/pkg/log"
	"github.com/gorilla/websocket"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	log.Infof("Starting app")
	startApp()
}

func startApp() {
	defer func() {
		if i := recover(); i != nil {
			log.Fatal(errors.ErrorfAndReport("%v", i))
		}
	}()
	config.Read()
	conf := config.Global
	log.SetLevelName(conf.LogLevel)
	if errors.ReportersEnabled() {
		if err := errors.NewSentryReporter(conf.SentryDSN); err != nil {
			log.Error(err)
		}
		errors.NewLarkReporter(conf.LarkAlarmWebhook, time.Minute)
	}
	ctx := context.Background()

	if err := cache.Init(&conf.RedisCredential); err != nil {
		log.Fatal(err)
	}
	defer cache.Close()
	if err := databus.InitDataBus(conf.Kafka.Servers); err != nil {
		log.Fatal(err)
	}
	bus := databus.GetDataBus()
	defer bus.Close()

	store := session.NewStore()
	store.Subscribe(databus.StateObserver(bus, conf.Kafka.StateTopic))

	provider, closeProvider := injectedProvider(ctx, conf.Injected)
	defer closeProvider()
	injectedAdapter := injected.NewAdapter(provider, injected.WithInstallPage(conf.Injected.InstallURL, func(url string) {
		log.Warnf("no injected wallet available, install one from %v", url)
	}))

	display := walletconnect.NewPairingDisplay()
	bridgeAdapter := walletconnect.NewAdapter(bridgeConnectors(conf.Bridge, display), display)

	ctrl := controller.New(store, injectedAdapter, bridgeAdapter, controller.WithEventBus(bus))
	server := http.NewServer(ctrl, store, display, bus, conf.HTTP)

	services := []starter.Startable{ctrl, server}
	starter.Start(ctx, services...)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	log.Infof("received %v, shutting down", <-sig)
	starter.Stop(services...)
}

// injectedProvider dials the configured JSON-RPC endpoint. Without one the
// injected wallet is reported missing.
func injectedProvider(ctx context.Context, conf config.Injected) (injected.Provider, func()) {
	if conf.Endpoint == "" {
		return nil, func() {}
	}
	p, err := injected.DialRPCProvider(ctx, conf.Endpoint, conf.PollInterval)
	if err != nil {
		log.Warnf("dial injected provider %v: %v", conf.Endpoint, err)
		return nil, func() {}
	}
	return p, p.Close
}

func bridgeConnectors(conf config.Bridge, modal walletconnect.QRCodeModal) walletconnect.ConnectorFactory {
	var storage walletconnect.Storage = walletconnect.NewMemoryStorage()
	if cache.Enabled() {
		storage = cache.NewSessionStorage(cache.Redis, conf.SessionTTL)
	}
	opts := walletconnect.Options{
		BridgeURL: conf.URL,
		Meta: walletconnect.ClientMeta{
			Name:        conf.Meta.Name,
			Description: conf.Meta.Description,
			URL:         conf.Meta.URL,
			Icons:       conf.Meta.Icons,
		},
		ChainID:    conf.ChainID,
		QRSize:     conf.QRSize,
		Modal:      modal,
		Storage:    storage,
		StorageKey: conf.StorageKey,
		Dialer: &websocket.Dialer{
			Proxy:            websocket.DefaultDialer.Proxy,
			HandshakeTimeout: conf.DialTimeout,
		},
	}
	return func() (walletconnect.Connector, error) {
		ctx, cancel := context.WithTimeout(context.Background(), conf.DialTimeout)
		defer cancel()
		c, err := walletconnect.NewClient(ctx, opts)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}
