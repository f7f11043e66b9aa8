package http

import (
	"context"
	"fungily.io/fungily-score/internal/cache"
	"fungily.io/fungily-score/internal/config"
	"fungily.io/fungily-score/internal/controller"
	"fungily.io/fungily-score/internal/databus"
	"fungily.io/fungily-score/internal/session"
	"fungily.io/fungily-score/pkg/log"
	"fungily.io/fungily-score/pkg/log/middleware"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"net/http"
	"time"
)

// Controller is the connection lifecycle the routes drive.
type Controller interface {
	State() controller.State
	ConnectInjected(ctx context.Context) controller.State
	ConnectBridge(ctx context.Context) controller.State
	Disconnect(ctx context.Context) controller.State
}

// Pairing exposes the bridge pairing currently on display.
type Pairing interface {
	Current() (uri string, png []byte, ok bool)
}

type Publisher interface {
	Publish(e databus.Event) error
}

// StateSource notifies on every wallet session change.
type StateSource interface {
	Subscribe(o session.Observer) (unsubscribe func())
}

// Limiter spends one request of key's per-minute budget.
type Limiter func(ctx context.Context, key string, perMinute int) (bool, error)

const shutdownTimeout = 5 * time.Second

type Server struct {
	ctrl    Controller
	store   StateSource
	pairing Pairing
	bus     Publisher
	conf    config.HTTP
	limit   Limiter

	router   *gin.Engine
	srv      *http.Server
	upgrader websocket.Upgrader
}

type Option func(*Server)

func WithLimiter(l Limiter) Option {
	return func(s *Server) {
		s.limit = l
	}
}

func NewServer(ctrl Controller, store StateSource, pairing Pairing, bus Publisher, conf config.HTTP, opts ...Option) *Server {
	s := &Server{
		ctrl:    ctrl,
		store:   store,
		pairing: pairing,
		bus:     bus,
		conf:    conf,
		limit:   cache.Allow,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *gin.Engine {
	router := gin.New()
	router.Use(middleware.RecoveredHTTPLog(), middleware.TimeoutHTTP(s.conf.RequestTimeout))

	wallet := router.Group("/wallet")
	wallet.GET("/state", s.getState)
	wallet.POST("/connect/injected", s.rateLimited(), s.connectInjected)
	wallet.POST("/connect/bridge", s.rateLimited(), s.connectBridge)
	wallet.GET("/bridge/qr", s.bridgeQRCode)
	wallet.GET("/bridge/uri", s.bridgeURI)
	wallet.POST("/disconnect", s.disconnect)
	wallet.POST("/modal", s.openModal)
	wallet.GET("/stream", s.stream)
	return router
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves in the background until Stop.
func (s *Server) Start(context.Context) {
	s.srv = &http.Server{Addr: s.conf.Listen, Handler: s.router}
	go func() {
		log.Infof("http server listening on %v", s.conf.Listen)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()
}

func (s *Server) Stop() {
	if s.srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(ctx); err != nil {
		log.Warnf("http server shutdown: %v", err)
	}
}
