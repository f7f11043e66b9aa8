package http

import (
	"fungily.io/fungily-score/internal/session"
	"fungily.io/fungily-score/pkg/log"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"time"
)

const (
	streamWriteTimeout = 10 * time.Second
	streamPingPeriod   = 30 * time.Second
)

// stream pushes the state on connect and after every session change. Bursts
// of changes are coalesced into one push of the latest state.
func (s *Server) stream(ctx *gin.Context) {
	conn, err := s.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		log.Warnf("upgrade wallet stream: %v", err)
		return
	}
	defer conn.Close()

	changed := make(chan struct{}, 1)
	unsubscribe := s.store.Subscribe(session.ObserverFunc(func(session.ConnectionState) {
		select {
		case changed <- struct{}{}:
		default:
		}
	}))
	defer unsubscribe()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(streamPingPeriod)
	defer ping.Stop()
	push := func() bool {
		_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
		if err := conn.WriteJSON(viewOf(s.ctrl.State())); err != nil {
			log.Debugf("wallet stream write: %v", err)
			return false
		}
		return true
	}
	if !push() {
		return
	}
	for {
		select {
		case <-changed:
			if !push() {
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}
