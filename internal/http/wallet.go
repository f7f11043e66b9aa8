package http

import (
	"context"
	"fungily.io/fungily-score/internal/controller"
	"fungily.io/fungily-score/internal/databus"
	"fungily.io/fungily-score/internal/session"
	"fungily.io/fungily-score/pkg/errors"
	"fungily.io/fungily-score/pkg/log"
	"github.com/gin-gonic/gin"
	"net/http"
)

const (
	codeOK              = 0
	codeNoPairing       = 4040
	codeTooManyRequests = 4290
	codeInternal        = 5000
)

type stateView struct {
	Phase        string                   `json:"phase"`
	Previous     string                   `json:"previous,omitempty"`
	WalletType   string                   `json:"wallet_type"`
	Address      string                   `json:"address"`
	ShortAddress string                   `json:"short_address,omitempty"`
	Error        *session.ErrorDescriptor `json:"error,omitempty"`
}

func viewOf(st controller.State) stateView {
	v := stateView{
		Phase:      st.Phase.String(),
		WalletType: st.Kind.String(),
		Address:    st.Address,
		Error:      st.LastError,
	}
	if st.Phase == controller.Failed {
		v.Previous = st.Previous.String()
	}
	if st.Address != "" {
		v.ShortAddress = session.ShortAddress(st.Address)
	}
	return v
}

func ok(ctx *gin.Context, status int, data interface{}) {
	ctx.JSON(status, gin.H{"code": codeOK, "msg": "ok", "data": data})
}

func fail(ctx *gin.Context, status, code int, msg string) {
	ctx.AbortWithStatusJSON(status, gin.H{"code": code, "msg": msg})
}

func (s *Server) getState(ctx *gin.Context) {
	ok(ctx, http.StatusOK, viewOf(s.ctrl.State()))
}

func (s *Server) connectInjected(ctx *gin.Context) {
	ok(ctx, http.StatusOK, viewOf(s.ctrl.ConnectInjected(ctx.Request.Context())))
}

// connectBridge returns at once; pairing completes when the wallet scans the
// QR code, bounded by the connect timeout.
func (s *Server) connectBridge(ctx *gin.Context) {
	go func() {
		c, cancel := context.WithTimeout(context.Background(), s.conf.ConnectTimeout)
		defer cancel()
		st := s.ctrl.ConnectBridge(c)
		log.Debugf("bridge connect settled: %v", st.Phase)
	}()
	ok(ctx, http.StatusAccepted, viewOf(s.ctrl.State()))
}

func (s *Server) bridgeQRCode(ctx *gin.Context) {
	_, png, found := s.pairing.Current()
	if !found {
		fail(ctx, http.StatusNotFound, codeNoPairing, "no pairing in progress")
		return
	}
	ctx.Data(http.StatusOK, "image/png", png)
}

func (s *Server) bridgeURI(ctx *gin.Context) {
	uri, _, found := s.pairing.Current()
	if !found {
		fail(ctx, http.StatusNotFound, codeNoPairing, "no pairing in progress")
		return
	}
	ok(ctx, http.StatusOK, gin.H{"uri": uri})
}

func (s *Server) disconnect(ctx *gin.Context) {
	ok(ctx, http.StatusOK, viewOf(s.ctrl.Disconnect(ctx.Request.Context())))
}

func (s *Server) openModal(ctx *gin.Context) {
	if err := s.bus.Publish(databus.OpenWalletConnectModal{}); err != nil {
		log.Error(errors.Wrap(err, "publish open modal"))
		fail(ctx, http.StatusInternalServerError, codeInternal, "internal error")
		return
	}
	ok(ctx, http.StatusAccepted, nil)
}

// rateLimited fails open when the limiter itself errors.
func (s *Server) rateLimited() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		allowed, err := s.limit(ctx.Request.Context(), "wallet:connect:"+ctx.ClientIP(), s.conf.RateLimitPerMinute)
		if err != nil {
			log.Warnf("rate limit check: %v", err)
		}
		if !allowed {
			fail(ctx, http.StatusTooManyRequests, codeTooManyRequests, "too many requests")
			return
		}
		ctx.Next()
	}
}
