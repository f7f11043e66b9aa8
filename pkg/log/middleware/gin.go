package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"fungily.io/fungily-score/pkg/errors"
	"fungily.io/fungily-score/pkg/log"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"net/http"
	"strings"
	"time"
)

// ///////////////////////////////////////////////////////////
// ///////////////////   Gin Middleware  /////////////////////
// ///////////////////////////////////////////////////////////
// Custom response writer to record handler response body.
type responseBodyWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

// Write writes response message into response body and the connection.
func (r responseBodyWriter) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

const requestIDHeader = "x-request-id"

// RecoveredHTTPLog logs every request with its response code and latency and
// turns handler panics into reported errors.
// Websocket upgrades are logged but their body is not captured.
func RecoveredHTTPLog() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		requestID := ctx.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
			ctx.Request.Header.Set(requestIDHeader, requestID)
		}
		ctx.Header(requestIDHeader, requestID)

		w := &responseBodyWriter{body: &bytes.Buffer{}, ResponseWriter: ctx.Writer}
		if !isUpgrade(ctx.Request) {
			ctx.Writer = w
		}

		start := time.Now()
		defer func() {
			if r := recover(); r != nil {
				log.Error(errors.ErrorfAndReport("%v", r))
			}
			logHTTP(ctx, w, requestID, start)
		}()
		ctx.Next()
	}
}

const defaultRequestTimeout = time.Second * 60

// TimeoutHTTP bounds the request context.
func TimeoutHTTP(timeout ...time.Duration) gin.HandlerFunc {
	d := defaultRequestTimeout
	if len(timeout) != 0 && timeout[0] > 0 {
		d = timeout[0]
	}
	return func(ctx *gin.Context) {
		if isUpgrade(ctx.Request) {
			ctx.Next()
			return
		}
		timeoutCtx, cancelFunc := context.WithTimeout(ctx.Request.Context(), d)
		defer cancelFunc()
		ctx.Request = ctx.Request.WithContext(timeoutCtx)
		ctx.Next()
	}
}

func isUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

func logHTTP(ctx *gin.Context, w *responseBodyWriter, requestID string, start time.Time) {
	if !ctx.Writer.Written() {
		ctx.JSON(http.StatusInternalServerError, map[string]interface{}{
			"code": 5000,
			"msg":  "Server internal error",
		})
	}

	s := ctx.Writer.Status()
	resp := decodeHandlerResponse(w.body.Bytes(), s)
	entry := log.WithFields(log.Fields{
		"request_id": requestID,
		"method":     ctx.Request.Method,
		"api":        ctx.Request.URL.Path,
		"remote":     ctx.ClientIP(),
		"headers":    requestHeaderFilter(ctx.Request.Header),
		"status":     s,
		"code":       resp.Code,
		"elapsed_ms": time.Since(start).Milliseconds(),
	})
	switch {
	case s < http.StatusBadRequest:
		entry.Info("http request")
	case s >= http.StatusInternalServerError:
		entry.Error("http request")
	default:
		entry.Warn("http request")
	}
}

type response struct {
	//Code is the response business code.
	Code interface{} `json:"code,omitempty"`
	//Message is the response message.
	Message interface{} `json:"msg,omitempty"`
}

func decodeHandlerResponse(respBody []byte, httpCode int) *response {
	var resp response
	if len(respBody) == 0 {
		resp.Code = httpCode
		return &resp
	}
	_ = json.Unmarshal(respBody, &resp)
	if resp.Code == nil {
		resp.Code = httpCode
	}
	return &resp
}

var excludedHeaders = map[string]bool{
	"token":         true,
	"access-token":  true,
	"authorization": true,
	"cookie":        true,
}

func requestHeaderFilter(headers map[string][]string) map[string]string {
	filtered := make(map[string]string)
	for k, v := range headers {
		k = strings.ToLower(k)
		if excludedHeaders[k] {
			continue
		}
		filtered[k] = strings.Join(v, ";")
	}
	return filtered
}
