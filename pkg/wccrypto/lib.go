package wccrypto

import (
	"encoding/hex"
	"fmt"
	"math/rand"
	"net/url"
	"strings"
	"time"
)

// Protocol values sent to the bridge when opening the socket.
const (
	Protocol = "wc"
	Version  = "1"
)

const (
	alphanumerical  = "abcdefghijklmnopqrstuvwxyz0123456789"
	bridgeURLFormat = "https://%v.bridge.walletconnect.org"
)

var bridgeRand = rand.New(rand.NewSource(time.Now().UnixNano()))

// RandomBridgeURL picks one of the public v1 bridge shards.
func RandomBridgeURL() string {
	c := alphanumerical[bridgeRand.Intn(len(alphanumerical))]
	return fmt.Sprintf(bridgeURLFormat, string(c))
}

// WebSocketURL turns a bridge http(s) URL into the socket URL the relay expects.
func WebSocketURL(bridgeURL, env string) string {
	u := bridgeURL
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	sep := "?"
	if strings.Contains(u, "?") {
		sep = "&"
	}
	q := url.Values{}
	q.Set("env", env)
	q.Set("protocol", Protocol)
	q.Set("version", Version)
	return u + sep + q.Encode()
}

// PairingURI is the wc: URI a wallet scans to join the handshake topic.
func PairingURI(handshakeTopic, bridgeURL string, key []byte) string {
	return fmt.Sprintf("wc:%s@%s?bridge=%s&key=%s",
		handshakeTopic, Version, url.QueryEscape(bridgeURL), hex.EncodeToString(key))
}
