package wccrypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAes256RoundTrip(t *testing.T) {
	key, err := GenerateRandomBytes(KeySize)
	require.NoError(t, err)
	iv, err := GenerateRandomBytes(IVSize)
	require.NoError(t, err)

	for _, msg := range []string{"", "x", `{"id":1,"jsonrpc":"2.0","method":"wc_sessionRequest"}`, strings.Repeat("a", 16)} {
		cipherText, err := Aes256Encrypt([]byte(msg), key, iv)
		require.NoError(t, err)
		assert.Zero(t, len(cipherText)%IVSize)

		plain, err := Aes256Decrypt(cipherText, key, iv)
		require.NoError(t, err)
		assert.Equal(t, msg, string(plain))
	}
}

func TestAes256DecryptWrongKey(t *testing.T) {
	key, _ := GenerateRandomBytes(KeySize)
	other, _ := GenerateRandomBytes(KeySize)
	iv, _ := GenerateRandomBytes(IVSize)
	cipherText, err := Aes256Encrypt([]byte("payload that spans blocks......"), key, iv)
	require.NoError(t, err)

	plain, err := Aes256Decrypt(cipherText, other, iv)
	if err == nil {
		assert.NotEqual(t, "payload that spans blocks......", string(plain))
	}
}

func TestHmac(t *testing.T) {
	key := []byte("k")
	mac := HmacSha256([]byte("data"), key)
	assert.True(t, VerifyHmacSha256([]byte("data"), key, mac))
	assert.False(t, VerifyHmacSha256([]byte("date"), key, mac))
}

func TestWebSocketURL(t *testing.T) {
	assert.Equal(t, "wss://a.bridge.walletconnect.org?env=browser&protocol=wc&version=1",
		WebSocketURL("https://a.bridge.walletconnect.org", "browser"))
	assert.Equal(t, "ws://127.0.0.1:5001/?env=test&protocol=wc&version=1",
		WebSocketURL("http://127.0.0.1:5001/", "test"))
}

func TestPairingURI(t *testing.T) {
	uri := PairingURI("topic-1", "https://a.bridge.walletconnect.org", []byte{0xab, 0x01})
	assert.Equal(t, "wc:topic-1@1?bridge=https%3A%2F%2Fa.bridge.walletconnect.org&key=ab01", uri)
	assert.True(t, strings.HasPrefix(RandomBridgeURL(), "https://"))
}
