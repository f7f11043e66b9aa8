package databus

import (
	"sync"
	"testing"

	"fungily.io/fungily-score/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"gopkg.in/Shopify/sarama.v1"
)

type fakeProducer struct {
	mu     sync.Mutex
	sent   []*sarama.ProducerMessage
	err    error
	closed bool
}

func (p *fakeProducer) SendMessage(msg *sarama.ProducerMessage) (int32, int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return 0, 0, p.err
	}
	p.sent = append(p.sent, msg)
	return 0, int64(len(p.sent)), nil
}

func (p *fakeProducer) SendMessages(msgs []*sarama.ProducerMessage) error {
	for _, m := range msgs {
		if _, _, err := p.SendMessage(m); err != nil {
			return err
		}
	}
	return nil
}

func (p *fakeProducer) Close() error {
	p.closed = true
	return nil
}

func TestPublishFanOut(t *testing.T) {
	db := New(nil)
	var got []string
	unsubscribe := db.Subscribe(TopicOpenWalletConnectModal, func(e Event) { got = append(got, "a:"+e.Topic()) })
	db.Subscribe(TopicOpenWalletConnectModal, func(e Event) { got = append(got, "b") })
	db.Subscribe("other", func(e Event) { got = append(got, "other") })

	require.NoError(t, db.Publish(OpenWalletConnectModal{}))
	assert.ElementsMatch(t, []string{"a:openWalletConnectModal", "b"}, got)

	unsubscribe()
	unsubscribe()
	got = nil
	require.NoError(t, db.Publish(OpenWalletConnectModal{}))
	assert.Equal(t, []string{"b"}, got)
}

func TestPanickingHandlerIsContained(t *testing.T) {
	t.Setenv("DEBUG", "1")
	db := New(nil)
	called := false
	db.Subscribe("t", func(Event) { panic("boom") })
	db.Subscribe("t", func(Event) { called = true })

	assert.NotPanics(t, func() { db.PublishLocal(NewStateChanged("t", session.ConnectionState{})) })
	assert.True(t, called)
}

func TestPublishToKafka(t *testing.T) {
	p := &fakeProducer{}
	db := New(p)
	obs := StateObserver(db, "")

	obs.OnStateChanged(session.ConnectionState{
		Address:    "0x52908400098527886E0F7030069857D2E4169EE7",
		WalletType: session.WalletInjected,
	})
	obs.OnStateChanged(session.ConnectionState{LastError: session.NewError(session.UserRejected, "user rejected the request")})

	require.Len(t, p.sent, 2)
	assert.Equal(t, DefaultStateTopic, p.sent[0].Topic)
	first, err := p.sent[0].Value.Encode()
	require.NoError(t, err)
	assert.Equal(t, "metamask", gjson.GetBytes(first, "wallet_type").String())
	assert.Equal(t, "0x5290...9EE7", gjson.GetBytes(first, "short_address").String())
	assert.True(t, gjson.GetBytes(first, "connected").Bool())

	second, err := p.sent[1].Value.Encode()
	require.NoError(t, err)
	assert.Equal(t, "user_rejected", gjson.GetBytes(second, "error.kind").String())
	assert.False(t, gjson.GetBytes(second, "connected").Bool())

	require.NoError(t, db.Close())
	assert.True(t, p.closed)
}

func TestPublishKafkaFailure(t *testing.T) {
	t.Setenv("DEBUG", "1")
	db := New(&fakeProducer{err: sarama.ErrOutOfBrokers})
	delivered := false
	db.Subscribe(DefaultStateTopic, func(Event) { delivered = true })

	err := db.Publish(NewStateChanged("", session.ConnectionState{}))
	assert.Error(t, err)
	assert.True(t, delivered, "local subscribers still get the event")
}

func TestInitLocalOnly(t *testing.T) {
	require.NoError(t, InitDataBus(""))
	require.NotNil(t, GetDataBus())
	assert.NoError(t, GetDataBus().PublishRaw("t", []byte("x")))
}
