package databus

import (
	"fungily.io/fungily-score/pkg/errors"
	"fungily.io/fungily-score/pkg/log"
	"gopkg.in/Shopify/sarama.v1"
	"strings"
	"sync"
)

type Event interface {
	Serialize() []byte
	Topic() string
}

// Handler receives events published on a subscribed topic.
type Handler func(e Event)

// DataBus fans events out to in-process subscribers and, when a producer is
// configured, to Kafka.
type DataBus struct {
	producer sarama.SyncProducer

	mu          sync.RWMutex
	nextID      int
	subscribers map[string]map[int]Handler
}

var bus *DataBus

// InitDataBus sets up the process bus. An empty host gives a local-only bus.
func InitDataBus(host string) error {
	if host == "" {
		bus = New(nil)
		log.Info("Kafka not configured, data bus is local only...")
		return nil
	}
	hosts := strings.Split(host, ",")
	conf := sarama.NewConfig()
	conf.Producer.Return.Successes = true
	p, err := sarama.NewSyncProducer(hosts, conf)
	if err != nil {
		return errors.Wrap(err, "create kafka producer")
	}
	bus = New(p)
	log.Info("Kafka producer initialized...")
	return nil
}

func GetDataBus() *DataBus {
	return bus
}

func New(producer sarama.SyncProducer) *DataBus {
	return &DataBus{
		producer:    producer,
		subscribers: make(map[string]map[int]Handler),
	}
}

// Subscribe registers handler for topic. The returned func unsubscribes and
// is safe to call more than once.
func (db *DataBus) Subscribe(topic string, handler Handler) func() {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.nextID++
	id := db.nextID
	if db.subscribers[topic] == nil {
		db.subscribers[topic] = make(map[int]Handler)
	}
	db.subscribers[topic][id] = handler
	return func() {
		db.mu.Lock()
		defer db.mu.Unlock()
		delete(db.subscribers[topic], id)
	}
}

func (db *DataBus) PublishRaw(topic string, raw []byte) error {
	if len(raw) == 0 || db.producer == nil {
		return nil
	}
	_, _, err := db.producer.SendMessage(&sarama.ProducerMessage{
		Topic: topic,
		Value: sarama.StringEncoder(raw)})
	if err != nil {
		return errors.WrapAndReport(err, "produce message")
	}
	return nil
}

// Publish delivers e to local subscribers, then to Kafka.
func (db *DataBus) Publish(e Event) error {
	db.PublishLocal(e)
	return db.PublishRaw(e.Topic(), e.Serialize())
}

// PublishLocal only reaches in-process subscribers. Handlers run on the
// caller's goroutine; a panicking handler does not stop the others.
func (db *DataBus) PublishLocal(e Event) {
	db.mu.RLock()
	handlers := make([]Handler, 0, len(db.subscribers[e.Topic()]))
	for _, h := range db.subscribers[e.Topic()] {
		handlers = append(handlers, h)
	}
	db.mu.RUnlock()
	for _, h := range handlers {
		deliver(h, e)
	}
}

func deliver(h Handler, e Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Error(errors.ErrorfAndReport("data bus handler for %v panicked: %v", e.Topic(), r))
		}
	}()
	h(e)
}

func (db *DataBus) Close() error {
	if db.producer == nil {
		return nil
	}
	return db.producer.Close()
}
