package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/netip"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"ipmonitor/internal/dns"
)

type fakeKafkaWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (f *fakeKafkaWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, msgs...)
	return nil
}

func (f *fakeKafkaWriter) Close() error {
	f.closed = true
	return nil
}

type fakeAMQPChannel struct {
	exchange string
	key      string
	messages []amqp.Publishing
	closed   bool
}

func (f *fakeAMQPChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	f.exchange, f.key = exchange, key
	f.messages = append(f.messages, msg)
	return nil
}

func (f *fakeAMQPChannel) Close() error {
	f.closed = true
	return nil
}

// TestKafkaNotifier tests message keys and payloads
func TestKafkaNotifier(t *testing.T) {
	w := &fakeKafkaWriter{}
	n := newKafkaNotifier(w, zaptest.NewLogger(t))
	assert.Equal(t, ChannelKafka, n.Type())

	err := n.NotifyDNSError(context.Background(), &DNSFailure{
		IP:    netip.MustParseAddr("203.0.113.5"),
		Error: &dns.Error{Provider: "cloudflare", Record: "example.com", StatusCode: 403, Message: "denied"},
	})
	require.NoError(t, err)
	require.Len(t, w.messages, 1)

	msg := w.messages[0]
	assert.Equal(t, EventDNSError, string(msg.Key))

	var event struct {
		EventID string       `json:"event_id"`
		Data    DNSErrorData `json:"data"`
	}
	require.NoError(t, json.Unmarshal(msg.Value, &event))
	assert.Equal(t, 403, event.Data.StatusCode)
	assert.Equal(t, "cloudflare", event.Data.Provider)
	assert.Equal(t, event.EventID, string(msg.Headers[0].Value))

	w.err = errors.New("broker down")
	assert.Error(t, n.NotifyStartup(context.Background(), &Startup{}))

	require.NoError(t, n.Close())
	assert.True(t, w.closed)
}

// TestAMQPNotifier tests publishing properties
func TestAMQPNotifier(t *testing.T) {
	ch := &fakeAMQPChannel{}
	p := newAMQPPublisher(ch, &AMQPConfig{Exchange: "ipmonitor", RoutingKey: "ip.events"}, zaptest.NewLogger(t))
	n := &eventNotifier{channel: ChannelAMQP, pub: p}

	require.NoError(t, n.NotifyStartup(context.Background(), &Startup{IP: netip.MustParseAddr("203.0.113.5")}))
	require.Len(t, ch.messages, 1)
	assert.Equal(t, "ipmonitor", ch.exchange)
	assert.Equal(t, "ip.events", ch.key)

	msg := ch.messages[0]
	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, EventStartup, msg.Type)
	assert.Equal(t, amqp.Persistent, msg.DeliveryMode)
	assert.NotEmpty(t, msg.MessageId)
	assert.False(t, msg.Timestamp.IsZero())

	require.NoError(t, n.Close())
	assert.True(t, ch.closed)
}

// TestBrokerConstructors tests configuration checks
func TestBrokerConstructors(t *testing.T) {
	logger := zaptest.NewLogger(t)

	_, err := NewKafkaNotifier(&KafkaConfig{}, logger)
	assert.Error(t, err)
	_, err = NewKafkaNotifier(&KafkaConfig{Brokers: []string{"localhost:9092"}}, logger)
	assert.Error(t, err)

	n, err := NewKafkaNotifier(&KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "events"}, logger)
	require.NoError(t, err)
	assert.NoError(t, n.Close())

	_, err = NewAMQPNotifier(&AMQPConfig{}, logger)
	assert.Error(t, err)
}
