package transport

import (
	"context"
	"errors"
	"testing"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
)

type mockConfig struct {
	pubSubSystem string
}

func (m *mockConfig) GetPubSubSystem() string       { return m.pubSubSystem }
func (m *mockConfig) GetKafkaBrokers() []string     { return nil }
func (m *mockConfig) GetKafkaConsumerGroup() string { return "" }
func (m *mockConfig) GetRabbitMQURL() string        { return "" }
func (m *mockConfig) GetNATSURL() string            { return "" }
func (m *mockConfig) GetIOFile() string             { return "" }

type mockPublisher struct {
	closed   int
	closeErr error
}

func (m *mockPublisher) Publish(topic string, messages ...*message.Message) error { return nil }

func (m *mockPublisher) Close() error {
	m.closed++
	return m.closeErr
}

type mockSubscriber struct {
	closed int
}

func (m *mockSubscriber) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	ch := make(chan *message.Message)
	close(ch)
	return ch, nil
}

func (m *mockSubscriber) Close() error {
	m.closed++
	return nil
}

// mockPubSub is one value serving both halves, like gochannel.
type mockPubSub struct {
	mockPublisher
	mockSubscriber
}

func (m *mockPubSub) Close() error {
	m.mockPublisher.closed++
	return nil
}

func TestConfigInterface(t *testing.T) {
	var _ Config = (*mockConfig)(nil)

	cfg := &mockConfig{pubSubSystem: "test"}
	assert.Equal(t, "test", cfg.GetPubSubSystem())
}

func TestTransportCloseClosesBothHalves(t *testing.T) {
	pub, sub := &mockPublisher{}, &mockSubscriber{}
	tr := Transport{Publisher: pub, Subscriber: sub}

	assert.NoError(t, tr.Close())
	assert.Equal(t, 1, pub.closed)
	assert.Equal(t, 1, sub.closed)
}

func TestTransportCloseSharedPubSubOnce(t *testing.T) {
	ps := &mockPubSub{}
	tr := Transport{Publisher: ps, Subscriber: ps}

	assert.NoError(t, tr.Close())
	assert.Equal(t, 1, ps.mockPublisher.closed)
}

func TestTransportCloseJoinsErrors(t *testing.T) {
	boom := errors.New("flush failed")
	tr := Transport{Publisher: &mockPublisher{closeErr: boom}}

	assert.ErrorIs(t, tr.Close(), boom)
	assert.NoError(t, Transport{}.Close())
}
