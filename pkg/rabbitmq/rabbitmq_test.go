package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockChannel struct {
	mock.Mock
	deliveries chan amqp.Delivery
}

func (m *mockChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	return m.Called(name, kind).Error(0)
}

func (m *mockChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	ret := m.Called(name)
	return amqp.Queue{Name: name}, ret.Error(0)
}

func (m *mockChannel) QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error {
	return m.Called(name, key, exchange).Error(0)
}

func (m *mockChannel) Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	return m.Called(exchange, key, msg).Error(0)
}

func (m *mockChannel) Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error) {
	ret := m.Called(queue)
	return m.deliveries, ret.Error(0)
}

func (m *mockChannel) Close() error {
	return m.Called().Error(0)
}

type mockAcknowledger struct {
	mock.Mock
}

func (m *mockAcknowledger) Ack(tag uint64, multiple bool) error {
	return m.Called(tag).Error(0)
}

func (m *mockAcknowledger) Nack(tag uint64, multiple bool, requeue bool) error {
	return m.Called(tag, requeue).Error(0)
}

func (m *mockAcknowledger) Reject(tag uint64, requeue bool) error {
	return m.Called(tag, requeue).Error(0)
}

func newTestClient(t *testing.T) (*Client, *mockChannel) {
	t.Helper()
	ch := &mockChannel{deliveries: make(chan amqp.Delivery, 4)}
	ch.On("ExchangeDeclare", DefaultExchange, "topic").Return(nil).Once()
	ch.On("QueueDeclare", DefaultQueue).Return(nil).Once()
	ch.On("QueueBind", DefaultQueue, "#", DefaultExchange).Return(nil).Once()

	c, err := newClient(ch, Config{}, nil)
	require.NoError(t, err)
	return c, ch
}

func TestNewClient_DeclaresTopology(t *testing.T) {
	_, ch := newTestClient(t)
	ch.AssertExpectations(t)
}

func TestNewClient_ExchangeFailure(t *testing.T) {
	ch := &mockChannel{}
	ch.On("ExchangeDeclare", "custom", "topic").Return(errors.New("access refused")).Once()

	_, err := newClient(ch, Config{Exchange: "custom"}, nil)
	assert.ErrorContains(t, err, "access refused")
	ch.AssertNotCalled(t, "QueueDeclare", mock.Anything)
}

func TestClient_PublishEvent(t *testing.T) {
	c, ch := newTestClient(t)

	ch.On("Publish", DefaultExchange, "favorite.added", mock.MatchedBy(func(msg amqp.Publishing) bool {
		var body map[string]interface{}
		if err := json.Unmarshal(msg.Body, &body); err != nil {
			return false
		}
		return msg.ContentType == "application/json" &&
			msg.DeliveryMode == amqp.Persistent &&
			body["pokemonId"] == float64(25)
	})).Return(nil).Once()

	err := c.PublishEvent(context.Background(), "favorite.added", map[string]interface{}{"pokemonId": 25})
	require.NoError(t, err)
	ch.AssertExpectations(t)
}

func TestClient_PublishEvent_Errors(t *testing.T) {
	c, ch := newTestClient(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, c.PublishEvent(ctx, "favorite.added", struct{}{}), context.Canceled)

	err := c.PublishEvent(context.Background(), "favorite.added", make(chan int))
	assert.ErrorContains(t, err, "failed to marshal")

	ch.On("Publish", DefaultExchange, "favorite.removed", mock.Anything).Return(amqp.ErrClosed).Once()
	err = c.PublishEvent(context.Background(), "favorite.removed", struct{}{})
	assert.ErrorIs(t, err, amqp.ErrClosed)
}

func TestClient_ConsumeEvents_AcksAndNacks(t *testing.T) {
	c, ch := newTestClient(t)
	ch.On("Consume", DefaultQueue).Return(nil).Once()

	ack := new(mockAcknowledger)
	done := make(chan struct{}, 2)
	ack.On("Ack", uint64(1)).Return(nil).Run(func(mock.Arguments) { done <- struct{}{} }).Once()
	ack.On("Nack", uint64(2), false).Return(nil).Run(func(mock.Arguments) { done <- struct{}{} }).Once()

	require.NoError(t, c.ConsumeEvents(func(msg amqp.Delivery) error {
		if msg.DeliveryTag == 2 {
			return errors.New("bad payload")
		}
		return nil
	}))

	ch.deliveries <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: []byte(`{}`)}
	ch.deliveries <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 2, Body: []byte(`{}`)}

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("delivery was not settled")
		}
	}
	close(ch.deliveries)
	ack.AssertExpectations(t)
}

func TestLogEvent_RejectsInvalidJSON(t *testing.T) {
	handler := LogEvent(zap.NewNop())
	assert.NoError(t, handler(amqp.Delivery{RoutingKey: "favorite.added", Body: []byte(`{"pokemonId":1}`)}))
	assert.Error(t, handler(amqp.Delivery{RoutingKey: "favorite.added", Body: []byte(`not json`)}))
}
