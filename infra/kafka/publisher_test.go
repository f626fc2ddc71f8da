package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaramaPublisherSends(t *testing.T) {
	producer := mocks.NewSyncProducer(t, SaramaConfig())
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		if string(val) != `{"kind":"destroyed"}` {
			return errors.New("unexpected payload " + string(val))
		}
		return nil
	})
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	p := NewSaramaPublisherFromProducer(producer, "tiergc.events")
	require.NoError(t, p.Publish(context.Background(), []byte("1"), []byte(`{"kind":"destroyed"}`)))
	assert.ErrorIs(t, p.Publish(context.Background(), nil, []byte("x")), sarama.ErrOutOfBrokers)
	require.NoError(t, p.Close())
}

type fakeWriter struct {
	msgs   []kafka.Message
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestWriterPublisherSends(t *testing.T) {
	w := &fakeWriter{}
	p := &WriterPublisher{writer: w}

	require.NoError(t, p.Publish(context.Background(), []byte("k"), []byte("v")))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "k", string(w.msgs[0].Key))
	assert.Equal(t, "v", string(w.msgs[0].Value))

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestNewPublisherValidates(t *testing.T) {
	_, err := NewPublisher(Config{Topic: "t"})
	assert.Error(t, err)

	_, err = NewPublisher(Config{Brokers: []string{"localhost:9092"}})
	assert.Error(t, err)

	_, err = NewPublisher(Config{Driver: "rabbit", Brokers: []string{"localhost:9092"}, Topic: "t"})
	assert.Error(t, err)

	p, err := NewPublisher(Config{Driver: DriverKafkaGo, Brokers: []string{"localhost:9092"}, Topic: "t"})
	require.NoError(t, err)
	assert.IsType(t, &WriterPublisher{}, p)
	assert.NoError(t, p.Close())
}
