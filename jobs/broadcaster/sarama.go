package broadcaster

import (
	"context"

	"github.com/IBM/sarama"
)

// SaramaPublisher publishes through a sarama SyncProducer.
type SaramaPublisher struct {
	producer sarama.SyncProducer
	topic    string
}

func NewSaramaPublisher(brokers []string, topic string) (*SaramaPublisher, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5
	cfg.Producer.Partitioner = sarama.NewHashPartitioner

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}
	return NewSaramaPublisherFrom(producer, topic), nil
}

// NewSaramaPublisherFrom wraps an existing producer, e.g. a mock.
func NewSaramaPublisherFrom(producer sarama.SyncProducer, topic string) *SaramaPublisher {
	return &SaramaPublisher{producer: producer, topic: topic}
}

func (p *SaramaPublisher) Publish(_ context.Context, key, value []byte) error {
	_, _, err := p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.ByteEncoder(key),
		Value: sarama.ByteEncoder(value),
	})
	return err
}

func (p *SaramaPublisher) Close() error {
	return p.producer.Close()
}
