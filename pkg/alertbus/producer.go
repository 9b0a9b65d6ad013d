package alertbus

import (
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"
)

// Producer publishes alert batches for the Runner to pick up and dispatch.
// The alert pipeline calls Publish once per run, after it has persisted the
// alerts, so a webhook outage never blocks persistence.
type Producer struct {
	cfg      Config
	producer sarama.SyncProducer
}

func NewProducer(cfg Config) (*Producer, error) {
	scfg := sarama.NewConfig()
	scfg.Producer.RequiredAcks = sarama.WaitForLocal
	scfg.Producer.Retry.Max = 5
	scfg.Producer.Return.Successes = true

	p, err := sarama.NewSyncProducer(cfg.Brokers, scfg)
	if err != nil {
		return nil, fmt.Errorf("alertbus: new producer: %w", err)
	}
	return &Producer{cfg: cfg, producer: p}, nil
}

func (p *Producer) Close() error {
	return p.producer.Close()
}

// Publish sends one batch to the dispatch topic, keyed by RunID so batches
// from the same pipeline run land on the same partition.
func (p *Producer) Publish(batch Batch) error {
	payload, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("alertbus: marshal batch: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.cfg.Topic,
		Key:   sarama.StringEncoder(batch.RunID),
		Value: sarama.ByteEncoder(payload),
	}
	_, _, err = p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("alertbus: publish batch %q: %w", batch.RunID, err)
	}
	return nil
}
