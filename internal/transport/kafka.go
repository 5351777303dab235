package transport

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"
	"github.com/scouter-ml/scouter/internal/types"
	"go.uber.org/zap"
)

// KafkaPublisher produces ServerRecords batches to a configured topic,
// partitioning by profile_uid when one is present in the batch, per
// spec.md §4.B.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
	log      *zap.Logger
}

// KafkaConfig mirrors the recognized Kafka options of spec.md §6.
type KafkaConfig struct {
	Brokers            []string
	Topic              string
	CompressionType    string // "none", "gzip", "snappy", "lz4", "zstd"
	MessageMaxBytes    int
	MessageTimeoutMs   int
}

func NewKafkaPublisher(cfg KafkaConfig, log *zap.Logger) (*KafkaPublisher, error) {
	scfg := sarama.NewConfig()
	scfg.Producer.Return.Successes = true
	scfg.Producer.RequiredAcks = sarama.WaitForAll
	if cfg.MessageMaxBytes > 0 {
		scfg.Producer.MaxMessageBytes = cfg.MessageMaxBytes
	}
	if cfg.MessageTimeoutMs > 0 {
		scfg.Producer.Timeout = msToDuration(cfg.MessageTimeoutMs)
	}
	scfg.Producer.Compression = compressionCodec(cfg.CompressionType)

	producer, err := sarama.NewSyncProducer(cfg.Brokers, scfg)
	if err != nil {
		return nil, fmt.Errorf("transport: kafka: new producer: %w", err)
	}
	return &KafkaPublisher{producer: producer, topic: cfg.Topic, log: log}, nil
}

func (p *KafkaPublisher) Publish(_ context.Context, records types.ServerRecords) error {
	body, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("transport: kafka: marshal: %w", err)
	}
	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Value: sarama.ByteEncoder(body),
	}
	if key := partitionKey(records); key != "" {
		msg.Key = sarama.StringEncoder(key)
	}
	_, _, err = p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("transport: kafka: send: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Flush(_ context.Context) error { return nil }
func (p *KafkaPublisher) Close() error                  { return p.producer.Close() }

func partitionKey(records types.ServerRecords) string {
	switch records.RecordType {
	case types.RecordSpc:
		if len(records.Spc) > 0 {
			return records.Spc[0].ProfileUID
		}
	case types.RecordPsi:
		if len(records.Psi) > 0 {
			return records.Psi[0].ProfileUID
		}
	case types.RecordCustom:
		if len(records.Custom) > 0 {
			return records.Custom[0].ProfileUID
		}
	}
	return ""
}

func compressionCodec(name string) sarama.CompressionCodec {
	switch name {
	case "gzip":
		return sarama.CompressionGZIP
	case "snappy":
		return sarama.CompressionSnappy
	case "lz4":
		return sarama.CompressionLZ4
	case "zstd":
		return sarama.CompressionZSTD
	default:
		return sarama.CompressionNone
	}
}
