package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"

	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Producer handles Kafka publishing for both the jobs topic and the match
// events topic.
type Producer struct {
	writer      *kafka.Writer
	logger      ectologger.Logger
	jobsTopic   string
	eventsTopic string
}

// ProducerConfig holds Kafka producer configuration
type ProducerConfig struct {
	Brokers      []string
	JobsTopic    string
	EventsTopic  string
	BatchSize    int
	BatchTimeout time.Duration
	RequiredAcks int
	Compression  string
}

// NewProducer creates a new Kafka producer
func NewProducer(cfg ProducerConfig, logger ectologger.Logger) *Producer {
	compression := kafka.Snappy
	switch cfg.Compression {
	case "gzip":
		compression = kafka.Gzip
	case "lz4":
		compression = kafka.Lz4
	case "zstd":
		compression = kafka.Zstd
	case "none":
		compression = 0
	}

	requiredAcks := kafka.RequiredAcks(cfg.RequiredAcks)

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.LeastBytes{},
		BatchSize:              cfg.BatchSize,
		BatchTimeout:           cfg.BatchTimeout,
		RequiredAcks:           requiredAcks,
		Compression:            compression,
		AllowAutoTopicCreation: true,
	}

	return &Producer{
		writer:      writer,
		logger:      logger,
		jobsTopic:   cfg.JobsTopic,
		eventsTopic: cfg.EventsTopic,
	}
}

// Close closes the producer
func (p *Producer) Close() error {
	return p.writer.Close()
}

// PublishJob publishes a job message on the jobs topic. Keyed by job ID so
// chunks of one job land on one partition and stay ordered.
func (p *Producer) PublishJob(ctx context.Context, msg *JobMessage) error {
	ctx, span := tracing.StartSpan(ctx, "kafka.Producer.PublishJob")
	defer span.End()

	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	if err := msg.Validate(); err != nil {
		return err
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	start := time.Now()
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Topic: p.jobsTopic,
		Key:   []byte(msg.JobID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "tenant_id", Value: []byte(msg.TenantID)},
			{Key: "job_type", Value: []byte(msg.JobType)},
		},
	})
	if err != nil {
		metrics.RecordKafkaPublish(p.jobsTopic, "error", time.Since(start).Seconds())
		p.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"job_id": msg.JobID,
		}).Error("Failed to publish job message")
		return err
	}
	metrics.RecordKafkaPublish(p.jobsTopic, "ok", time.Since(start).Seconds())

	p.logger.WithContext(ctx).WithFields(map[string]any{
		"job_id":   msg.JobID,
		"job_type": msg.JobType,
		"cursor":   msg.Cursor,
	}).Debug("Published job message")

	return nil
}

// PublishMatchEvent publishes one candidate lifecycle event
func (p *Producer) PublishMatchEvent(ctx context.Context, event *MatchEvent) error {
	return p.PublishMatchEvents(ctx, []*MatchEvent{event})
}

// PublishMatchEvents publishes candidate lifecycle events in a batch
func (p *Producer) PublishMatchEvents(ctx context.Context, events []*MatchEvent) error {
	ctx, span := tracing.StartSpan(ctx, "kafka.Producer.PublishMatchEvents")
	defer span.End()

	if len(events) == 0 {
		return nil
	}

	messages := make([]kafka.Message, len(events))
	for i, event := range events {
		if event.Timestamp.IsZero() {
			event.Timestamp = time.Now().UTC()
		}

		data, err := json.Marshal(event)
		if err != nil {
			return err
		}

		messages[i] = kafka.Message{
			Topic: p.eventsTopic,
			Key:   []byte(event.SourceItemID),
			Value: data,
			Headers: []kafka.Header{
				{Key: "event_type", Value: []byte(event.EventType)},
				{Key: "tenant_id", Value: []byte(event.TenantID)},
				{Key: "schema_version", Value: []byte("1.0")},
			},
		}
	}

	start := time.Now()
	if err := p.writer.WriteMessages(ctx, messages...); err != nil {
		metrics.RecordKafkaPublish(p.eventsTopic, "error", time.Since(start).Seconds())
		p.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"batch_size": len(events),
		}).Error("Failed to publish match events batch")
		return err
	}
	metrics.RecordKafkaPublish(p.eventsTopic, "ok", time.Since(start).Seconds())

	p.logger.WithContext(ctx).WithFields(map[string]any{
		"batch_size": len(events),
	}).Debug("Published match events batch")

	return nil
}

// EventForCandidate builds the lifecycle event for a candidate
func EventForCandidate(eventType string, c *models.MatchCandidate) *MatchEvent {
	event := &MatchEvent{
		EventType:    eventType,
		TenantID:     c.TenantID,
		ProjectID:    c.ProjectID,
		CandidateID:  c.ID,
		SourceItemID: c.SourceItemID,
		Method:       string(c.Method),
		Confidence:   c.Confidence,
	}
	if c.TargetID != nil {
		event.TargetID = *c.TargetID
	}
	return event
}
