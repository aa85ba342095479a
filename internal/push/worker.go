package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"github.com/sirupsen/logrus"
)

const (
	MaxRetries        = 3
	InitialRetryDelay = 1 * time.Second
	MaxRetryDelay     = 30 * time.Second
)

type WorkerMetrics struct {
	ProcessedCount int64
	RetryCount     int64
	DLQCount       int64
	SuccessCount   int64
	SkippedCount   int64
	FailureCount   int64
}

type messageMetadata struct {
	RetryCount    int       `json:"retry_count"`
	FirstFailure  time.Time `json:"first_failure"`
	LastFailure   time.Time `json:"last_failure"`
	OriginalTopic string    `json:"original_topic"`
	ErrorMessage  string    `json:"error_message"`
}

// Worker consumes queued push requests, resolves the receiver's device
// token and delivers through the push provider. Transient provider
// failures are retried with exponential backoff; exhausted or permanent
// failures land on the DLQ topic. Nothing here ever propagates back to
// the order transition that queued the push.
type Worker struct {
	consumerGroup sarama.ConsumerGroup
	producer      sarama.SyncProducer
	tokens        *TokenStore
	gateway       *Gateway
	logger        *logrus.Logger
	topics        []string
	metrics       *WorkerMetrics
}

type workerGroupHandler struct {
	tokens   *TokenStore
	gateway  *Gateway
	producer sarama.SyncProducer
	logger   *logrus.Logger
	metrics  *WorkerMetrics
}

func NewWorker(brokers, groupID string, tokens *TokenStore, gateway *Gateway, logger *logrus.Logger) (*Worker, error) {
	consumerConfig := sarama.NewConfig()
	consumerConfig.Consumer.Group.Rebalance.Strategy = sarama.BalanceStrategyRoundRobin
	consumerConfig.Consumer.Offsets.Initial = sarama.OffsetOldest
	consumerConfig.Version = sarama.V2_6_0_0

	consumerGroup, err := sarama.NewConsumerGroup(strings.Split(brokers, ","), groupID, consumerConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	producerConfig := sarama.NewConfig()
	producerConfig.Producer.RequiredAcks = sarama.WaitForAll
	producerConfig.Producer.Retry.Max = 5
	producerConfig.Producer.Return.Successes = true
	producerConfig.Version = sarama.V2_6_0_0

	producer, err := sarama.NewSyncProducer(strings.Split(brokers, ","), producerConfig)
	if err != nil {
		consumerGroup.Close()
		return nil, fmt.Errorf("failed to create producer for DLQ: %w", err)
	}

	return &Worker{
		consumerGroup: consumerGroup,
		producer:      producer,
		tokens:        tokens,
		gateway:       gateway,
		logger:        logger,
		topics:        []string{Topic},
		metrics:       &WorkerMetrics{},
	}, nil
}

func (w *Worker) Start(ctx context.Context) error {
	handler := &workerGroupHandler{
		tokens:   w.tokens,
		gateway:  w.gateway,
		producer: w.producer,
		logger:   w.logger,
		metrics:  w.metrics,
	}

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Push worker context cancelled")
			return nil
		default:
			if err := w.consumerGroup.Consume(ctx, w.topics, handler); err != nil {
				w.logger.WithError(err).Error("Error consuming push queue")
				return err
			}
		}
	}
}

func (w *Worker) Close() error {
	if err := w.producer.Close(); err != nil {
		w.logger.WithError(err).Error("Failed to close DLQ producer")
	}
	return w.consumerGroup.Close()
}

func (w *Worker) GetMetrics() WorkerMetrics {
	return *w.metrics
}

func (h *workerGroupHandler) Setup(sarama.ConsumerGroupSession) error {
	h.logger.Info("Push worker consumer group session setup")
	return nil
}

func (h *workerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	h.logger.Info("Push worker consumer group session cleanup")
	return nil
}

func (h *workerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message := <-claim.Messages():
			if message == nil {
				return nil
			}

			h.metrics.ProcessedCount++

			if err := h.deliverWithRetry(session.Context(), message); err != nil {
				h.logger.WithError(err).Error("Failed to deliver push after retries")
				h.metrics.FailureCount++

				if dlqErr := h.sendToDLQ(message, err); dlqErr != nil {
					h.logger.WithError(dlqErr).Error("Failed to send push request to DLQ")
				} else {
					h.metrics.DLQCount++
				}
			}

			session.MarkMessage(message, "")

		case <-session.Context().Done():
			h.logger.Info("Push worker session context cancelled")
			return nil
		}
	}
}

func (h *workerGroupHandler) deliverWithRetry(ctx context.Context, message *sarama.ConsumerMessage) error {
	var request Request
	if err := json.Unmarshal(message.Value, &request); err != nil {
		h.logger.WithError(err).Error("Failed to unmarshal push request")
		return err // Non-retryable
	}

	token, err := h.tokens.Token(ctx, request.UserID)
	if errors.Is(err, ErrNoToken) {
		// Push is best-effort; a user without a device simply gets none.
		h.logger.WithField("user_id", request.UserID).Debug("No device token, skipping push")
		h.metrics.SkippedCount++
		return nil
	}
	if err != nil {
		return err
	}

	retryDelay := InitialRetryDelay

	for attempt := 0; attempt <= MaxRetries; attempt++ {
		if attempt > 0 {
			h.logger.WithFields(logrus.Fields{
				"user_id": request.UserID,
				"attempt": attempt,
				"delay":   retryDelay,
			}).Info("Retrying push delivery")

			time.Sleep(retryDelay)
			h.metrics.RetryCount++

			retryDelay = retryDelay * 2
			if retryDelay > MaxRetryDelay {
				retryDelay = MaxRetryDelay
			}
		}

		err := h.gateway.Send(ctx, token, request.Title, request.Body, request.Link)
		if err == nil {
			h.metrics.SuccessCount++
			h.logger.WithFields(logrus.Fields{
				"user_id": request.UserID,
				"title":   request.Title,
			}).Info("Push delivered")
			return nil
		}

		if errors.Is(err, ErrTokenRejected) {
			h.logger.WithError(err).WithField("user_id", request.UserID).Warn("Non-retryable push failure")
			return err
		}

		h.logger.WithError(err).WithField("attempt", attempt+1).Warn("Retryable push failure")
	}

	return fmt.Errorf("exhausted retries delivering push to user %d", request.UserID)
}

func (h *workerGroupHandler) sendToDLQ(message *sarama.ConsumerMessage, deliveryError error) error {
	metadata := messageMetadata{
		RetryCount:    MaxRetries,
		FirstFailure:  time.Now(),
		LastFailure:   time.Now(),
		OriginalTopic: message.Topic,
		ErrorMessage:  deliveryError.Error(),
	}

	metadataBytes, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	dlqMessage := &sarama.ProducerMessage{
		Topic: DLQTopic,
		Key:   sarama.ByteEncoder(message.Key),
		Value: sarama.ByteEncoder(message.Value),
		Headers: []sarama.RecordHeader{
			{
				Key:   []byte("metadata"),
				Value: metadataBytes,
			},
			{
				Key:   []byte("original_topic"),
				Value: []byte(message.Topic),
			},
			{
				Key:   []byte("failure_time"),
				Value: []byte(time.Now().Format(time.RFC3339)),
			},
		},
	}

	partition, offset, err := h.producer.SendMessage(dlqMessage)
	if err != nil {
		return fmt.Errorf("failed to send to DLQ: %w", err)
	}

	h.logger.WithFields(logrus.Fields{
		"dlq_topic":     DLQTopic,
		"dlq_partition": partition,
		"dlq_offset":    offset,
		"error":         deliveryError.Error(),
	}).Warn("Push request sent to dead letter queue")

	return nil
}
