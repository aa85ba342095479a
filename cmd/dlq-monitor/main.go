package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	"github.com/sirupsen/logrus"

	"github.com/bigbite/order-service/internal/push"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	kafkaBrokers := getEnv("KAFKA_BROKERS", "localhost:9092")

	config := sarama.NewConfig()
	config.Consumer.Group.Rebalance.Strategy = sarama.BalanceStrategyRoundRobin
	config.Consumer.Offsets.Initial = sarama.OffsetOldest
	config.Version = sarama.V2_6_0_0

	consumer, err := sarama.NewConsumerGroup(strings.Split(kafkaBrokers, ","), "dlq-monitor-group", config)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create DLQ consumer")
	}
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handler := &dlqHandler{logger: logger}

	go func() {
		for {
			if err := consumer.Consume(ctx, []string{push.DLQTopic}, handler); err != nil {
				logger.WithError(err).Error("Error consuming from DLQ")
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()

	logger.WithField("topic", push.DLQTopic).Info("DLQ monitor started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down DLQ monitor...")
}

type dlqHandler struct {
	logger *logrus.Logger
}

func (h *dlqHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *dlqHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *dlqHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		var metadata map[string]interface{}
		for _, header := range message.Headers {
			if string(header.Key) == "metadata" {
				json.Unmarshal(header.Value, &metadata)
			} else if string(header.Key) == "failure_time" {
				h.logger.WithField("failure_time", string(header.Value)).Info("DLQ message failure time")
			}
		}

		h.logger.WithFields(logrus.Fields{
			"topic":     message.Topic,
			"partition": message.Partition,
			"offset":    message.Offset,
			"key":       string(message.Key),
			"metadata":  metadata,
		}).Warn("DLQ message detected")

		var request push.Request
		if err := json.Unmarshal(message.Value, &request); err == nil {
			h.logger.WithFields(logrus.Fields{
				"user_id": request.UserID,
				"title":   request.Title,
				"link":    request.Link,
			}).Info("Dead push request details")
		}

		fmt.Printf("\n=== DLQ Message ===\n")
		fmt.Printf("Time: %s\n", time.Now().Format(time.RFC3339))
		fmt.Printf("User Key: %s\n", string(message.Key))
		fmt.Printf("Error: %v\n", metadata["error_message"])
		fmt.Printf("Retry Count: %v\n", metadata["retry_count"])
		fmt.Printf("==================\n\n")

		session.MarkMessage(message, "")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
