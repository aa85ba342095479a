package push

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"github.com/sirupsen/logrus"
)

// Producer publishes push requests onto the delivery queue.
type Producer struct {
	producer sarama.SyncProducer
	logger   *logrus.Logger
}

func NewProducer(brokers string, logger *logrus.Logger) (*Producer, error) {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true
	config.Version = sarama.V2_6_0_0

	producer, err := sarama.NewSyncProducer(strings.Split(brokers, ","), config)
	if err != nil {
		return nil, err
	}

	return &Producer{
		producer: producer,
		logger:   logger,
	}, nil
}

func (p *Producer) Publish(request Request) error {
	request.EventTime = time.Now()

	data, err := json.Marshal(request)
	if err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: Topic,
		Key:   sarama.StringEncoder(strconv.FormatInt(request.UserID, 10)),
		Value: sarama.ByteEncoder(data),
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		p.logger.WithError(err).Error("Failed to send push request to Kafka")
		return err
	}

	p.logger.WithFields(logrus.Fields{
		"topic":     Topic,
		"partition": partition,
		"offset":    offset,
		"user_id":   request.UserID,
	}).Debug("Push request queued")

	return nil
}

func (p *Producer) Close() error {
	return p.producer.Close()
}
