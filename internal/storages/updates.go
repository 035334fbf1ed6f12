package storage

import (
	"encoding/json"
	"time"

	"github.com/Shopify/sarama"
	"github.com/pingit/chat-relay/internal/models"
)

// UpdatesStorage publishes integration events to the updates topic so that
// downstream services (notifications, analytics) observe persisted messages.
// Events are keyed by chat id to keep one chat on one partition.
type UpdatesStorage struct {
	cfg      *UpdatesStoreConfig
	producer sarama.SyncProducer
}

type UpdatesStoreConfig struct {
	UpdatesTopic string
}

func NewUpdatesStore(p sarama.SyncProducer, cfg *UpdatesStoreConfig) *UpdatesStorage {
	return &UpdatesStorage{
		producer: p,
		cfg:      cfg,
	}
}

func (s *UpdatesStorage) putUpdate(topic, key string, event interface{}) error {
	// A nil producer means the stream is disabled. Live delivery through the
	// relay gateway never depends on it.
	if s.producer == nil {
		return nil
	}

	bytes, err := json.Marshal(event)
	if err != nil {
		return err
	}

	_, _, err = s.producer.SendMessage(&sarama.ProducerMessage{
		Topic:     topic,
		Key:       sarama.StringEncoder(key),
		Value:     sarama.ByteEncoder(bytes),
		Timestamp: time.Time{},
	})

	return err
}

type updateEnvelope struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

func (s *UpdatesStorage) MessageSent(update *models.MessageSent) error {
	return s.putUpdate(s.cfg.UpdatesTopic, update.ChatID, updateEnvelope{
		Type: "message_sent",
		Data: update,
	})
}
