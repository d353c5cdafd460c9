package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaDispatcher enqueues push requests on a topic for the notifier
// worker to deliver. Publishing is the fire-and-forget step; delivery
// retries live in the worker, not here.
type KafkaDispatcher struct {
	writer *kafka.Writer
}

func NewKafkaDispatcher(brokers []string, topic string) *KafkaDispatcher {
	w := kafka.NewWriter(kafka.WriterConfig{Brokers: brokers, Topic: topic, Balancer: &kafka.LeastBytes{}})
	return &KafkaDispatcher{writer: w}
}

func (d *KafkaDispatcher) publish(ctx context.Context, pr PushRequest) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	b, _ := json.Marshal(pr)
	return d.writer.WriteMessages(ctx, kafka.Message{Key: []byte(pr.UserID), Value: b})
}

func (d *KafkaDispatcher) SendPushNotification(ctx context.Context, userID, title, body string, data map[string]string) error {
	return d.publish(ctx, PushRequest{UserID: userID, Title: title, Body: body, Data: data})
}

func (d *KafkaDispatcher) SendChatMessageNotification(ctx context.Context, userID, senderName, preview, bookingID string) error {
	return d.SendPushNotification(ctx, userID, senderName, preview, chatData(senderName, bookingID))
}

func (d *KafkaDispatcher) Close() error {
	if d.writer == nil {
		return nil
	}
	return d.writer.Close()
}
