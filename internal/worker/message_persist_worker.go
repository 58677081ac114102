package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"ragdesk/internal/model"
	"ragdesk/internal/pkg/logger"
	"ragdesk/internal/platform/rabbitmq"
)

// MessageStore is where consumed chat messages end up.
type MessageStore interface {
	SaveMessage(ctx context.Context, msg *model.Message) error
}

// MessagePersistWorker drains the chat message queue into the database.
type MessagePersistWorker struct {
	conn      *amqp.Connection
	store     MessageStore
	queueName string

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewMessagePersistWorker(conn *amqp.Connection, store MessageStore, queueName string) *MessagePersistWorker {
	return &MessagePersistWorker{
		conn:      conn,
		store:     store,
		queueName: queueName,
	}
}

func (w *MessagePersistWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	ch, err := w.conn.Channel()
	if err != nil {
		return fmt.Errorf("open worker channel failed: %w", err)
	}
	if err := rabbitmq.DeclareQueue(ch, w.queueName); err != nil {
		_ = ch.Close()
		return err
	}
	if err := ch.Qos(16, 0, false); err != nil {
		_ = ch.Close()
		return fmt.Errorf("set worker qos failed: %w", err)
	}
	deliveries, err := ch.Consume(w.queueName, "", false, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		log := logger.L().With(zap.String("queue", w.queueName))
		log.Info("message persist worker started")
		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					log.Warn("delivery channel closed")
					return
				}
				w.handle(workerCtx, log, d)
			}
		}
	}()

	return nil
}

func (w *MessagePersistWorker) handle(ctx context.Context, log *zap.Logger, d amqp.Delivery) {
	msg, err := decodeMessage(d.Body)
	if err != nil {
		log.Error("decode message failed", zap.Error(err))
		_ = d.Nack(false, false)
		return
	}
	if err := w.store.SaveMessage(ctx, msg); err != nil {
		log.Error("persist message failed", zap.Uint("session_id", msg.SessionID), zap.Error(err))
		_ = d.Nack(false, false)
		return
	}
	_ = d.Ack(false)
}

func decodeMessage(body []byte) (*model.Message, error) {
	var msg model.Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, err
	}
	if msg.SessionID == 0 || msg.Role == "" {
		return nil, fmt.Errorf("message is missing session or role")
	}
	// the consumer assigns its own primary key
	msg.ID = 0
	return &msg, nil
}

func (w *MessagePersistWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
