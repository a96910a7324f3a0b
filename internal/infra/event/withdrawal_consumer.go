package event

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"orderpay/internal/usecase"

	"github.com/labstack/gommon/log"
	"github.com/streadway/amqp"
)

// カスケード処理の差し替え口（テスト用）
type WithdrawalProcessor interface {
	Process(ctx context.Context, ev usecase.WithdrawalEvent) error
}

type withdrawalMessage struct {
	UserID        int64     `json:"user_id"`
	WithdrawnAt   time.Time `json:"withdrawn_at"`
	CorrelationID string    `json:"correlation_id"`
}

// WithdrawalConsumerは退会イベントのat-least-once消費者。
// 注文単位の失敗はカスケード側が吸収するのでackする。
// カスケードが1件も進まなかった失敗だけ再配送に戻す
type WithdrawalConsumer struct {
	conn      *amqp.Connection
	channel   *amqp.Channel
	queue     string
	processor WithdrawalProcessor
}

func NewWithdrawalConsumer(amqpURL string, queue string, processor WithdrawalProcessor) (*WithdrawalConsumer, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %v", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %v", err)
	}

	_, err = channel.QueueDeclare(
		queue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %v", err)
	}

	return &WithdrawalConsumer{
		conn:      conn,
		channel:   channel,
		queue:     queue,
		processor: processor,
	}, nil
}

// Startはctxが閉じるまでイベントを消費し続ける
func (c *WithdrawalConsumer) Start(ctx context.Context) error {
	deliveries, err := c.channel.Consume(
		c.queue,
		"",    // consumer
		false, // autoAck（処理後にackする）
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %v", err)
	}

	log.Infof("consuming withdrawal events from queue %s", c.queue)

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			c.handle(ctx, d)
		}
	}
}

func (c *WithdrawalConsumer) handle(ctx context.Context, d amqp.Delivery) {
	var msg withdrawalMessage
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		log.Errorf("invalid withdrawal event payload: %v", err)
		//パースできないものは再配送しても無駄
		if err := d.Ack(false); err != nil {
			log.Errorf("ack failed: %v", err)
		}
		return
	}

	ev := usecase.WithdrawalEvent{
		UserID:        msg.UserID,
		WithdrawnAt:   msg.WithdrawnAt,
		CorrelationID: msg.CorrelationID,
	}

	if err := c.processor.Process(ctx, ev); err != nil {
		//Processがエラーを返すのはカスケードが1件も進んでいないとき。
		//ここでackするとイベントが消えるので、再配送に戻す
		log.Errorf("withdrawal cascade failed for user %d (correlation %s): %v", msg.UserID, msg.CorrelationID, err)

		if !d.Redelivered {
			if nerr := d.Nack(false, true); nerr != nil {
				log.Errorf("nack failed for correlation %s: %v", msg.CorrelationID, nerr)
			}
			return
		}
		//再配送でも失敗したものはpoisonメッセージとして捨てる
		log.Errorf("dropping withdrawal event for user %d (correlation %s) after redelivery", msg.UserID, msg.CorrelationID)
	}

	if err := d.Ack(false); err != nil {
		log.Errorf("ack failed for correlation %s: %v", msg.CorrelationID, err)
	}
}

func (c *WithdrawalConsumer) Close() {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		c.conn.Close()
	}
}
