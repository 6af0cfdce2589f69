package notify

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const spotVacatedRoutingPrefix = "spot.vacated."

// AMQPDispatcher публикует события в topic-обменник RabbitMQ.
type AMQPDispatcher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	logger   *zap.Logger
}

// NewAMQPDispatcher подключается к брокеру и объявляет обменник событий.
func NewAMQPDispatcher(url, exchange string, logger *zap.Logger) (*AMQPDispatcher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	logger.Info("amqp notification dispatcher ready", zap.String("exchange", exchange))

	return &AMQPDispatcher{
		conn:     conn,
		channel:  ch,
		exchange: exchange,
		logger:   logger,
	}, nil
}

// RoutingKey возвращает ключ маршрутизации события, например spot.vacated.metered.
func RoutingKey(event SpotVacatedEvent) string {
	return spotVacatedRoutingPrefix + string(event.SurfaceType)
}

// SpotVacated публикует событие в обменник.
func (d *AMQPDispatcher) SpotVacated(ctx context.Context, event SpotVacatedEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	key := RoutingKey(event)
	err = d.channel.PublishWithContext(
		ctx,
		d.exchange,
		key,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Transient,
			MessageId:    event.SpotID,
			Timestamp:    event.ReportedAt,
		},
	)
	if err != nil {
		return fmt.Errorf("publish event: %w", err)
	}

	d.logger.Debug("published spot vacated event",
		zap.String("routing_key", key),
		zap.String("spot_id", event.SpotID),
	)

	return nil
}

// Close закрывает канал и соединение с брокером.
func (d *AMQPDispatcher) Close() error {
	if err := d.channel.Close(); err != nil {
		d.conn.Close()
		return fmt.Errorf("close channel: %w", err)
	}
	return d.conn.Close()
}
