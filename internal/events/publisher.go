package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"SportMatchService/internal/models"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// MatchCreatedRoutingKey ключ маршрутизации события о новой паре
const MatchCreatedRoutingKey = "match.created"

// MatchCreated тело события о новой паре
type MatchCreated struct {
	MatchID   uint      `json:"matchId"`
	UserA     string    `json:"userA"`
	UserB     string    `json:"userB"`
	Sport     string    `json:"sport"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewMatchCreated собирает событие из сохраненной пары
func NewMatchCreated(match *models.Match) MatchCreated {
	return MatchCreated{
		MatchID:   match.ID,
		UserA:     match.UserAID,
		UserB:     match.UserBID,
		Sport:     match.Sport,
		CreatedAt: match.CreatedAt,
	}
}

// Publisher публикует доменные события
type Publisher interface {
	PublishMatchCreated(ctx context.Context, match *models.Match) error
	Close() error
}

// channel подмножество *amqp.Channel, которое использует публикатор
type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitPublisher публикует события в topic exchange RabbitMQ
type RabbitPublisher struct {
	conn        *amqp.Connection
	exchange    string
	openChannel func() (channel, error)
	logger      *zap.Logger
}

// NewRabbitPublisher объявляет exchange и возвращает публикатор поверх соединения
func NewRabbitPublisher(conn *amqp.Connection, exchange string, logger *zap.Logger) (*RabbitPublisher, error) {
	return newRabbitPublisher(conn, exchange, logger, func() (channel, error) {
		return conn.Channel()
	})
}

func newRabbitPublisher(conn *amqp.Connection, exchange string, logger *zap.Logger, open func() (channel, error)) (*RabbitPublisher, error) {
	ch, err := open()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	err = ch.ExchangeDeclare(
		exchange,
		amqp.ExchangeTopic,
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}

	logger.Info("Declared RabbitMQ exchange", zap.String("exchange", exchange))
	return &RabbitPublisher{
		conn:        conn,
		exchange:    exchange,
		openChannel: open,
		logger:      logger,
	}, nil
}

// PublishMatchCreated публикует событие match.created
func (p *RabbitPublisher) PublishMatchCreated(ctx context.Context, match *models.Match) error {
	body, err := json.Marshal(NewMatchCreated(match))
	if err != nil {
		return fmt.Errorf("failed to marshal match event: %w", err)
	}

	ch, err := p.openChannel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	err = ch.PublishWithContext(ctx,
		p.exchange,
		MatchCreatedRoutingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Type:         MatchCreatedRoutingKey,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish match event: %w", err)
	}

	p.logger.Debug("Published match event",
		zap.String("exchange", p.exchange),
		zap.Uint("match_id", match.ID))
	return nil
}

// Close закрывает соединение с брокером
func (p *RabbitPublisher) Close() error {
	if p.conn == nil || p.conn.IsClosed() {
		return nil
	}
	return p.conn.Close()
}

// NoopPublisher используется, когда брокер не настроен
type NoopPublisher struct{}

func (NoopPublisher) PublishMatchCreated(ctx context.Context, match *models.Match) error { return nil }
func (NoopPublisher) Close() error                                                    { return nil }
