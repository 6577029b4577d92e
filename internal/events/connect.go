package events

import (
	"context"
	"fmt"

	"SportMatchService/config"
	"SportMatchService/pkg/resilience"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Connect подключается к RabbitMQ с повторными попытками.
// Пустой URL отключает публикацию событий.
func Connect(ctx context.Context, cfg config.RabbitMQConfig, rc config.ResilienceConfig, logger *zap.Logger) (Publisher, error) {
	if cfg.URL == "" {
		logger.Info("RabbitMQ URL is not set, match events are disabled")
		return NoopPublisher{}, nil
	}

	options := resilience.DefaultRetryOptions()
	options.MaxRetries = rc.Startup.MaxRetries
	options.InitialBackoff = rc.Startup.InitialBackoff
	options.MaxBackoff = rc.Startup.MaxBackoff

	var conn *amqp.Connection
	err := resilience.WithRetry(ctx, logger, "rabbitmq_connect", options, func(ctx context.Context) error {
		var err error
		conn, err = amqp.Dial(cfg.URL)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	publisher, err := NewRabbitPublisher(conn, cfg.Exchange, logger)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return publisher, nil
}
