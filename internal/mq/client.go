// Package mq wraps the AMQP connection carrying the scan (inbound) and
// dispense (outbound) channels.
package mq

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/fairyhunter13/vending-kiosk-service/internal/config"
	"github.com/fairyhunter13/vending-kiosk-service/internal/obs"
)

// Client is a wrapper around one AMQP connection and channel. The connection
// is injected into the components that need it rather than held as ambient
// global state.
type Client struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	cfg     config.Config
}

// Dial connects to the broker with retry, declares the topic exchange, and
// binds the scan queue.
func Dial(cfg config.Config) (*Client, error) {
	var (
		conn *amqp.Connection
		err  error
	)
	// Retry connection up to 5 times with exponential backoff.
	for i := 0; i < 5; i++ {
		conn, err = amqp.Dial(cfg.MQURL)
		if err == nil {
			break
		}
		retryTime := time.Duration(i*i)*time.Second + time.Second
		obs.Logger.Warn("mq_connect_retry", "retry_in", retryTime.String(), "error", err)
		time.Sleep(retryTime)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to broker after retries: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		cfg.MQExchange, // name
		"topic",        // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", cfg.MQExchange, err)
	}

	q, err := channel.QueueDeclare(
		cfg.ScanQueue, // name
		true,          // durable
		false,         // delete when unused
		false,         // exclusive
		false,         // no-wait
		nil,           // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue %s: %w", cfg.ScanQueue, err)
	}

	err = channel.QueueBind(q.Name, cfg.ScanRoutingKey, cfg.MQExchange, false, nil)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to bind queue %s: %w", cfg.ScanQueue, err)
	}

	obs.Logger.Info("mq_connected", "exchange", cfg.MQExchange, "scan_queue", cfg.ScanQueue)
	return &Client{conn: conn, channel: channel, cfg: cfg}, nil
}

// Consume starts delivering raw scan payloads. Deliveries are auto-acked:
// the scan channel is best-effort by contract.
func (c *Client) Consume(ctx context.Context) (<-chan amqp.Delivery, error) {
	deliveries, err := c.channel.ConsumeWithContext(
		ctx,
		c.cfg.ScanQueue, // queue
		"",              // consumer
		true,            // auto-ack
		false,           // exclusive
		false,           // no-local
		false,           // no-wait
		nil,             // args
	)
	if err != nil {
		return nil, fmt.Errorf("failed to consume from %s: %w", c.cfg.ScanQueue, err)
	}
	return deliveries, nil
}

// Publish sends one plain-text message on the dispense routing key.
func (c *Client) Publish(ctx context.Context, message string) error {
	err := c.channel.PublishWithContext(
		ctx,
		c.cfg.MQExchange,         // exchange
		c.cfg.DispenseRoutingKey, // routing key
		false,                    // mandatory
		false,                    // immediate
		amqp.Publishing{
			ContentType: "text/plain",
			Body:        []byte(message),
			Timestamp:   time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish dispense message: %w", err)
	}
	return nil
}

// Close shuts down the channel and connection.
func (c *Client) Close() error {
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			return fmt.Errorf("close channel: %w", err)
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			return fmt.Errorf("close connection: %w", err)
		}
	}
	return nil
}
