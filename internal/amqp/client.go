// Package amqp connects the ledger to RabbitMQ: candidates from the
// recognition layer arrive on the intake queue, committed ledger mutations
// go out on the events queue.
package amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"golang.org/x/sync/errgroup"

	"github.com/stepanyanprod-creator/finance-bot/internal/log"
	"github.com/stepanyanprod-creator/finance-bot/internal/services"
)

const publishTimeout = 5 * time.Second

type Client struct {
	conn        *amqp091.Connection
	channel     *amqp091.Channel
	exchange    string
	intakeQueue string
	eventsQueue string
	logger      *log.Logger
}

// NewClient dials the broker and declares the exchange and both queues.
func NewClient(url, exchange, intakeQueue, eventsQueue string, logger *log.Logger) (*Client, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	client := &Client{
		conn:        conn,
		channel:     channel,
		exchange:    exchange,
		intakeQueue: intakeQueue,
		eventsQueue: eventsQueue,
		logger:      logger.WithComponent(log.ComponentAMQP),
	}

	if err := client.setup(); err != nil {
		client.Close()
		return nil, fmt.Errorf("setup exchange and queues: %w", err)
	}

	return client, nil
}

func (c *Client) setup() error {
	err := c.channel.ExchangeDeclare(
		c.exchange,
		"direct",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	for _, queue := range []string{c.intakeQueue, c.eventsQueue} {
		_, err = c.channel.QueueDeclare(
			queue,
			true,  // durable
			false, // delete when unused
			false, // exclusive
			false, // no-wait
			nil,
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", queue, err)
		}

		// Routing key equals the queue name on a direct exchange.
		if err := c.channel.QueueBind(queue, queue, c.exchange, false, nil); err != nil {
			return fmt.Errorf("bind queue %s: %w", queue, err)
		}
	}

	return nil
}

func (c *Client) publishJSON(ctx context.Context, routingKey string, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err := c.channel.PublishWithContext(
		ctx,
		c.exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}
	return nil
}

// Publish emits a ledger event on the events queue. Implements
// services.Publisher.
func (c *Client) Publish(ctx context.Context, ev services.Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := c.publishJSON(ctx, c.eventsQueue, body); err != nil {
		return err
	}

	c.logger.Debug("published ledger event",
		log.FieldUserID, ev.UserID,
		log.FieldOperation, ev.Kind,
		"queue", c.eventsQueue)
	return nil
}

// PublishCandidate enqueues a transaction proposal for the intake worker.
func (c *Client) PublishCandidate(ctx context.Context, msg *CandidateMessage) error {
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal candidate: %w", err)
	}
	if err := c.publishJSON(ctx, c.intakeQueue, body); err != nil {
		return err
	}

	c.logger.Info("published candidate",
		log.FieldUserID, msg.UserID,
		log.FieldSource, msg.Source,
		"queue", c.intakeQueue)
	return nil
}

// ConsumeCandidates delivers intake messages to handler with manual acks,
// fanning deliveries out to concurrency goroutines. A message that fails to
// parse is rejected without requeue; a handler error requeues the message.
// Blocks until ctx is cancelled.
func (c *Client) ConsumeCandidates(ctx context.Context, prefetch, concurrency int, handler func(context.Context, *CandidateMessage) error) error {
	if concurrency <= 0 {
		concurrency = 1
	}
	if err := c.channel.Qos(prefetch, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}

	msgs, err := c.channel.Consume(
		c.intakeQueue,
		"",    // consumer
		false, // manual ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	c.logger.Info("consuming candidates",
		"queue", c.intakeQueue,
		"prefetch", prefetch,
		"concurrency", concurrency)

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < concurrency; i++ {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case delivery, ok := <-msgs:
					if !ok {
						return fmt.Errorf("message channel closed")
					}
					c.handleDelivery(ctx, delivery, handler)
				}
			}
		})
	}

	err = g.Wait()
	c.logger.Info("stopping candidate consumption", "reason", err)
	return err
}

func (c *Client) handleDelivery(ctx context.Context, delivery amqp091.Delivery, handler func(context.Context, *CandidateMessage) error) {
	msg, err := CandidateMessageFromJSON(delivery.Body)
	if err != nil {
		c.logger.Error("unparsable candidate message", log.FieldError, err.Error())
		delivery.Nack(false, false)
		return
	}

	if err := handler(ctx, msg); err != nil {
		c.logger.Error("candidate handler failed",
			log.FieldError, err.Error(),
			log.FieldUserID, msg.UserID,
			log.FieldSource, msg.Source)
		delivery.Nack(false, true)
		return
	}

	delivery.Ack(false)
}

func (c *Client) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
