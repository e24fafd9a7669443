// Package queue implements the redis-backed inbound message queue. Channels
// enqueue conversant messages; the engine worker drains them in arrival
// order, one list per conversant.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/converso/converso/pkg/models"
)

const (
	inboxPrefix  = "converso:inbox:"
	outboxPrefix = "converso:outbox:"
	readyKey     = "converso:ready"

	popTimeout = 1 * time.Second
)

// InboundMessage is one queued conversant message.
type InboundMessage struct {
	ConversantID string        `json:"conversant_id"`
	Channel      string        `json:"channel,omitempty"`
	Text         string        `json:"text"`
	Locale       models.Locale `json:"locale,omitempty"`
	Timestamp    time.Time     `json:"timestamp"`
}

// Handler consumes one dequeued message.
type Handler func(ctx context.Context, message InboundMessage) error

// Queue is the redis transport. Enqueue pushes onto the conversant's inbox
// list and marks the conversant ready; the consumer loop pops ready markers
// and drains inboxes in FIFO order.
type Queue struct {
	client redis.UniversalClient
	logger *slog.Logger
	stopCh chan struct{}
	wg     sync.WaitGroup
}

func NewQueue(ctx context.Context, logger *slog.Logger, redisURL string) (*Queue, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	logger.InfoContext(ctx, "Connected to redis", "addr", opts.Addr)

	return &Queue{
		client: client,
		logger: logger.With("module", "queue"),
		stopCh: make(chan struct{}),
	}, nil
}

func inboxKey(conversantID string) string {
	return inboxPrefix + conversantID
}

// Enqueue appends a message to the conversant's inbox.
func (q *Queue) Enqueue(ctx context.Context, message InboundMessage) error {
	if message.ConversantID == "" {
		return errors.New("conversant id is required")
	}

	if message.Timestamp.IsZero() {
		message.Timestamp = time.Now().UTC()
	}

	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("marshal inbound message: %w", err)
	}

	pipe := q.client.TxPipeline()
	pipe.RPush(ctx, inboxKey(message.ConversantID), payload)
	pipe.RPush(ctx, readyKey, message.ConversantID)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("enqueue inbound message: %w", err)
	}

	return nil
}

// Start launches the consumer loop. Messages are handled one at a time, so a
// conversant's inbox drains in the order it filled.
func (q *Queue) Start(ctx context.Context, handler Handler) {
	q.wg.Add(1)

	go q.consume(ctx, handler)
}

func (q *Queue) consume(ctx context.Context, handler Handler) {
	defer q.wg.Done()

	q.logger.InfoContext(ctx, "Starting inbound queue consumer")

	for {
		select {
		case <-q.stopCh:
			q.logger.Info("Inbound queue consumer stopped")

			return
		case <-ctx.Done():
			q.logger.Info("Context cancelled, stopping inbound queue consumer")

			return
		default:
			if err := q.processNext(ctx, handler); err != nil {
				q.logger.ErrorContext(ctx, "Error processing inbound message", "error", err)
				time.Sleep(1 * time.Second)
			}
		}
	}
}

func (q *Queue) processNext(ctx context.Context, handler Handler) error {
	result, err := q.client.BLPop(ctx, popTimeout, readyKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
			return nil
		}

		return fmt.Errorf("pop ready marker: %w", err)
	}

	if len(result) < 2 {
		return nil
	}

	conversantID := result[1]

	payload, err := q.client.LPop(ctx, inboxKey(conversantID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			// Marker without a message, another worker already drained it.
			return nil
		}

		return fmt.Errorf("pop inbox %s: %w", conversantID, err)
	}

	var message InboundMessage
	if err := json.Unmarshal([]byte(payload), &message); err != nil {
		// Undecodable payloads are dropped: requeueing them would wedge the
		// conversant's inbox on a poison message.
		return fmt.Errorf("decode inbound message for %s: %w", conversantID, err)
	}

	if err := handler(ctx, message); err != nil {
		q.requeue(ctx, conversantID, payload)

		return fmt.Errorf("handle inbound message for %s: %w", conversantID, err)
	}

	return nil
}

// requeue puts a message the handler failed on back at the head of its
// conversant's inbox, with a fresh ready marker, so the next pass redelivers
// it before anything newer.
func (q *Queue) requeue(ctx context.Context, conversantID, payload string) {
	pipe := q.client.TxPipeline()
	pipe.LPush(ctx, inboxKey(conversantID), payload)
	pipe.RPush(ctx, readyKey, conversantID)

	if _, err := pipe.Exec(ctx); err != nil {
		q.logger.ErrorContext(ctx, "Failed to requeue inbound message",
			"conversant_id", conversantID, "error", err)
	}
}

// OutboundReply is one engine reply queued for delivery back to the
// conversant's channel.
type OutboundReply struct {
	ConversantID string    `json:"conversant_id"`
	Text         string    `json:"text"`
	DelaySeconds int       `json:"delay_seconds,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// PushOutbound appends a reply to the conversant's outbox for the delivery
// channel to drain.
func (q *Queue) PushOutbound(ctx context.Context, reply OutboundReply) error {
	if reply.Timestamp.IsZero() {
		reply.Timestamp = time.Now().UTC()
	}

	payload, err := json.Marshal(reply)
	if err != nil {
		return fmt.Errorf("marshal outbound reply: %w", err)
	}

	if err := q.client.RPush(ctx, outboxPrefix+reply.ConversantID, payload).Err(); err != nil {
		return fmt.Errorf("push outbound reply: %w", err)
	}

	return nil
}

// PopOutbound removes and returns the oldest queued reply for a conversant.
// The second return value is false when the outbox is empty.
func (q *Queue) PopOutbound(ctx context.Context, conversantID string) (OutboundReply, bool, error) {
	payload, err := q.client.LPop(ctx, outboxPrefix+conversantID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return OutboundReply{}, false, nil
		}

		return OutboundReply{}, false, fmt.Errorf("pop outbound reply: %w", err)
	}

	var reply OutboundReply
	if err := json.Unmarshal([]byte(payload), &reply); err != nil {
		return OutboundReply{}, false, fmt.Errorf("decode outbound reply: %w", err)
	}

	return reply, true, nil
}

// Depth returns how many messages wait in a conversant's inbox.
func (q *Queue) Depth(ctx context.Context, conversantID string) (int64, error) {
	return q.client.LLen(ctx, inboxKey(conversantID)).Result()
}

// Stop halts the consumer loop and closes the redis connection.
func (q *Queue) Stop(ctx context.Context) error {
	close(q.stopCh)
	q.wg.Wait()

	if err := q.client.Close(); err != nil {
		q.logger.ErrorContext(ctx, "Error closing redis client", "error", err)

		return err
	}

	return nil
}
