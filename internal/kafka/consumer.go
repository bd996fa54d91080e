package kafka

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/segmentio/kafka-go"
)

// Handler errors are retried before the message is given up and committed.
type Handler func(ctx context.Context, m kafka.Message) error

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	r          messageReader
	workers    int
	retries    int
	retryDelay time.Duration
	log        *slog.Logger
}

// NewConsumer reads topic as group. Give every instance its own group when
// each of them must see every message.
func NewConsumer(brokers []string, group, topic string, workers int, log *slog.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		StartOffset:    kafka.LastOffset,
		CommitInterval: 0, // manual commit
	})
	return newConsumer(r, workers, log)
}

func newConsumer(r messageReader, workers int, log *slog.Logger) *Consumer {
	if workers <= 0 {
		workers = 1
	}
	if log == nil {
		log = slog.Default()
	}
	return &Consumer{r: r, workers: workers, retries: 3, retryDelay: 200 * time.Millisecond, log: log}
}

// Start dispatches messages to a pool of workers until ctx is done. Every
// partition is pinned to one worker, so its messages are handled and
// committed in offset order.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	queues := make([]chan kafka.Message, c.workers)
	for i := range queues {
		queues[i] = make(chan kafka.Message, 64)
		go func(jobs <-chan kafka.Message) {
			for m := range jobs {
				c.handle(ctx, h, m)
			}
		}(queues[i])
	}
	stop := func() {
		for _, q := range queues {
			close(q)
		}
	}

	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			stop()
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		select {
		case queues[m.Partition%c.workers] <- m:
		case <-ctx.Done():
			stop()
			return nil
		}
	}
}

// handle retries h a few times. A message that still fails is logged and
// committed so the partition keeps moving.
func (c *Consumer) handle(ctx context.Context, h Handler, m kafka.Message) {
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, h(ctx, m)
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(c.retryDelay)),
		backoff.WithMaxTries(uint(c.retries+1)),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.log.Warn("event handler failed, retrying", "partition", m.Partition, "offset", m.Offset, "error", err, "next", next)
		}),
	)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		c.log.Error("event dropped", "partition", m.Partition, "offset", m.Offset, "error", err)
	}
	if err := c.r.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
		c.log.Warn("commit failed", "partition", m.Partition, "offset", m.Offset, "error", err)
	}
}
