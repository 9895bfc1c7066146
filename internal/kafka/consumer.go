package kafka

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Handler returns nil once the message is fully processed. Errors are
// retried before the offset is committed anyway.
type Handler func(ctx context.Context, m kafka.Message) error

// Consumer fans messages out to a fixed set of workers. Messages with the
// same key always land on the same worker, so per-order ordering holds.
type Consumer struct {
	r       *kafka.Reader
	workers int
	logger  *zap.Logger

	MaxAttempts int
	Backoff     time.Duration
}

func NewConsumer(brokers []string, group string, topics []string, workers int, logger *zap.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		GroupTopics:    topics,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // commit manually
	})
	if workers <= 0 {
		workers = 1
	}
	return &Consumer{r: r, workers: workers, logger: logger, MaxAttempts: 3, Backoff: 200 * time.Millisecond}
}

// workerFor maps a message key onto a worker index.
func workerFor(key []byte, workers int) int {
	if len(key) == 0 || workers <= 1 {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write(key)
	return int(h.Sum32() % uint32(workers))
}

func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	queues := make([]chan kafka.Message, c.workers)
	var wg sync.WaitGroup
	for i := range queues {
		queues[i] = make(chan kafka.Message, 128)
		wg.Add(1)
		go func(id int, in <-chan kafka.Message) {
			defer wg.Done()
			for m := range in {
				c.process(ctx, id, h, m)
			}
		}(i, queues[i])
	}
	stop := func() {
		for _, q := range queues {
			close(q)
		}
		wg.Wait()
	}

	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			stop()
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		select {
		case queues[workerFor(m.Key, c.workers)] <- m:
		case <-ctx.Done():
			stop()
			return nil
		}
	}
}

func (c *Consumer) process(ctx context.Context, worker int, h Handler, m kafka.Message) {
	attempts := max(c.MaxAttempts, 1)
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = h(ctx, m); err == nil {
			break
		}
		c.logger.Warn("handler failed",
			zap.Int("worker", worker),
			zap.String("topic", m.Topic),
			zap.Int64("offset", m.Offset),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if attempt == attempts {
			break
		}
		select {
		case <-time.After(c.Backoff * time.Duration(attempt)):
		case <-ctx.Done():
			return
		}
	}
	if err != nil {
		// the offset moves on regardless; later commits would skip it anyway
		c.logger.Error("giving up on message",
			zap.String("topic", m.Topic),
			zap.Int("partition", m.Partition),
			zap.Int64("offset", m.Offset),
			zap.ByteString("key", m.Key),
			zap.Error(err),
		)
	}
	if err := c.r.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
		c.logger.Warn("commit failed", zap.Int64("offset", m.Offset), zap.Error(err))
	}
}
