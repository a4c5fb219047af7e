package kafka

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand"
	"strconv"
	"sync"
	"time"

	applogger "Agora/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

// MessageHandler handles messages from a specific topic.
type MessageHandler interface {
	Topic() string
	Handle(context.Context, []byte) error
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads registered topics and dispatches messages to a worker pool.
// Messages of one partition always go to the same worker, so they are
// handled in offset order.
type Consumer struct {
	cfg      *ConsumerConfig
	log      *applogger.Logger
	metrics  *consumerMetrics
	hook     ConsumerHook
	handlers map[string]MessageHandler
	readers  map[string]messageReader
	dlq      messageWriter
	queues   []chan kafka.Message

	ctx    context.Context
	cancel context.CancelFunc
	fetch  sync.WaitGroup
	work   sync.WaitGroup
	once   sync.Once
}

// NewConsumer creates a new Kafka consumer.
func NewConsumer(opts ...ConsumerOption) (*Consumer, error) {
	cfg := &ConsumerConfig{
		GroupID:     "agora",
		StartOffset: "earliest",
		WorkerCount: 1,
		BufferSize:  16,
		RetryMax:    3,
		BackoffMin:  50 * time.Millisecond,
		BackoffMax:  2 * time.Second,
		MinBytes:    1,
		MaxBytes:    10e6,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}

	c := newConsumer(cfg)
	if cfg.DLQTopic != "" {
		c.dlq = &kafka.Writer{Addr: kafka.TCP(cfg.Brokers...), Balancer: &kafka.Hash{}}
	}
	return c, nil
}

func newConsumer(cfg *ConsumerConfig) *Consumer {
	l := cfg.Logger
	if l == nil {
		l = applogger.Nop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Consumer{
		cfg:      cfg,
		log:      l,
		metrics:  newConsumerMetrics(cfg.Registerer),
		hook:     NoopHook{},
		handlers: make(map[string]MessageHandler),
		readers:  make(map[string]messageReader),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// RegisterHandler registers a message handler for its topic. Call before Start.
func (c *Consumer) RegisterHandler(handler MessageHandler) {
	topic := handler.Topic()
	if _, ok := c.handlers[topic]; ok {
		c.log.Warn("kafka consumer: handler already registered", applogger.String("topic", topic))
		return
	}
	c.handlers[topic] = handler
}

// WithConsumerHook sets a hook implementation for lifecycle events.
func (c *Consumer) WithConsumerHook(h ConsumerHook) {
	if h != nil {
		c.hook = h
	}
}

// Start opens one reader per registered topic and starts the workers.
func (c *Consumer) Start() error {
	if len(c.handlers) == 0 {
		return errors.New("kafka consumer: no handlers registered")
	}
	for topic := range c.handlers {
		if _, ok := c.readers[topic]; ok {
			continue
		}
		c.readers[topic] = kafka.NewReader(kafka.ReaderConfig{
			Brokers:     c.cfg.Brokers,
			Topic:       topic,
			GroupID:     c.cfg.GroupID,
			MinBytes:    c.cfg.MinBytes,
			MaxBytes:    c.cfg.MaxBytes,
			StartOffset: startOffset(c.cfg.StartOffset),
		})
	}
	c.startWorkers()

	for topic, reader := range c.readers {
		c.fetch.Add(1)
		go c.consume(topic, reader)
	}

	c.log.Info("kafka consumer: started",
		applogger.Int("topics", len(c.readers)),
		applogger.Int("workers", c.cfg.WorkerCount),
		applogger.String("group", c.cfg.GroupID),
	)
	return nil
}

func (c *Consumer) startWorkers() {
	c.queues = make([]chan kafka.Message, c.cfg.WorkerCount)
	for i := range c.queues {
		c.queues[i] = make(chan kafka.Message, c.cfg.BufferSize)
		c.work.Add(1)
		go c.worker(c.queues[i])
	}
}

// Stop stops fetching, drains queued messages and closes readers.
func (c *Consumer) Stop(ctx context.Context) error {
	var stopErr error
	c.once.Do(func() {
		c.cancel()
		c.fetch.Wait()
		for _, q := range c.queues {
			close(q)
		}

		done := make(chan struct{})
		go func() {
			c.work.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			stopErr = fmt.Errorf("timeout waiting for consumer to stop: %w", ctx.Err())
		}

		for topic, reader := range c.readers {
			if err := reader.Close(); err != nil {
				c.log.Warn("kafka consumer: close reader", applogger.String("topic", topic), applogger.Error(err))
			}
		}
		if c.dlq != nil {
			if err := c.dlq.Close(); err != nil {
				c.log.Warn("kafka consumer: close dlq writer", applogger.Error(err))
			}
		}
		c.log.Info("kafka consumer: stopped")
	})
	return stopErr
}

func (c *Consumer) consume(topic string, reader messageReader) {
	defer c.fetch.Done()

	attempt := 0
	for {
		msg, err := reader.FetchMessage(c.ctx)
		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			attempt++
			c.log.Warn("kafka consumer: fetch failed", applogger.String("topic", topic), applogger.Error(err))
			if !c.sleep(backoffWithJitter(c.cfg.BackoffMin, c.cfg.BackoffMax, attempt)) {
				return
			}
			continue
		}
		attempt = 0

		q := c.queues[c.route(topic, msg.Partition)]
		select {
		case q <- msg:
			c.metrics.queued(topic, len(q))
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Consumer) route(topic string, partition int) int {
	h := fnv.New32a()
	h.Write([]byte(topic))
	h.Write([]byte(strconv.Itoa(partition)))
	return int(h.Sum32() % uint32(len(c.queues)))
}

func (c *Consumer) worker(q <-chan kafka.Message) {
	defer c.work.Done()
	for msg := range q {
		c.process(msg)
	}
}

// process handles one message with retries. The offset is committed on
// success, and on failure once the message has been parked in the DLQ.
func (c *Consumer) process(msg kafka.Message) {
	handler, ok := c.handlers[msg.Topic]
	if !ok {
		return
	}
	start := time.Now()

	err := c.handleWithRetry(handler, msg)
	if err != nil {
		c.hook.OnError(context.Background(), msg.Topic, msg, msg.Value, err)
		c.log.Error("kafka consumer: handler failed",
			applogger.String("topic", msg.Topic),
			applogger.Int("partition", msg.Partition),
			applogger.Int64("offset", msg.Offset),
			applogger.Error(err),
		)
		if !c.deadLetter(msg, err) {
			c.metrics.handled(msg.Topic, "failed", time.Since(start))
			return
		}
	}

	if reader := c.readers[msg.Topic]; reader != nil {
		if cerr := c.commitWithRetry(reader, msg, 3); cerr != nil {
			c.log.Error("kafka consumer: commit failed",
				applogger.String("topic", msg.Topic),
				applogger.Int64("offset", msg.Offset),
				applogger.Error(cerr),
			)
		}
	}
	result := "ok"
	if err != nil {
		result = "dead_lettered"
	}
	c.metrics.handled(msg.Topic, result, time.Since(start))
}

func (c *Consumer) handleWithRetry(handler MessageHandler, msg kafka.Message) (err error) {
	for attempt := 1; ; attempt++ {
		err = c.handleOnce(handler, msg)
		if err == nil || attempt > c.cfg.RetryMax || errors.Is(err, ErrPermanent) {
			return err
		}
		c.hook.OnError(context.Background(), msg.Topic, msg, msg.Value, err)
		if !c.sleep(backoffWithJitter(c.cfg.BackoffMin, c.cfg.BackoffMax, attempt)) {
			return err
		}
	}
}

func (c *Consumer) handleOnce(handler MessageHandler, msg kafka.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic in handler: %v", ErrPermanent, r)
		}
	}()

	ctx, hmsg, data, err := c.hook.BeforeHandle(context.Background(), msg.Topic, msg, msg.Value)
	if err != nil {
		return err
	}
	err = handler.Handle(ctx, data)
	c.hook.AfterHandle(ctx, msg.Topic, hmsg, data, err)
	return err
}

// ErrPermanent marks handler errors that retrying cannot fix, such as
// undecodable payloads.
var ErrPermanent = errors.New("permanent failure")

func (c *Consumer) deadLetter(msg kafka.Message, cause error) bool {
	if c.dlq == nil || c.cfg.DLQTopic == "" {
		return false
	}
	headers := append([]kafka.Header(nil), msg.Headers...)
	headers = append(headers,
		kafka.Header{Key: HeaderSource, Value: []byte(msg.Topic)},
		kafka.Header{Key: "error", Value: []byte(cause.Error())},
	)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.dlq.WriteMessages(ctx, kafka.Message{
		Topic:   c.cfg.DLQTopic,
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: headers,
		Time:    time.Now(),
	}); err != nil {
		c.log.Error("kafka consumer: dlq write failed", applogger.String("topic", c.cfg.DLQTopic), applogger.Error(err))
		return false
	}
	return true
}

// commitWithRetry commits a single message offset with bounded retries.
func (c *Consumer) commitWithRetry(reader messageReader, km kafka.Message, max int) error {
	var err error
	for attempt := 1; attempt <= max; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err = reader.CommitMessages(ctx, km)
		cancel()
		if err == nil {
			return nil
		}
		time.Sleep(backoffWithJitter(50*time.Millisecond, 500*time.Millisecond, attempt))
	}
	return err
}

// sleep waits for d unless the consumer is stopping.
func (c *Consumer) sleep(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-c.ctx.Done():
		return false
	}
}

func startOffset(s string) int64 {
	if s == "latest" {
		return kafka.LastOffset
	}
	return kafka.FirstOffset
}

func backoffWithJitter(min, max time.Duration, attempt int) time.Duration {
	if min <= 0 {
		min = 50 * time.Millisecond
	}
	if max < min {
		max = min
	}
	if attempt > 30 {
		attempt = 30
	}
	exp := min * time.Duration(1<<uint(attempt-1))
	if exp > max || exp <= 0 {
		exp = max
	}
	// up to 50% jitter
	if half := int64(exp) / 2; half > 0 {
		exp -= time.Duration(rand.Int63n(half))
	}
	return exp
}

type consumerMetrics struct {
	depth   *prometheus.GaugeVec
	results *prometheus.CounterVec
	latency *prometheus.HistogramVec
}

func newConsumerMetrics(reg prometheus.Registerer) *consumerMetrics {
	if reg == nil {
		return nil
	}
	f := promauto.With(reg)
	return &consumerMetrics{
		depth: f.NewGaugeVec(
			prometheus.GaugeOpts{Name: "agora_kafka_consumer_queue_depth", Help: "Messages waiting in the worker queue"},
			[]string{"topic"},
		),
		results: f.NewCounterVec(
			prometheus.CounterOpts{Name: "agora_kafka_consumer_messages_total", Help: "Messages handled by result"},
			[]string{"topic", "result"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{Name: "agora_kafka_consumer_handle_seconds", Help: "Handling time per message"},
			[]string{"topic"},
		),
	}
}

func (m *consumerMetrics) queued(topic string, depth int) {
	if m == nil {
		return
	}
	m.depth.WithLabelValues(topic).Set(float64(depth))
}

func (m *consumerMetrics) handled(topic, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.results.WithLabelValues(topic, result).Inc()
	m.latency.WithLabelValues(topic).Observe(d.Seconds())
}
