// Package notify runs outbound mail on a small fixed pool of workers so
// request handlers never wait on the mail provider.
package notify

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/afromart/gate/internal/logging"
	"github.com/afromart/gate/mail"
)

var ErrDrainTimeout = errors.New("notify: drain timed out")

// Config controls pool size and buffering.
type Config struct {
	Workers     int
	QueueSize   int
	SendTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 2
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 64
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = 30 * time.Second
	}
	return c
}

type job struct {
	id  string
	msg mail.Message
}

// Dispatcher accepts messages without blocking and delivers them in the
// background. Delivery errors are logged and counted, never returned.
type Dispatcher struct {
	cfg    Config
	sender mail.Sender
	log    logging.Logger

	mu     sync.RWMutex
	closed bool
	jobs   chan job
	wg     sync.WaitGroup

	// base is cancelled when a drain times out so in-flight sends abort.
	base   context.Context
	cancel context.CancelFunc

	sent    atomic.Uint64
	failed  atomic.Uint64
	dropped atomic.Uint64
}

func New(cfg Config, sender mail.Sender, log logging.Logger) *Dispatcher {
	cfg = cfg.withDefaults()
	if log == nil {
		log = logging.Discard()
	}
	base, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		cfg:    cfg,
		sender: sender,
		log:    log,
		jobs:   make(chan job, cfg.QueueSize),
		base:   base,
		cancel: cancel,
	}
	d.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go d.worker()
	}
	return d
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for j := range d.jobs {
		d.deliver(j)
	}
}

func (d *Dispatcher) deliver(j job) {
	ctx, cancel := context.WithTimeout(d.base, d.cfg.SendTimeout)
	defer cancel()

	if err := d.sender.Send(ctx, j.msg); err != nil {
		d.failed.Add(1)
		d.log.Error(ctx, "mail delivery failed",
			"job_id", j.id,
			"recipients", len(j.msg.To),
			"subject", j.msg.Subject,
			"error", err,
		)
		return
	}
	d.sent.Add(1)
	d.log.Debug(ctx, "mail delivered", "job_id", j.id, "subject", j.msg.Subject)
}

// Submit queues msg and returns immediately. It reports false when the
// queue is full or the dispatcher is closed; the message is then dropped.
func (d *Dispatcher) Submit(ctx context.Context, msg mail.Message) bool {
	if d == nil {
		return false
	}
	j := job{id: uuid.NewString(), msg: msg}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.dropped.Add(1)
		d.log.Warn(ctx, "mail dropped: dispatcher closed", "job_id", j.id, "subject", msg.Subject)
		return false
	}
	select {
	case d.jobs <- j:
		return true
	default:
		d.dropped.Add(1)
		d.log.Warn(ctx, "mail dropped: queue full", "job_id", j.id, "subject", msg.Subject)
		return false
	}
}

// Close stops accepting messages and waits for queued ones to be delivered.
// If ctx ends first, in-flight sends are cancelled and ErrDrainTimeout is
// returned. Close is idempotent.
func (d *Dispatcher) Close(ctx context.Context) error {
	if d == nil {
		return nil
	}
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.jobs)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		d.log.Error(ctx, "mail drain timed out", "pending", len(d.jobs))
		return ErrDrainTimeout
	}
}

func (d *Dispatcher) Sent() uint64 {
	if d == nil {
		return 0
	}
	return d.sent.Load()
}

func (d *Dispatcher) Failed() uint64 {
	if d == nil {
		return 0
	}
	return d.failed.Load()
}

func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
