// Package sender executes outbound platform calls asynchronously while
// preserving per-user message order.
package sender

import (
	"context"
	"errors"
	"hash/fnv"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smartassist/viberbot/logger"
	"github.com/smartassist/viberbot/observability"
)

var (
	// ErrQueueClosed is returned when enqueue is attempted after dispatcher stop.
	ErrQueueClosed = errors.New("sender: queue closed")
	// ErrQueueFull indicates the user's queue is saturated and the job was
	// not accepted.
	ErrQueueFull = errors.New("sender: queue full")
)

// Options controls the behaviour of the outbound dispatcher.
type Options struct {
	QueueSize int
	Workers   int
	// SendTimeout bounds the time spent on a single job.
	SendTimeout time.Duration
}

type job struct {
	ctx    context.Context
	action string
	userID string
	run    func(ctx context.Context) error
}

// Dispatcher fans outbound jobs across workers. Jobs for the same user are
// routed to the same worker, so sends per user complete in enqueue order;
// there are no delivery retries.
type Dispatcher struct {
	opts   Options
	queues []chan job
	stop   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
	errs   atomic.Uint64
}

// NewDispatcher starts a dispatcher with sane defaults if options are zeroed.
func NewDispatcher(opts Options) *Dispatcher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = 12 * time.Second
	}

	d := &Dispatcher{
		opts:   opts,
		queues: make([]chan job, opts.Workers),
		stop:   make(chan struct{}),
	}

	d.wg.Add(opts.Workers)
	for i := range d.queues {
		d.queues[i] = make(chan job, opts.QueueSize)
		go d.worker(d.queues[i])
	}

	return d
}

// Enqueue schedules the provided function for asynchronous execution on the
// user's worker.
func (d *Dispatcher) Enqueue(ctx context.Context, action, userID string, run func(ctx context.Context) error) error {
	if run == nil {
		return errors.New("sender: nil run function")
	}
	select {
	case <-d.stop:
		return ErrQueueClosed
	default:
	}

	j := job{
		ctx:    ctx,
		action: action,
		userID: userID,
		run:    run,
	}

	select {
	case d.queueFor(userID) <- j:
		return nil
	default:
		observability.OutboundSend(action, "dropped")
		return ErrQueueFull
	}
}

func (d *Dispatcher) queueFor(userID string) chan job {
	h := fnv.New32a()
	h.Write([]byte(userID))
	return d.queues[h.Sum32()%uint32(len(d.queues))]
}

// ErrorCount returns the number of failed jobs.
func (d *Dispatcher) ErrorCount() uint64 {
	return d.errs.Load()
}

// Close stops workers and waits for them to finish processing queued jobs.
func (d *Dispatcher) Close() {
	d.once.Do(func() {
		close(d.stop)
		for _, q := range d.queues {
			close(q)
		}
		d.wg.Wait()
	})
}

func (d *Dispatcher) worker(queue chan job) {
	defer d.wg.Done()
	for j := range queue {
		d.handleJob(j)
	}
}

func (d *Dispatcher) handleJob(j job) {
	ctx := j.ctx
	if ctx == nil {
		ctx = context.Background()
	}

	deadlineCtx, cancel := context.WithTimeout(ctx, d.opts.SendTimeout)
	defer cancel()

	start := time.Now()
	if logger.ShouldSampleDebug() {
		logger.Debug(ctx, "sender", "send.start", sendLogAttrs(ctx, j)...)
	}

	if err := j.run(deadlineCtx); err != nil {
		d.errs.Add(1)
		observability.OutboundSend(j.action, "fail")
		attrs := append(sendLogAttrs(ctx, j),
			slog.String("err", logger.Sanitize(err.Error())),
			slog.Duration("took", logger.Took(start)),
		)
		logger.Error(ctx, "sender", "send.fail", attrs...)
		return
	}

	observability.OutboundSend(j.action, "ok")
	if logger.ShouldSampleDebug() {
		attrs := append(sendLogAttrs(ctx, j), slog.Duration("took", logger.Took(start)))
		logger.Debug(ctx, "sender", "send.success", attrs...)
	}
}

func sendLogAttrs(ctx context.Context, j job) []slog.Attr {
	attrs := []slog.Attr{
		slog.String("action", j.action),
	}
	if rid := logger.RIDFrom(ctx); rid != "" {
		attrs = append(attrs, slog.String("rid", rid))
	}
	if j.userID != "" {
		attrs = append(attrs, slog.String("user_id", j.userID))
	}
	return attrs
}
