package queue

import (
	"context"
	"hash/fnv"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/roadbook/planner-api/internal/api/metrics"
	"github.com/roadbook/planner-api/internal/core/domain"
	"github.com/roadbook/planner-api/internal/core/ports"
)

const (
	defaultWorkers     = 4
	defaultMaxAttempts = 3
	defaultBackoff     = 500 * time.Millisecond
	defaultDrain       = 10 * time.Second
	channelBuffer      = 256
)

// MailDispatcher delivers mails asynchronously through a fixed set of workers.
// Mails are sharded by recipient so that mails to one address keep their order.
type MailDispatcher struct {
	workers     []chan domain.Mail
	mailer      ports.Mailer
	maxAttempts int
	backoff     time.Duration
	drain       time.Duration
	log         zerolog.Logger

	done chan struct{}
	wg   sync.WaitGroup
}

// Options tunes the dispatcher. Zero values fall back to defaults.
type Options struct {
	Workers     int
	MaxAttempts int
	Backoff     time.Duration
	// DrainTimeout bounds delivery of mails still buffered at shutdown.
	DrainTimeout time.Duration
}

// NewMailDispatcher creates a MailDispatcher delivering through mailer.
func NewMailDispatcher(mailer ports.Mailer, opts Options, log zerolog.Logger) *MailDispatcher {
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.Backoff <= 0 {
		opts.Backoff = defaultBackoff
	}
	if opts.DrainTimeout <= 0 {
		opts.DrainTimeout = defaultDrain
	}
	d := &MailDispatcher{
		workers:     make([]chan domain.Mail, opts.Workers),
		mailer:      mailer,
		maxAttempts: opts.MaxAttempts,
		backoff:     opts.Backoff,
		drain:       opts.DrainTimeout,
		log:         log,
		done:        make(chan struct{}),
	}
	for i := range d.workers {
		d.workers[i] = make(chan domain.Mail, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Once ctx is cancelled Enqueue returns
// domain.ErrMailQueueClosed and each worker delivers what is left in its
// buffer, within DrainTimeout, before returning.
func (d *MailDispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		d.wg.Add(1)
		go d.runWorker(ctx, i, ch)
	}
	go func() {
		<-ctx.Done()
		close(d.done)
	}()
}

// Wait blocks until every worker has returned.
func (d *MailDispatcher) Wait() {
	d.wg.Wait()
}

// Enqueue hands m to the worker responsible for its recipient. It blocks
// while that worker's buffer is full.
func (d *MailDispatcher) Enqueue(ctx context.Context, m domain.Mail) error {
	idx := d.shardIndex(m.To)
	select {
	case <-d.done:
		return domain.ErrMailQueueClosed
	default:
	}

	select {
	case d.workers[idx] <- m:
		metrics.MailQueueDepth.WithLabelValues(strconv.Itoa(idx)).Inc()
		return nil
	case <-d.done:
		return domain.ErrMailQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// shardIndex maps a recipient deterministically to a worker index.
func (d *MailDispatcher) shardIndex(recipient string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(strings.ToLower(recipient)))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *MailDispatcher) runWorker(ctx context.Context, id int, ch <-chan domain.Mail) {
	defer d.wg.Done()
	label := strconv.Itoa(id)
	for {
		select {
		case <-ctx.Done():
			d.drainWorker(ctx, id, ch)
			return
		case m := <-ch:
			metrics.MailQueueDepth.WithLabelValues(label).Dec()
			if ctx.Err() != nil {
				d.drainWorker(ctx, id, ch, m)
				return
			}
			d.deliver(ctx, id, m)
		}
	}
}

// drainWorker delivers pending and whatever is still buffered in ch on a
// context detached from the cancelled one. Mails left once the drain timeout
// passes are counted and logged as dropped.
func (d *MailDispatcher) drainWorker(ctx context.Context, id int, ch <-chan domain.Mail, pending ...domain.Mail) {
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.drain)
	defer cancel()

	label := strconv.Itoa(id)
	delivered, dropped := 0, 0
	send := func(m domain.Mail) {
		if dctx.Err() != nil {
			dropped++
			metrics.MailsSentTotal.WithLabelValues("dropped").Inc()
			return
		}
		d.deliver(dctx, id, m)
		delivered++
	}
	for _, m := range pending {
		send(m)
	}
	for {
		select {
		case m := <-ch:
			metrics.MailQueueDepth.WithLabelValues(label).Dec()
			send(m)
		default:
			if dropped > 0 {
				d.log.Error().Int("worker_id", id).Int("dropped", dropped).Int("delivered", delivered).
					Msg("mail queue drain timed out")
			} else if delivered > 0 {
				d.log.Info().Int("worker_id", id).Int("delivered", delivered).Msg("mail queue drained")
			}
			return
		}
	}
}

func (d *MailDispatcher) deliver(ctx context.Context, workerID int, m domain.Mail) {
	start := time.Now()
	defer func() { metrics.MailDeliveryDuration.Observe(time.Since(start).Seconds()) }()

	var err error
	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		if err = d.mailer.Send(ctx, m); err == nil {
			metrics.MailsSentTotal.WithLabelValues("sent").Inc()
			return
		}
		d.log.Warn().Err(err).
			Str("to", m.To).
			Int("attempt", attempt).
			Int("worker_id", workerID).
			Msg("mail delivery attempt failed")

		if attempt == d.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			metrics.MailsSentTotal.WithLabelValues("failed").Inc()
			return
		case <-time.After(d.backoff << (attempt - 1)):
		}
	}

	metrics.MailsSentTotal.WithLabelValues("failed").Inc()
	d.log.Error().Err(err).
		Str("to", m.To).
		Str("subject", m.Subject).
		Int("worker_id", workerID).
		Msg("mail delivery failed")
}
