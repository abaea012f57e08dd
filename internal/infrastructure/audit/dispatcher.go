package audit

import (
	"context"
	"hash/fnv"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/loginguard/auth-service/internal/api/metrics"
	"github.com/loginguard/auth-service/internal/core/domain"
	"github.com/loginguard/auth-service/internal/core/ports"
)

const (
	defaultWorkers = 4
	channelBuffer  = 256
)

// Dispatcher persists audit events on a fixed set of workers. Events are
// sharded by username so one account's trail is written in emission order.
type Dispatcher struct {
	workers []chan domain.AuditEvent
	repo    ports.AuditRepository
	log     zerolog.Logger
	wg      sync.WaitGroup
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, repo ports.AuditRepository, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers: make([]chan domain.AuditEvent, numWorkers),
		repo:    repo,
		log:     log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan domain.AuditEvent, channelBuffer)
	}
	return d
}

// Start launches the workers. They drain their channels and exit once ctx
// is cancelled; Wait blocks until all of them are done.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		d.wg.Add(1)
		go d.runWorker(ctx, i, ch)
	}
}

// Wait blocks until every worker has returned.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Enqueue hands the event to the worker owning its username. It never
// blocks: when the worker is saturated the event is dropped and counted.
func (d *Dispatcher) Enqueue(event domain.AuditEvent) bool {
	idx := d.shardIndex(event.Username)
	select {
	case d.workers[idx] <- event:
		metrics.AuditQueueDepth.WithLabelValues(strconv.Itoa(idx)).Inc()
		return true
	default:
		metrics.AuditWriteErrorsTotal.WithLabelValues("queue_full").Inc()
		d.log.Warn().
			Str("event", string(event.Kind)).
			Str("username", event.Username).
			Int("worker_id", idx).
			Msg("audit queue full, event dropped")
		return false
	}
}

// shardIndex maps a username deterministically to a worker index.
func (d *Dispatcher) shardIndex(username string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(username))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan domain.AuditEvent) {
	defer d.wg.Done()
	label := strconv.Itoa(id)
	for {
		select {
		case <-ctx.Done():
			d.drain(id, label, ch)
			return
		case event := <-ch:
			metrics.AuditQueueDepth.WithLabelValues(label).Dec()
			d.persist(ctx, id, event)
		}
	}
}

// drain writes whatever is still buffered with a fresh context so a
// shutdown does not lose queued events.
func (d *Dispatcher) drain(id int, label string, ch <-chan domain.AuditEvent) {
	for {
		select {
		case event := <-ch:
			metrics.AuditQueueDepth.WithLabelValues(label).Dec()
			d.persist(context.Background(), id, event)
		default:
			return
		}
	}
}

func (d *Dispatcher) persist(ctx context.Context, id int, event domain.AuditEvent) {
	if err := d.repo.InsertEvent(ctx, &event); err != nil {
		metrics.AuditWriteErrorsTotal.WithLabelValues("insert_failed").Inc()
		d.log.Error().Err(err).
			Str("event", string(event.Kind)).
			Str("username", event.Username).
			Int("worker_id", id).
			Msg("audit event persistence failed")
	}
}
