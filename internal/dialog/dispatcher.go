package dialog

import (
	"context"
	"log/slog"
	"sync"

	"github.com/oggyb/matchbot/internal/chat"
	"github.com/oggyb/matchbot/internal/metrics"
)

// Handler processes one update.
type Handler interface {
	Handle(ctx context.Context, upd chat.Update) error
}

// Dispatcher fans updates out to one worker per active user. Each user's
// updates are handled in arrival order; different users run concurrently.
type Dispatcher struct {
	handler Handler
	log     *slog.Logger

	mu     sync.Mutex
	queues map[int64][]chat.Update
	wg     sync.WaitGroup
}

func NewDispatcher(h Handler, log *slog.Logger) *Dispatcher {
	return &Dispatcher{
		handler: h,
		log:     log,
		queues:  make(map[int64][]chat.Update),
	}
}

// Submit enqueues upd and returns immediately. The update outlives ctx's
// cancellation but keeps its values.
func (d *Dispatcher) Submit(ctx context.Context, upd chat.Update) {
	d.mu.Lock()
	defer d.mu.Unlock()

	q, running := d.queues[upd.SenderID]
	d.queues[upd.SenderID] = append(q, upd)
	if !running {
		d.wg.Add(1)
		go d.drain(context.WithoutCancel(ctx), upd.SenderID)
	}
	metrics.SetActiveUsers(len(d.queues))
}

func (d *Dispatcher) drain(ctx context.Context, userID int64) {
	defer d.wg.Done()
	for {
		d.mu.Lock()
		q := d.queues[userID]
		if len(q) == 0 {
			delete(d.queues, userID)
			metrics.SetActiveUsers(len(d.queues))
			d.mu.Unlock()
			return
		}
		upd := q[0]
		d.queues[userID] = q[1:]
		d.mu.Unlock()

		if err := d.handler.Handle(ctx, upd); err != nil {
			d.log.Debug("update handled with delivery errors", "user", userID, "err", err)
		}
	}
}

// Wait blocks until every queued update has been handled.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
