package careauth

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// notifyDispatcher decouples store commits from the notification sink.
// In sync mode it calls the sink inline; in async mode a single worker
// drains a bounded queue so notifications keep their order.
type notifyDispatcher struct {
	cfg    NotifyConfig
	sink   Notifier
	logger *slog.Logger

	queue   chan Notification
	done    chan struct{}
	wg      sync.WaitGroup
	dropped atomic.Uint64
	closed  atomic.Bool
	once    sync.Once
}

func newNotifyDispatcher(cfg NotifyConfig, sink Notifier, logger *slog.Logger) *notifyDispatcher {
	if !cfg.Enabled {
		return nil
	}
	if sink == nil {
		sink = NoOpNotifier{}
	}

	d := &notifyDispatcher{
		cfg:    cfg,
		sink:   sink,
		logger: logger,
	}
	if !cfg.Async {
		return d
	}

	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	d.queue = make(chan Notification, cfg.BufferSize)
	d.done = make(chan struct{})
	d.wg.Add(1)
	go d.run()

	return d
}

func (d *notifyDispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case n := <-d.queue:
			d.sink.Notify(context.Background(), n)
		case <-d.done:
			for {
				select {
				case n := <-d.queue:
					d.sink.Notify(context.Background(), n)
				default:
					return
				}
			}
		}
	}
}

func (d *notifyDispatcher) emit(ctx context.Context, n Notification) {
	if d == nil || d.closed.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if d.queue == nil {
		d.sink.Notify(ctx, n)
		return
	}

	if d.cfg.DropIfFull {
		select {
		case d.queue <- n:
		case <-d.done:
		default:
			if d.dropped.Add(1) == 1 {
				d.logger.Warn("careauth: notification queue full, dropping", "operation", n.Operation)
			}
		}
		return
	}

	select {
	case d.queue <- n:
	case <-ctx.Done():
		d.dropped.Add(1)
	case <-d.done:
	}
}

// close flushes queued notifications and stops the worker.
func (d *notifyDispatcher) close() {
	if d == nil {
		return
	}
	d.once.Do(func() {
		d.closed.Store(true)
		if d.done != nil {
			close(d.done)
			d.wg.Wait()
		}
	})
}

func (d *notifyDispatcher) droppedCount() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
