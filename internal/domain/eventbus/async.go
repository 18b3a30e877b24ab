package eventbus

import (
	"sync"
	"sync/atomic"

	evbus "github.com/asaskevich/EventBus"

	"pose-stream-server-go/internal/utils"
)

const (
	defaultWorkers   = 4
	defaultQueueSize = 256
)

// AsyncEventBus 在同步总线之上增加有界队列和工作协程
//
// Publish, Subscribe and Unsubscribe are the embedded bus's. PublishAsync
// never blocks: events beyond the queue capacity, or sent after Stop, are
// counted as dropped.
type AsyncEventBus struct {
	evbus.Bus

	logger  *utils.Logger
	workers int
	queue   chan asyncEvent

	mu     sync.RWMutex
	closed bool

	startOnce sync.Once
	stopOnce  sync.Once
	running   sync.WaitGroup
	inflight  sync.WaitGroup
	dropped   atomic.Int64
}

type asyncEvent struct {
	topic string
	args  []interface{}
}

func NewAsyncEventBus(workers, queueSize int, logger *utils.Logger) *AsyncEventBus {
	if workers <= 0 {
		workers = defaultWorkers
	}
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &AsyncEventBus{
		Bus:     New(),
		logger:  logger,
		workers: workers,
		queue:   make(chan asyncEvent, queueSize),
	}
}

// Start launches the workers. Later calls are no-ops.
func (b *AsyncEventBus) Start() {
	b.startOnce.Do(func() {
		b.running.Add(b.workers)
		for i := 0; i < b.workers; i++ {
			go func() {
				defer b.running.Done()
				for ev := range b.queue {
					b.deliver(ev)
				}
			}()
		}
	})
}

// Stop rejects new async events, delivers what is already queued and waits
// for the workers. It starts them first if Start was never called.
func (b *AsyncEventBus) Stop() {
	b.stopOnce.Do(func() {
		b.Start()
		b.mu.Lock()
		b.closed = true
		close(b.queue)
		b.mu.Unlock()
		b.running.Wait()
	})
}

func (b *AsyncEventBus) deliver(ev asyncEvent) {
	defer b.inflight.Done()
	defer func() {
		if r := recover(); r != nil {
			b.logger.ErrorTag("EventBus", "handler for %s panicked: %v", ev.topic, r)
		}
	}()
	b.Bus.Publish(ev.topic, ev.args...)
}

func (b *AsyncEventBus) PublishAsync(topic string, args ...interface{}) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		b.dropped.Add(1)
		return
	}
	b.inflight.Add(1)
	select {
	case b.queue <- asyncEvent{topic: topic, args: args}:
	default:
		b.inflight.Done()
		b.dropped.Add(1)
		b.logger.WarnTag("EventBus", "queue full, dropped %s", topic)
	}
}

// WaitAsync blocks until every accepted async event has been delivered.
func (b *AsyncEventBus) WaitAsync() {
	b.inflight.Wait()
}

func (b *AsyncEventBus) Dropped() int64 {
	return b.dropped.Load()
}
