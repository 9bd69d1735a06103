package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/stilya/stilya/internal/agent"
	"github.com/stilya/stilya/internal/models"
)

// Queue errors
var (
	ErrQueueFull   = errors.New("learning queue full")
	ErrQueueClosed = errors.New("learning queue closed")
)

// LearningHandler processes one queued learning request
type LearningHandler func(ctx context.Context, req *agent.Request) *agent.Response

// QueueConfig holds learning queue configuration
type QueueConfig struct {
	Workers     int           // worker goroutines
	QueueSize   int           // buffered requests per priority class before Submit fails
	TaskTimeout time.Duration // per-request deadline
}

// DefaultQueueConfig returns default queue configuration
func DefaultQueueConfig() *QueueConfig {
	return &QueueConfig{
		Workers:     2,
		QueueSize:   256,
		TaskTimeout: 30 * time.Second,
	}
}

// QueueMetrics tracks queue throughput
type QueueMetrics struct {
	Submitted int64 `json:"submitted"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Dropped   int64 `json:"dropped"`
	Pending   int   `json:"pending"`
}

// LearningQueue decouples post-recommendation learning from the request
// path. Submit never blocks; work is done by a fixed set of workers.
// High and urgent requests are taken before low and normal ones.
type LearningQueue struct {
	handler LearningHandler
	config  *QueueConfig
	urgent  chan *agent.Request
	normal  chan *agent.Request
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc

	closed  bool
	mu      sync.RWMutex
	metrics QueueMetrics
	metMu   sync.Mutex
}

// NewLearningQueue starts the workers
func NewLearningQueue(handler LearningHandler, config *QueueConfig) *LearningQueue {
	if config == nil {
		config = DefaultQueueConfig()
	}
	if config.Workers < 1 {
		config.Workers = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	q := &LearningQueue{
		handler: handler,
		config:  config,
		urgent:  make(chan *agent.Request, config.QueueSize),
		normal:  make(chan *agent.Request, config.QueueSize),
		ctx:     ctx,
		cancel:  cancel,
	}

	for i := 0; i < config.Workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	return q
}

// worker exits once both channels are closed and drained. A closed
// channel is set to nil so select stops picking it.
func (q *LearningQueue) worker() {
	defer q.wg.Done()

	urgent, normal := q.urgent, q.normal
	for urgent != nil || normal != nil {
		if q.ctx.Err() != nil {
			return
		}

		if urgent != nil {
			select {
			case req, ok := <-urgent:
				if !ok {
					urgent = nil
				} else {
					q.process(req)
				}
				continue
			default:
			}
		}

		select {
		case <-q.ctx.Done():
			return
		case req, ok := <-urgent:
			if !ok {
				urgent = nil
				continue
			}
			q.process(req)
		case req, ok := <-normal:
			if !ok {
				normal = nil
				continue
			}
			q.process(req)
		}
	}
}

func (q *LearningQueue) channelFor(p models.RequestPriority) chan *agent.Request {
	if p == models.PriorityHigh || p == models.PriorityUrgent {
		return q.urgent
	}
	return q.normal
}

func (q *LearningQueue) process(req *agent.Request) {
	ctx, cancel := context.WithTimeout(q.ctx, q.config.TaskTimeout)
	defer cancel()

	resp := q.handler(ctx, req)
	ok := resp != nil && resp.Success

	q.metMu.Lock()
	if ok {
		q.metrics.Completed++
	} else {
		q.metrics.Failed++
	}
	q.metMu.Unlock()

	if !ok {
		msg := "no response"
		if resp != nil {
			msg = resp.Message
		}
		log.Debug().Str("request_id", req.RequestID).Str("message", msg).Msg("Learning task failed")
	}
}

// Submit enqueues req without waiting
func (q *LearningQueue) Submit(req *agent.Request) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.channelFor(req.Priority) <- req:
		q.metMu.Lock()
		q.metrics.Submitted++
		q.metMu.Unlock()
		return nil
	default:
		q.metMu.Lock()
		q.metrics.Dropped++
		q.metMu.Unlock()
		return ErrQueueFull
	}
}

// Metrics returns a copy of the queue metrics
func (q *LearningQueue) Metrics() QueueMetrics {
	q.metMu.Lock()
	m := q.metrics
	q.metMu.Unlock()
	m.Pending = len(q.urgent) + len(q.normal)
	return m
}

// Shutdown stops accepting work and waits for queued requests to drain.
// Workers still running after timeout are cancelled.
func (q *LearningQueue) Shutdown(timeout time.Duration) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.urgent)
	close(q.normal)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.cancel()
		return nil
	case <-time.After(timeout):
		q.cancel()
		<-done
		return fmt.Errorf("learning queue shutdown timeout exceeded")
	}
}
