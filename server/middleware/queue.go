package middleware

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eapache/queue/v2"
	"github.com/teilomillet/koreksi/errors"
	"github.com/teilomillet/koreksi/server/metrics"
)

// QueueMiddleware bounds the number of grammar checks in flight. Each
// admitted request holds a FIFO slot until it finishes. A request arriving
// while every slot is taken is rejected with 503 instead of waiting.
type QueueMiddleware struct {
	mu         sync.Mutex
	queue      *queue.Queue[struct{}]
	maxSize    atomic.Int64
	processing atomic.Int32
	metrics    *metrics.Metrics
	closing    atomic.Bool
}

// NewQueueMiddleware creates a queue admitting at most maxSize requests.
// m may be nil.
func NewQueueMiddleware(maxSize int64, m *metrics.Metrics) *QueueMiddleware {
	qm := &QueueMiddleware{
		queue:   queue.New[struct{}](),
		metrics: m,
	}
	qm.maxSize.Store(maxSize)
	return qm
}

// SetMaxSize takes effect for the next admission. Requests already in flight
// are not cancelled when the limit shrinks.
func (qm *QueueMiddleware) SetMaxSize(size int64) {
	qm.maxSize.Store(size)
}

// GetMaxSize returns the current maximum queue size.
func (qm *QueueMiddleware) GetMaxSize() int64 {
	return qm.maxSize.Load()
}

// GetQueueSize returns the number of admitted requests.
func (qm *QueueMiddleware) GetQueueSize() int {
	qm.mu.Lock()
	defer qm.mu.Unlock()
	return qm.queue.Length()
}

// GetProcessing returns the number of requests inside the wrapped handler.
func (qm *QueueMiddleware) GetProcessing() int32 {
	return qm.processing.Load()
}

// Handler admits or rejects the request.
func (qm *QueueMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := GetRequestID(r.Context())
		maxSize := qm.maxSize.Load()

		if !qm.admit(maxSize) {
			if qm.metrics != nil {
				qm.metrics.ErrorsTotal.WithLabelValues("queue_full").Inc()
			}
			errors.WriteError(w, errors.NewQueueFullError(requestID, maxSize))
			return
		}
		defer qm.release()

		qm.processing.Add(1)
		defer qm.processing.Add(-1)

		next.ServeHTTP(w, r)
	})
}

func (qm *QueueMiddleware) admit(maxSize int64) bool {
	qm.mu.Lock()
	defer qm.mu.Unlock()
	if qm.closing.Load() || int64(qm.queue.Length()) >= maxSize {
		return false
	}
	qm.queue.Add(struct{}{})
	qm.setDepth()
	return true
}

// release frees one slot. Slots are interchangeable.
func (qm *QueueMiddleware) release() {
	qm.mu.Lock()
	qm.queue.Remove()
	qm.setDepth()
	qm.mu.Unlock()
}

func (qm *QueueMiddleware) setDepth() {
	if qm.metrics != nil {
		qm.metrics.QueueDepth.Set(float64(qm.queue.Length()))
	}
}

// Shutdown stops admitting requests and waits for in-flight ones to finish
// or for ctx to end.
func (qm *QueueMiddleware) Shutdown(ctx context.Context) error {
	qm.closing.Store(true)
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for qm.GetQueueSize() > 0 {
		select {
		case <-ctx.Done():
			if qm.metrics != nil {
				qm.metrics.ErrorsTotal.WithLabelValues("queue_shutdown_timeout").Inc()
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}
