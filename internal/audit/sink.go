// Package audit records state-changing actions without blocking the request that made them.
package audit

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/suteetoe/restohub/internal/model"
	"github.com/suteetoe/restohub/pkg/logger"
	"github.com/suteetoe/restohub/prometheus"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Entry describes one audited action.
type Entry struct {
	ActorID      uint
	RestaurantID *uint
	Action       string
	Resource     string
	ResourceID   string
	Payload      interface{}
	IPAddress    string
	RequestID    string
}

// Recorder is what handlers depend on.
type Recorder interface {
	Record(ctx context.Context, e Entry)
}

// Sink persists entries from a buffered queue on a single worker goroutine. Entries are
// dropped, logged and counted when the queue is full or the insert fails.
type Sink struct {
	db    *gorm.DB
	queue chan model.AuditLog
	done  chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewSink starts the worker. size is the queue capacity.
func NewSink(db *gorm.DB, size int) *Sink {
	if size <= 0 {
		size = 1
	}
	s := &Sink{
		db:    db,
		queue: make(chan model.AuditLog, size),
		done:  make(chan struct{}),
	}
	go s.run()
	return s
}

// Record enqueues e. It never blocks and never fails the caller.
func (s *Sink) Record(ctx context.Context, e Entry) {
	log := logger.FromContext(ctx)

	row := model.AuditLog{
		ActorID:      e.ActorID,
		RestaurantID: e.RestaurantID,
		Action:       e.Action,
		Resource:     e.Resource,
		ResourceID:   e.ResourceID,
		IPAddress:    e.IPAddress,
		RequestID:    e.RequestID,
	}
	if e.Payload != nil {
		raw, err := json.Marshal(e.Payload)
		if err != nil {
			log.Warn("Audit payload not serializable", zap.String("action", e.Action), zap.Error(err))
		} else {
			row.Payload = datatypes.JSON(raw)
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		log.Warn("Audit sink closed, dropping entry", zap.String("action", e.Action))
		prometheus.RecordAuditDropped("closed")
		return
	}

	select {
	case s.queue <- row:
		prometheus.AuditQueueGauge.Inc()
	default:
		log.Warn("Audit queue full, dropping entry",
			zap.String("action", e.Action),
			zap.String("resource", e.Resource),
			zap.String("resource_id", e.ResourceID))
		prometheus.RecordAuditDropped("queue_full")
	}
}

func (s *Sink) run() {
	defer close(s.done)
	for row := range s.queue {
		prometheus.AuditQueueGauge.Dec()
		if err := s.db.Create(&row).Error; err != nil {
			logger.GetLogger().Error("Failed to write audit log",
				zap.String("action", row.Action),
				zap.String("resource", row.Resource),
				zap.Error(err))
			prometheus.RecordAuditDropped("insert_failed")
			continue
		}
		prometheus.AuditWrittenCounter.Inc()
	}
}

// Close stops accepting entries and waits for the queue to drain or ctx to end.
func (s *Sink) Close(ctx context.Context) error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Nop discards entries.
type Nop struct{}

func (Nop) Record(context.Context, Entry) {}
