package auditlog

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicrx/clinic/internal/domain/identity"
	"github.com/clinicrx/clinic/internal/platform/metrics"
	"github.com/clinicrx/clinic/internal/platform/middleware"
)

const writeTimeout = 5 * time.Second

// Recorder queues audit events and writes them from a background worker.
// Recording never blocks the caller and never reports an error: a full
// queue drops the event, and failed writes are only logged.
type Recorder struct {
	repo    Repository
	logger  zerolog.Logger
	metrics *metrics.Collector

	mu     sync.RWMutex
	ch     chan Record
	closed bool
	wg     sync.WaitGroup
}

func NewRecorder(repo Repository, bufSize int, m *metrics.Collector, logger zerolog.Logger) *Recorder {
	if bufSize <= 0 {
		bufSize = 256
	}
	return &Recorder{
		repo:    repo,
		logger:  logger.With().Str("component", "audit").Logger(),
		metrics: m,
		ch:      make(chan Record, bufSize),
	}
}

// Start launches the writer. Close stops it after draining the queue.
func (r *Recorder) Start() {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for rec := range r.ch {
			r.write(rec)
		}
	}()
}

// Close refuses further events and waits for queued ones to be written.
func (r *Recorder) Close() {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.ch)
	}
	r.mu.Unlock()
	r.wg.Wait()
}

// Record queues one event for the caller's tenant.
func (r *Recorder) Record(ctx context.Context, action, entityType, entityID, entityName string, oldData, newData interface{}) {
	r.RecordEvent(ctx, middleware.AuditEvent{
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		EntityName: entityName,
		OldData:    oldData,
		NewData:    newData,
	})
}

// RecordEvent implements middleware.AuditRecorder.
func (r *Recorder) RecordEvent(ctx context.Context, ev middleware.AuditEvent) {
	rec, ok := r.build(ctx, ev)
	if !ok {
		return
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.logger.Warn().Str("action", rec.Action).Msg("audit recorder closed, entry dropped")
		return
	}
	select {
	case r.ch <- rec:
	default:
		if r.metrics != nil {
			r.metrics.AuditBufferDropped.Inc()
		}
		r.logger.Warn().
			Str("action", rec.Action).
			Str("entity_type", rec.EntityType).
			Msg("audit buffer full, entry dropped")
	}
}

// build resolves tenant and user and snapshots the data. The data is
// serialized here so later mutations by the caller do not leak into the
// entry.
func (r *Recorder) build(ctx context.Context, ev middleware.AuditEvent) (Record, bool) {
	rec := Record{Action: ev.Action, EntityType: ev.EntityType}
	if !ValidAction(ev.Action) || !ValidEntityType(ev.EntityType) {
		r.logger.Warn().Str("action", ev.Action).Str("entity_type", ev.EntityType).Msg("unknown audit action or entity type")
		return rec, false
	}

	if id := identity.FromContext(ctx); id != nil {
		pid := id.PrincipalID
		rec.UserID = &pid
		if tid, err := id.TenantID(); err == nil {
			rec.TenantID = tid
		}
	}
	if ev.TenantID != "" {
		tid, err := uuid.Parse(ev.TenantID)
		if err != nil {
			r.logger.Warn().Str("tenant_id", ev.TenantID).Msg("invalid audit tenant id")
			return rec, false
		}
		rec.TenantID = tid
	}
	if ev.UserID != "" {
		if uid, err := uuid.Parse(ev.UserID); err == nil {
			rec.UserID = &uid
		}
	}
	if rec.TenantID == uuid.Nil {
		r.logger.Debug().Str("action", ev.Action).Msg("audit event without tenant skipped")
		return rec, false
	}

	if ev.EntityID != "" {
		if eid, err := uuid.Parse(ev.EntityID); err == nil {
			rec.EntityID = &eid
		}
	}
	if ev.EntityName != "" {
		name := ev.EntityName
		rec.EntityName = &name
	}

	var err error
	if rec.OldData, err = snapshot(ev.OldData); err != nil {
		r.logger.Warn().Err(err).Str("action", ev.Action).Msg("audit old data not serializable")
		return rec, false
	}
	if rec.NewData, err = snapshot(ev.NewData); err != nil {
		r.logger.Warn().Err(err).Str("action", ev.Action).Msg("audit new data not serializable")
		return rec, false
	}
	return rec, true
}

func snapshot(v interface{}) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if string(b) == "null" {
		return nil, nil
	}
	return b, nil
}

func (r *Recorder) write(rec Record) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if _, err := r.repo.Record(ctx, rec); err != nil {
		if r.metrics != nil {
			r.metrics.AuditEntriesFailed.Inc()
		}
		r.logger.Error().Err(err).
			Str("tenant_id", rec.TenantID.String()).
			Str("action", rec.Action).
			Str("entity_type", rec.EntityType).
			Msg("audit write failed")
		return
	}
	if r.metrics != nil {
		r.metrics.AuditEntriesTotal.Inc()
	}
}
