// Package session persists one WorkflowState per interactive session. It
// is the get/set/delete/clear store the workflow controller reads at the
// start of a handling pass and writes at the end of it.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	monitoring "github.com/adit-codes/vyuhathon-final-health-monitoring"
	"github.com/adit-codes/vyuhathon-final-health-monitoring/flow"
	"github.com/adit-codes/vyuhathon-final-health-monitoring/logging"
)

// Record is one session as seen by callers. Version is the optimistic
// lock token returned by the last Get or Set.
type Record[S any] struct {
	ID        string
	Role      monitoring.Role
	Step      string
	Version   int
	State     S
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store encodes session state as JSON into a versioned flow.StateStore.
type Store[S any] struct {
	backend flow.StateStore
	now     func() time.Time
	ttl     time.Duration
	newID   func() string
	logger  logging.Logger
}

type Option func(*options)

type options struct {
	now    func() time.Time
	ttl    time.Duration
	newID  func() string
	logger logging.Logger
}

func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithTTL sets how long an untouched session survives Purge.
func WithTTL(ttl time.Duration) Option {
	return func(o *options) {
		o.ttl = ttl
	}
}

func WithIDGenerator(fn func() string) Option {
	return func(o *options) {
		if fn != nil {
			o.newID = fn
		}
	}
}

func WithLogger(l logging.Logger) Option {
	return func(o *options) {
		o.logger = logging.Normalize(l)
	}
}

func New[S any](backend flow.StateStore, opts ...Option) *Store[S] {
	o := options{
		now:    time.Now,
		newID:  func() string { return uuid.New().String() },
		logger: logging.Nop{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return &Store[S]{backend: backend, now: o.now, ttl: o.ttl, newID: o.newID, logger: o.logger}
}

// TTL returns the configured idle lifetime, zero when sessions never expire.
func (s *Store[S]) TTL() time.Duration { return s.ttl }

// NewID returns a fresh session id.
func (s *Store[S]) NewID() string { return s.newID() }

// Create stores a new session at version 1, assigning an id when empty.
func (s *Store[S]) Create(ctx context.Context, rec Record[S]) (Record[S], error) {
	if strings.TrimSpace(rec.ID) == "" {
		rec.ID = s.newID()
	}
	rec.Version = 0
	return s.Set(ctx, rec)
}

// Get loads a session or fails with SESSION_NOT_FOUND.
func (s *Store[S]) Get(ctx context.Context, id string) (Record[S], error) {
	raw, err := s.backend.Load(ctx, id)
	if err != nil {
		return Record[S]{}, fmt.Errorf("load session %s: %w", id, err)
	}
	if raw == nil {
		return Record[S]{}, monitoring.SessionNotFound(id)
	}
	return decode[S](raw)
}

// Set writes rec if its Version still matches the stored one and returns
// the record with the new version.
func (s *Store[S]) Set(ctx context.Context, rec Record[S]) (Record[S], error) {
	data, err := json.Marshal(rec.State)
	if err != nil {
		return Record[S]{}, fmt.Errorf("encode session %s: %w", rec.ID, err)
	}
	now := s.now().UTC()
	next, err := s.backend.SaveIfVersion(ctx, &flow.StateRecord{
		EntityID:  rec.ID,
		State:     rec.Step,
		Kind:      string(rec.Role),
		Data:      data,
		UpdatedAt: now,
		CreatedAt: now,
	}, rec.Version)
	if errors.Is(err, flow.ErrStateVersionConflict) {
		return Record[S]{}, monitoring.CloneError(monitoring.ErrVersionConflict, "", err, map[string]any{
			"session_id": rec.ID,
			"version":    rec.Version,
		})
	}
	if err != nil {
		return Record[S]{}, fmt.Errorf("save session %s: %w", rec.ID, err)
	}
	if rec.Version == 0 {
		rec.CreatedAt = now
	}
	rec.Version = next
	rec.UpdatedAt = now
	rec.Step = strings.ToLower(strings.TrimSpace(rec.Step))
	return rec, nil
}

// Delete removes a session or fails with SESSION_NOT_FOUND.
func (s *Store[S]) Delete(ctx context.Context, id string) error {
	deleted, err := s.backend.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	if !deleted {
		return monitoring.SessionNotFound(id)
	}
	return nil
}

// List returns every stored session.
func (s *Store[S]) List(ctx context.Context) ([]Record[S], error) {
	raws, err := s.backend.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Record[S], 0, len(raws))
	for _, raw := range raws {
		rec, err := decode[S](raw)
		if err != nil {
			s.logger.Warn("skipping undecodable session %s: %v", raw.EntityID, err)
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// Clear removes every session.
func (s *Store[S]) Clear(ctx context.Context) (int, error) {
	raws, err := s.backend.List(ctx)
	if err != nil {
		return 0, err
	}
	cleared := 0
	for _, raw := range raws {
		deleted, err := s.backend.Delete(ctx, raw.EntityID)
		if err != nil {
			return cleared, err
		}
		if deleted {
			cleared++
		}
	}
	return cleared, nil
}

// Purge removes sessions idle longer than the TTL. A zero TTL keeps everything.
func (s *Store[S]) Purge(ctx context.Context) (int, error) {
	if s.ttl <= 0 {
		return 0, nil
	}
	return s.PurgeIdle(ctx, s.ttl)
}

func (s *Store[S]) PurgeIdle(ctx context.Context, idle time.Duration) (int, error) {
	cutoff := s.now().UTC().Add(-idle)
	purged, err := s.backend.PurgeBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	if purged > 0 {
		logging.WithFields(s.logger.WithContext(ctx), map[string]any{
			"cutoff": cutoff.Format(time.RFC3339),
			"purged": purged,
		}).Info("purged idle sessions")
	}
	return purged, nil
}

func decode[S any](raw *flow.StateRecord) (Record[S], error) {
	rec := Record[S]{
		ID:        raw.EntityID,
		Role:      monitoring.Role(raw.Kind),
		Step:      raw.State,
		Version:   raw.Version,
		CreatedAt: raw.CreatedAt,
		UpdatedAt: raw.UpdatedAt,
	}
	if len(raw.Data) > 0 {
		if err := json.Unmarshal(raw.Data, &rec.State); err != nil {
			return Record[S]{}, fmt.Errorf("decode session %s: %w", raw.EntityID, err)
		}
	}
	return rec, nil
}
