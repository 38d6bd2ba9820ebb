package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/joeblew999/plat-parcels/internal/bridge"
	"github.com/joeblew999/plat-parcels/internal/feature"
	"github.com/joeblew999/plat-parcels/internal/metrics"
	"github.com/joeblew999/plat-parcels/internal/selection"
)

// ErrSessionNotFound is returned for unknown or expired session IDs.
var ErrSessionNotFound = errors.New("session not found")

// DefaultSessionTTL is how long an untouched session survives.
const DefaultSessionTTL = 2 * time.Hour

// Session is one map widget: its controller, its host bridge and the
// overlay it shows. Events are applied through SessionManager.Do, which
// holds the session lock for the whole event.
type Session struct {
	ID string

	mu       sync.Mutex
	overlay  feature.OverlayType
	metric   string
	ctrl     *selection.Controller
	bridge   *bridge.Bridge
	lastSeen time.Time
}

// Controller returns the selection controller. Only valid inside Do.
func (s *Session) Controller() *selection.Controller { return s.ctrl }

// Bridge returns the host bridge. It is safe to use without the lock.
func (s *Session) Bridge() *bridge.Bridge { return s.bridge }

// Overlay returns the overlay type shown. Only valid inside Do.
func (s *Session) Overlay() feature.OverlayType { return s.overlay }

// Metric returns the coloring metric. Only valid inside Do.
func (s *Session) Metric() string { return s.metric }

// State snapshots the session for rendering. Only valid inside Do.
func (s *Session) State() SessionState {
	v := s.ctrl.View()
	st := SessionState{
		ID:             s.ID,
		Overlay:        s.overlay,
		Metric:         s.metric,
		Mode:           v.Mode,
		GroupState:     v.State.String(),
		Selected:       bridge.FeaturesFrom(v.Entries),
		Groups:         [2][]bridge.Feature{bridge.FeaturesFrom(v.Groups[0]), bridge.FeaturesFrom(v.Groups[1])},
		ConfirmLabel:   v.ConfirmLabel,
		ConfirmEnabled: v.ConfirmEnabled,
		CompareVisible: v.CompareVisible,
		Marks:          make(map[string]selection.Paint, len(v.Marks)),
		Host:           s.bridge.Latest().Value(),
	}
	coll := s.ctrl.Collection()
	for id, m := range v.Marks {
		if f, ok := coll.ByID(id); ok {
			st.Marks[f.FeatureID] = selection.PaintFor(m)
		}
	}
	return st
}

// Comparison returns the latest host payload while it still describes the
// widget's selection. The host keeps its last group comparison across a
// Reset, but the widget must not: in group mode the payload counts only
// when both groups are confirmed and match it. Only valid inside Do.
func (s *Session) Comparison() bridge.Update {
	u := s.bridge.Latest()
	if s.ctrl.Mode() != selection.Group {
		return u
	}
	g := s.ctrl.Groups()
	c := u.Comparison
	if g.State() != selection.Complete || c == nil ||
		!sameGroup(c.Group1, g.Confirmed(0)) || !sameGroup(c.Group2, g.Confirmed(1)) {
		return bridge.Update{Seq: u.Seq, Mode: selection.Group}
	}
	return u
}

func sameGroup(sent *bridge.Group, confirmed *selection.ConfirmedGroup) bool {
	if sent == nil || confirmed == nil || len(sent.Features) != len(confirmed.Features) {
		return false
	}
	for i, f := range sent.Features {
		if f.ID != confirmed.Features[i].FeatureID {
			return false
		}
	}
	return true
}

// SessionManager owns all live sessions.
type SessionManager struct {
	overlays *OverlayService
	metrics  *metrics.Metrics
	log      *zap.Logger
	ttl      time.Duration
	now      func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionManager returns an empty manager. A non-positive ttl uses
// DefaultSessionTTL.
func NewSessionManager(overlays *OverlayService, m *metrics.Metrics, ttl time.Duration, log *zap.Logger) *SessionManager {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &SessionManager{
		overlays: overlays,
		metrics:  m,
		log:      log.Named("sessions"),
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Create opens a session showing overlay colored by metric.
func (m *SessionManager) Create(ctx context.Context, overlay feature.OverlayType, metric string) (*Session, error) {
	if metric == "" {
		metric = DefaultMetric
	}
	var opts []bridge.Option
	if m.metrics != nil {
		opts = append(opts, bridge.WithDropHook(m.metrics.DroppedSyncs.Inc))
	}
	s := &Session{
		ID:       uuid.NewString(),
		bridge:   bridge.New(opts...),
		lastSeen: m.now(),
	}
	if err := m.load(ctx, s, overlay, metric); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	n := len(m.sessions)
	m.mu.Unlock()
	if m.metrics != nil {
		m.metrics.Sessions.Set(float64(n))
	}
	m.log.Info("session created", zap.String("session", s.ID), zap.String("overlay", string(overlay)))
	return s, nil
}

// load replaces the session's feature collection. Selection state does not
// survive a reload.
func (m *SessionManager) load(ctx context.Context, s *Session, overlay feature.OverlayType, metric string) error {
	if _, err := m.overlays.Colors(ctx, overlay, metric); err != nil {
		return err
	}
	coll, err := m.overlays.Collection(ctx, overlay)
	if err != nil {
		return err
	}
	s.overlay = overlay
	s.metric = metric
	s.ctrl = selection.NewController(coll, s.bridge, m.log.With(zap.String("session", s.ID)))
	s.bridge.SyncIndividual(nil)
	return nil
}

// Reload switches the session to another overlay or metric. It must be
// called inside Do.
func (m *SessionManager) Reload(ctx context.Context, s *Session, overlay feature.OverlayType, metric string) error {
	if metric == "" {
		metric = s.metric
	}
	if overlay == s.overlay && metric == s.metric {
		return nil
	}
	return m.load(ctx, s, overlay, metric)
}

// Get returns a live session.
func (m *SessionManager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, nil
}

// Do runs fn with the session locked, so events on one session are
// processed one at a time in lock order.
func (m *SessionManager) Do(id string, fn func(*Session) error) error {
	s, err := m.Get(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = m.now()
	return fn(s)
}

// Event applies one named selection event and records it in metrics.
// Rejections are returned like any error; callers decide whether they are
// fatal with selection.IsRejection.
func (m *SessionManager) Event(id, name string, fn func(*Session) error) error {
	return m.Do(id, func(s *Session) error {
		err := fn(s)
		if m.metrics != nil {
			m.metrics.ObserveEvent(name, err)
		}
		return err
	})
}

// Close removes a session and disconnects its subscribers.
func (m *SessionManager) Close(id string) bool {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	n := len(m.sessions)
	m.mu.Unlock()
	if !ok {
		return false
	}
	s.bridge.Close()
	if m.metrics != nil {
		m.metrics.Sessions.Set(float64(n))
	}
	m.log.Info("session closed", zap.String("session", id))
	return true
}

// Len returns the number of live sessions.
func (m *SessionManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep closes sessions idle for longer than the TTL and returns how many
// were closed.
func (m *SessionManager) Sweep() int {
	cutoff := m.now().Add(-m.ttl)
	var stale []string
	m.mu.RLock()
	for id, s := range m.sessions {
		s.mu.Lock()
		if s.lastSeen.Before(cutoff) {
			stale = append(stale, id)
		}
		s.mu.Unlock()
	}
	m.mu.RUnlock()
	for _, id := range stale {
		m.Close(id)
	}
	return len(stale)
}

// Run sweeps idle sessions every interval until ctx is done.
func (m *SessionManager) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := m.Sweep(); n > 0 {
				m.log.Debug("idle sessions closed", zap.Int("count", n))
			}
		}
	}
}
