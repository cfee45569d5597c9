package broadcast

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/alphagov/emergency-alerts-api-sub001/internal/cbc"
	"github.com/alphagov/emergency-alerts-api-sub001/internal/types"
)

type nopLogger struct{}

func (nopLogger) Info(string, ...any)        {}
func (nopLogger) Error(string, ...any)       {}
func (nopLogger) Warn(string, ...any)        {}
func (l nopLogger) With(...any) types.Logger { return l }

type fixedClock struct{ now time.Time }

func (c *fixedClock) Now() time.Time { return c.now }

// memStore is an in-memory stand-in for every repository the engine uses.
type memStore struct {
	mu         sync.Mutex
	services   map[string]*types.Service
	alerts     map[string]*types.Alert
	events     map[string]*types.AlertEvent
	deliveries map[string]*types.ProviderDeliveryRecord
	nextNumber int64
	nextID     int
	updateErr  error
}

func newMemStore() *memStore {
	return &memStore{
		services:   map[string]*types.Service{},
		alerts:     map[string]*types.Alert{},
		events:     map[string]*types.AlertEvent{},
		deliveries: map[string]*types.ProviderDeliveryRecord{},
	}
}

func deliveryKey(eventID string, p types.Provider) string { return eventID + "/" + string(p) }

func (s *memStore) Services() ServiceStore { return serviceView{s} }

type serviceView struct{ s *memStore }

func (v serviceView) GetByID(_ context.Context, id string) (*types.Service, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	svc, ok := v.s.services[id]
	if !ok {
		return nil, types.NewAppError(types.ErrCodeNotFoundService, "service not found", nil)
	}
	cp := *svc
	return &cp, nil
}

func (s *memStore) Alerts() AlertStore { return alertView{s} }

type alertView struct{ s *memStore }

func (v alertView) GetByID(_ context.Context, id string) (*types.Alert, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	a, ok := v.s.alerts[id]
	if !ok {
		return nil, types.NewAppError(types.ErrCodeNotFoundBroadcast, "broadcast not found", nil)
	}
	cp := *a
	return &cp, nil
}

func (v alertView) UpdateStatus(_ context.Context, a *types.Alert, expected types.BroadcastStatus) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	if v.s.updateErr != nil {
		return v.s.updateErr
	}
	cur, ok := v.s.alerts[a.ID]
	if !ok || cur.Status != expected {
		return types.NewAppError(types.ErrCodeConflictConcurrent, "broadcast status changed concurrently", nil)
	}
	cp := *a
	v.s.alerts[a.ID] = &cp
	return nil
}

func (v alertView) ListExpiredBroadcasting(_ context.Context, now time.Time, limit int) ([]*types.Alert, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	var out []*types.Alert
	for _, a := range v.s.alerts {
		if a.Status == types.StatusBroadcasting && a.FinishesAt != nil && !a.FinishesAt.After(now) {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) Events() EventStore { return eventView{s} }

type eventView struct{ s *memStore }

// Create mirrors the unique index on (broadcast, message type) for alert and
// cancel events.
func (v eventView) Create(_ context.Context, e *types.AlertEvent) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	if e.MessageType != types.MessageTypeUpdate {
		for _, other := range v.s.events {
			if other.BroadcastMessageID == e.BroadcastMessageID && other.MessageType == e.MessageType {
				return types.NewAppError(types.ErrCodeConflictConcurrent, "broadcast event already exists", nil)
			}
		}
	}
	cp := *e
	v.s.events[e.ID] = &cp
	return nil
}

func (v eventView) GetByID(_ context.Context, id string) (*types.AlertEvent, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	e, ok := v.s.events[id]
	if !ok {
		return nil, types.NewAppError(types.ErrCodeNotFoundBroadcastEvent, "broadcast event not found", nil)
	}
	cp := *e
	return &cp, nil
}

func (v eventView) ListForBroadcast(_ context.Context, broadcastID string) ([]*types.AlertEvent, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	var out []*types.AlertEvent
	for _, e := range v.s.events {
		if e.BroadcastMessageID == broadcastID {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SentAt.Before(out[j].SentAt) })
	return out, nil
}

// staleEvents hides existing events from the first listing, as seen by a
// trigger that read before a concurrent one committed.
type staleEvents struct {
	eventView
	listed bool
}

func (v *staleEvents) ListForBroadcast(ctx context.Context, broadcastID string) ([]*types.AlertEvent, error) {
	if !v.listed {
		v.listed = true
		return nil, nil
	}
	return v.eventView.ListForBroadcast(ctx, broadcastID)
}

func (s *memStore) Deliveries() DeliveryStore { return deliveryView{s} }

type deliveryView struct{ s *memStore }

func (v deliveryView) GetForEvent(_ context.Context, eventID string, p types.Provider) (*types.ProviderDeliveryRecord, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	rec, ok := v.s.deliveries[deliveryKey(eventID, p)]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (v deliveryView) EnsureDelivery(_ context.Context, eventID string, p types.Provider, sequenced bool) (*types.ProviderDeliveryRecord, bool, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	key := deliveryKey(eventID, p)
	if rec, ok := v.s.deliveries[key]; ok {
		cp := *rec
		return &cp, false, nil
	}
	v.s.nextID++
	rec := &types.ProviderDeliveryRecord{
		ID:               fmt.Sprintf("pm-%d", v.s.nextID),
		BroadcastEventID: eventID,
		Provider:         p,
		Status:           types.DeliveryStatusSending,
		CreatedAt:        time.Date(2020, 8, 1, 12, 0, v.s.nextID, 0, time.UTC),
	}
	if sequenced {
		v.s.nextNumber++
		n := v.s.nextNumber
		rec.MessageNumber = &n
	}
	v.s.deliveries[key] = rec
	cp := *rec
	return &cp, true, nil
}

func (v deliveryView) UpdateStatus(_ context.Context, id string, status types.DeliveryStatus) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	for _, rec := range v.s.deliveries {
		if rec.ID == id {
			if rec.Status != types.DeliveryStatusAck {
				rec.Status = status
			}
			return nil
		}
	}
	return fmt.Errorf("no delivery %s", id)
}

func (s *memStore) record(eventID string, p types.Provider) *types.ProviderDeliveryRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deliveries[deliveryKey(eventID, p)]
}

// fakeClient records requests and fails the first failures sends.
type fakeClient struct {
	mu          sync.Mutex
	provider    types.Provider
	sequenced   bool
	failures    int
	sendErr     error
	calls       []string
	requests    []cbc.BroadcastRequest
	linkTestErr error
}

func (c *fakeClient) Provider() types.Provider    { return c.provider }
func (c *fakeClient) UsesSequentialNumbers() bool { return c.sequenced }

func (c *fakeClient) record(kind string, req cbc.BroadcastRequest) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, kind)
	c.requests = append(c.requests, req)
	if c.sendErr != nil {
		return c.sendErr
	}
	if c.failures > 0 {
		c.failures--
		return types.NewAppError(types.ErrCodeUpstreamCBC, "all endpoints failed", nil)
	}
	return nil
}

func (c *fakeClient) CreateAndSend(_ context.Context, req cbc.BroadcastRequest) error {
	return c.record("alert", req)
}

func (c *fakeClient) UpdateAndSend(_ context.Context, req cbc.BroadcastRequest) error {
	return c.record("update", req)
}

func (c *fakeClient) Cancel(_ context.Context, req cbc.BroadcastRequest) error {
	return c.record("cancel", req)
}

func (c *fakeClient) SendLinkTest(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, "link_test")
	return c.linkTestErr
}

type fakeClients map[types.Provider]*fakeClient

func (f fakeClients) Client(p types.Provider) (ProviderClient, error) {
	c, ok := f[p]
	if !ok {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "no client for "+string(p), nil)
	}
	return c, nil
}

type scheduledRetry struct {
	msg   types.DispatchMessage
	delay time.Duration
}

// fakeQueue captures submissions, retries and dead letters.
type fakeQueue struct {
	mu          sync.Mutex
	submitted   []types.DispatchMessage
	retries     []scheduledRetry
	deadLetters []types.DispatchMessage
	submitErr   map[types.Provider]error
}

func (q *fakeQueue) SubmitDispatch(_ context.Context, msg types.DispatchMessage) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.submitErr[msg.Provider]; err != nil {
		return err
	}
	q.submitted = append(q.submitted, msg)
	return nil
}

func (q *fakeQueue) ScheduleRetry(_ context.Context, msg types.DispatchMessage, delay time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.retries = append(q.retries, scheduledRetry{msg: msg, delay: delay})
	return nil
}

func (q *fakeQueue) DeadLetter(_ context.Context, msg types.DispatchMessage, _ error) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.deadLetters = append(q.deadLetters, msg)
	return nil
}

type recordingMetrics struct {
	mu        sync.Mutex
	results   []string
	linkFails []types.Provider
}

func (m *recordingMetrics) RecordDispatch(_ context.Context, _ types.Provider, result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, result)
}

func (m *recordingMetrics) RecordLatency(context.Context, types.Provider, time.Duration) {}

func (m *recordingMetrics) RecordLinkTestFailure(_ context.Context, p types.Provider) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.linkFails = append(m.linkFails, p)
}

type fakeSupport struct {
	mu        sync.Mutex
	tickets   []string
	providers []types.Provider
	err       error
}

func (f *fakeSupport) NotifyLiveBroadcast(_ context.Context, alert *types.Alert, _ *types.Service, providers []types.Provider) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tickets = append(f.tickets, alert.ID)
	f.providers = providers
	return f.err
}
