package dispatcher_test

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/danpung/yeyakbot/internal/dispatcher"
	"github.com/danpung/yeyakbot/internal/kst"
	"github.com/danpung/yeyakbot/internal/repository"
)

type memoryStore struct {
	mu      sync.Mutex
	nextID  int64
	rows    map[int64]repository.Reservation
	listErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{nextID: 1, rows: make(map[int64]repository.Reservation)}
}

func (s *memoryStore) Create(_ context.Context, r repository.Reservation) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.ID = s.nextID
	s.nextID++
	s.rows[r.ID] = r
	return r.ID, nil
}

func (s *memoryStore) ListPending(context.Context) ([]repository.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []repository.Reservation
	for id := int64(1); id < s.nextID; id++ {
		if r, ok := s.rows[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memoryStore) ListByOwner(_ context.Context, userID int64) ([]repository.Reservation, error) {
	all, _ := s.ListPending(context.Background())
	var out []repository.Reservation
	for _, r := range all {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memoryStore) CancelByOwner(_ context.Context, id, userID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[id]
	if !ok || r.UserID != userID {
		return false, nil
	}
	delete(s.rows, id)
	return true, nil
}

func (s *memoryStore) DeleteByID(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, id)
	return nil
}

var _ repository.ReservationStore = (*memoryStore)(nil)

type sentMessage struct {
	ChannelID int64
	Content   string
}

type recordingSender struct {
	mu     sync.Mutex
	sent   []sentMessage
	failOn map[int64]error
}

func (s *recordingSender) Send(channelID int64, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.failOn[channelID]; ok {
		return err
	}
	s.sent = append(s.sent, sentMessage{ChannelID: channelID, Content: content})
	return nil
}

func (s *recordingSender) messages() []sentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sentMessage(nil), s.sent...)
}

var baseTime = time.Date(2026, 2, 20, 18, 30, 0, 0, kst.Location)

func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestRunCycleDeliversDueReservationOnce(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	sender := &recordingSender{}

	id, err := store.Create(ctx, repository.Reservation{
		GuildID:   100,
		ChannelID: 200,
		UserID:    300,
		SendAt:    baseTime,
		Content:   "standup note",
	})
	if err != nil {
		t.Fatalf("failed to create reservation: %v", err)
	}

	d := dispatcher.New(store, sender).WithNow(fixedNow(baseTime))

	d.RunCycle(ctx)

	want := []sentMessage{
		{ChannelID: 200, Content: dispatcher.DeliveryPrefix + "standup note"},
	}
	if diff := cmp.Diff(want, sender.messages()); diff != "" {
		t.Errorf("delivered messages mismatch (-want +got):\n%s", diff)
	}

	pending, err := store.ListPending(ctx)
	if err != nil {
		t.Fatalf("failed to list pending: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("reservation %d still pending after delivery", id)
	}

	t.Run("a second cycle does not send again", func(t *testing.T) {
		d.RunCycle(ctx)
		if got := len(sender.messages()); got != 1 {
			t.Errorf("got %d sends after second cycle; want 1", got)
		}
	})
}

func TestRunCycleLeavesFutureReservationAlone(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	sender := &recordingSender{}

	if _, err := store.Create(ctx, repository.Reservation{
		ChannelID: 200,
		SendAt:    baseTime.Add(time.Second),
		Content:   "not yet",
	}); err != nil {
		t.Fatalf("failed to create reservation: %v", err)
	}

	d := dispatcher.New(store, sender).WithNow(fixedNow(baseTime))
	d.RunCycle(ctx)

	if got := len(sender.messages()); got != 0 {
		t.Errorf("got %d sends for a future reservation; want 0", got)
	}

	pending, err := store.ListPending(ctx)
	if err != nil {
		t.Fatalf("failed to list pending: %v", err)
	}
	if len(pending) != 1 {
		t.Errorf("future reservation was removed from the store")
	}
}

func TestRunCycleDeliversAtExactSendTime(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	sender := &recordingSender{}

	if _, err := store.Create(ctx, repository.Reservation{
		ChannelID: 200,
		SendAt:    baseTime,
		Content:   "on the dot",
	}); err != nil {
		t.Fatalf("failed to create reservation: %v", err)
	}

	dispatcher.New(store, sender).WithNow(fixedNow(baseTime)).RunCycle(ctx)

	if got := len(sender.messages()); got != 1 {
		t.Errorf("got %d sends at the exact send time; want 1", got)
	}
}

func TestRunCycleDeletesOnSendFailure(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	sender := &recordingSender{
		failOn: map[int64]error{200: fmt.Errorf("channel is gone")},
	}

	if _, err := store.Create(ctx, repository.Reservation{
		ChannelID: 200,
		SendAt:    baseTime,
		Content:   "doomed",
	}); err != nil {
		t.Fatalf("failed to create reservation: %v", err)
	}

	dispatcher.New(store, sender).WithNow(fixedNow(baseTime)).RunCycle(ctx)

	pending, err := store.ListPending(ctx)
	if err != nil {
		t.Fatalf("failed to list pending: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("reservation survived a failed delivery; want it deleted regardless")
	}
}

type capturingLogHandler struct {
	mu       sync.Mutex
	messages []string
}

func (h *capturingLogHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *capturingLogHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, r.Message)
	return nil
}

func (h *capturingLogHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *capturingLogHandler) WithGroup(string) slog.Handler      { return h }

func (h *capturingLogHandler) has(message string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Contains(h.messages, message)
}

func TestRunCycleLogsFailedDeliveryDistinctly(t *testing.T) {
	logs := &capturingLogHandler{}
	previous := slog.Default()
	slog.SetDefault(slog.New(logs))
	defer slog.SetDefault(previous)

	ctx := context.Background()
	store := newMemoryStore()
	sender := &recordingSender{
		failOn: map[int64]error{200: fmt.Errorf("channel is gone")},
	}

	if _, err := store.Create(ctx, repository.Reservation{
		ChannelID: 200,
		SendAt:    baseTime,
		Content:   "doomed",
	}); err != nil {
		t.Fatalf("failed to create reservation: %v", err)
	}

	dispatcher.New(store, sender).WithNow(fixedNow(baseTime)).RunCycle(ctx)

	if logs.has("dispatched reservation") {
		t.Error("a failed send was logged as a successful dispatch")
	}
	if !logs.has("failed to deliver reservation") {
		t.Error("the send failure itself was not logged")
	}
	if !logs.has("removed reservation after failed delivery") {
		t.Error("the delete-after-failed-send was not logged as such")
	}
}

func TestRunCycleOneFailureDoesNotStarveOthers(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	sender := &recordingSender{
		failOn: map[int64]error{200: fmt.Errorf("channel is gone")},
	}

	for _, r := range []repository.Reservation{
		{ChannelID: 200, SendAt: baseTime, Content: "fails"},
		{ChannelID: 201, SendAt: baseTime, Content: "first"},
		{ChannelID: 202, SendAt: baseTime, Content: "second"},
	} {
		if _, err := store.Create(ctx, r); err != nil {
			t.Fatalf("failed to create reservation: %v", err)
		}
	}

	dispatcher.New(store, sender).WithNow(fixedNow(baseTime)).RunCycle(ctx)

	want := []sentMessage{
		{ChannelID: 201, Content: dispatcher.DeliveryPrefix + "first"},
		{ChannelID: 202, Content: dispatcher.DeliveryPrefix + "second"},
	}
	if diff := cmp.Diff(want, sender.messages()); diff != "" {
		t.Errorf("delivered messages mismatch (-want +got):\n%s", diff)
	}

	pending, err := store.ListPending(ctx)
	if err != nil {
		t.Fatalf("failed to list pending: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("%d reservations still pending after the cycle; want 0", len(pending))
	}
}

func TestRunCycleSurvivesListFailure(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	store.listErr = fmt.Errorf("connection refused")
	sender := &recordingSender{}

	d := dispatcher.New(store, sender).WithNow(fixedNow(baseTime))
	d.RunCycle(ctx)

	if got := len(sender.messages()); got != 0 {
		t.Errorf("got %d sends despite a list failure; want 0", got)
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	store := newMemoryStore()
	sender := &recordingSender{}

	d := dispatcher.New(store, sender).WithInterval(time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop after context cancellation")
	}
}
