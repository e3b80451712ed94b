package fleet

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/JonMunkholm/fleetdesk/internal/table"
)

func newInbox(t *testing.T, responses map[string]any) (*Inbox, func() []apiCall) {
	t.Helper()
	c, calls := fakeAPI(t, responses)
	in, err := NewInbox(c, Defaults{RowsPerPage: 10, RowsPerPageOptions: []int{10, 25}, Locale: "es-ES"})
	if err != nil {
		t.Fatalf("NewInbox() error = %v", err)
	}
	return in, calls
}

func firstID(cfg *table.Config) int64 {
	if len(cfg.Data) == 0 {
		return -1
	}
	return cfg.Data[0].(*Notification).ID
}

// ---- Inbox Tests ----

func TestInbox_AddBuildsNewConfig(t *testing.T) {
	in, _ := newInbox(t, nil)
	before := in.Config()

	if err := in.Add(Notification{ID: 1, Title: "Retraso", Type: NotificationWarning}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	after := in.Config()

	if after == before {
		t.Fatal("Add() kept the same config pointer")
	}
	if len(before.Data) != 0 {
		t.Errorf("old config changed: %d rows", len(before.Data))
	}
	if firstID(after) != 1 {
		t.Errorf("first row = %d, want 1", firstID(after))
	}
	if after.Data[0].(*Notification).TypeLabel != "Aviso" {
		t.Error("added notification was not decorated")
	}
	if after.RowsPerPage != 10 {
		t.Errorf("defaults not applied: RowsPerPage = %d", after.RowsPerPage)
	}

	_ = in.Add(Notification{ID: 2, Title: "Avería"})
	if got := in.Config(); firstID(got) != 2 || len(got.Data) != 2 {
		t.Errorf("after second Add: first = %d, rows = %d", firstID(got), len(got.Data))
	}
}

func TestInbox_AddReplacesExisting(t *testing.T) {
	in, _ := newInbox(t, nil)
	_ = in.Add(Notification{ID: 1, Title: "v1"})
	_ = in.Add(Notification{ID: 2, Title: "other"})
	_ = in.Add(Notification{ID: 1, Title: "v2"})

	cfg := in.Config()
	if len(cfg.Data) != 2 {
		t.Fatalf("rows = %d, want 2", len(cfg.Data))
	}
	if n := cfg.Data[0].(*Notification); n.ID != 1 || n.Title != "v2" {
		t.Errorf("first row = %+v, want updated id 1", n)
	}
}

func TestInbox_Bounded(t *testing.T) {
	in, _ := newInbox(t, nil)
	for i := 0; i < MaxInboxSize+5; i++ {
		_ = in.Add(Notification{ID: int64(i)})
	}
	if got := len(in.Config().Data); got != MaxInboxSize {
		t.Errorf("rows = %d, want %d", got, MaxInboxSize)
	}
}

func TestInbox_Subscribe(t *testing.T) {
	in, _ := newInbox(t, nil)
	var got []*table.Config
	cancel := in.Subscribe(func(cfg *table.Config) { got = append(got, cfg) })

	_ = in.Add(Notification{ID: 1})
	cancel()
	cancel()
	_ = in.Add(Notification{ID: 2})

	if len(got) != 1 {
		t.Fatalf("subscriber called %d times, want 1", len(got))
	}
	if firstID(got[0]) != 1 {
		t.Errorf("subscriber config first row = %d", firstID(got[0]))
	}
}

func TestInbox_MarkReadCopiesRow(t *testing.T) {
	in, _ := newInbox(t, nil)
	_ = in.Add(Notification{ID: 5})
	before := in.Config()
	old := before.Data[0].(*Notification)

	if got := in.Unread(); got != 1 {
		t.Errorf("Unread() = %d, want 1", got)
	}
	if err := in.MarkRead("5"); err != nil {
		t.Fatalf("MarkRead() error = %v", err)
	}

	if old.Read {
		t.Error("MarkRead() modified a row of an earlier config")
	}
	if n := in.Config().Data[0].(*Notification); !n.Read {
		t.Error("row not marked read")
	}
	if got := in.Unread(); got != 0 {
		t.Errorf("Unread() = %d, want 0", got)
	}
}

func TestInbox_MarkReadAction(t *testing.T) {
	in, calls := newInbox(t, nil)
	_ = in.Add(Notification{ID: 9})

	done := make(chan *table.Config, 1)
	cancel := in.Subscribe(func(cfg *table.Config) { done <- cfg })
	defer cancel()

	e, err := table.New(in.Config())
	if err != nil {
		t.Fatalf("table.New() error = %v", err)
	}
	if err := e.InvokeAction(context.Background(), ActionMarkRead, 0); err != nil {
		t.Fatalf("InvokeAction() error = %v", err)
	}

	select {
	case cfg := <-done:
		if !cfg.Data[0].(*Notification).Read {
			t.Error("published config row not read")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no config published after markRead")
	}

	last := lastCall(t, calls)
	if last.Method != "PUT" || last.Path != "/notifications/9" || last.Body != `{"read":true}` {
		t.Errorf("last call = %+v", last)
	}

	if err := e.ApplyConfig(in.Config()); err != nil {
		t.Fatalf("ApplyConfig() error = %v", err)
	}
	if err := e.InvokeAction(context.Background(), ActionMarkRead, 0); err == nil {
		t.Error("markRead on a read notification should be disabled")
	}
}

func TestInbox_LoadSortsNewestFirst(t *testing.T) {
	in, _ := newInbox(t, map[string]any{
		"/notifications": []map[string]any{
			{"id": 1, "createdAt": "2024-05-01T08:00:00"},
			{"id": 2, "createdAt": "2024-05-03T08:00:00"},
			{"id": 3, "createdAt": ""},
			{"id": 4, "createdAt": "2024-05-02T08:00:00"},
		},
	})
	if err := in.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	var ids []int64
	for _, row := range in.Config().Data {
		ids = append(ids, row.(*Notification).ID)
	}
	want := []int64{2, 4, 1, 3}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("order = %v, want %v", ids, want)
		}
	}
}

func TestInbox_ConcurrentAdd(t *testing.T) {
	in, _ := newInbox(t, nil)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_ = in.Add(Notification{ID: id})
			_ = in.Config()
		}(int64(i))
	}
	wg.Wait()

	if got := len(in.Config().Data); got != 50 {
		t.Errorf("rows = %d, want 50", got)
	}
}
