package fleet

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"sync"

	"github.com/JonMunkholm/fleetdesk/internal/backend"
	"github.com/JonMunkholm/fleetdesk/internal/dates"
	"github.com/JonMunkholm/fleetdesk/internal/table"
)

// MaxInboxSize bounds how many notifications the inbox keeps.
const MaxInboxSize = 200

// Inbox is the live state of the notification screen. Every change builds a
// new config over a new row slice; configs already handed out are never
// modified. Inbox is safe for concurrent use.
type Inbox struct {
	screen   Screen
	client   *backend.Client
	defaults Defaults

	// pub serializes changes so subscribers see configs in order.
	pub sync.Mutex

	mu     sync.RWMutex
	items  []*Notification
	cfg    *table.Config
	subs   map[int]func(*table.Config)
	nextID int
}

// NewInbox returns an empty inbox over the registered notification screen.
func NewInbox(client *backend.Client, defaults Defaults) (*Inbox, error) {
	s, ok := Get(NotificationsKey)
	if !ok {
		return nil, fmt.Errorf("screen %q is not registered", NotificationsKey)
	}
	i := &Inbox{
		screen:   s,
		client:   client,
		defaults: defaults,
		subs:     make(map[int]func(*table.Config)),
	}
	cfg, err := i.build(nil)
	if err != nil {
		return nil, err
	}
	i.cfg = cfg
	return i, nil
}

// Load replaces the inbox with the notifications held by the API, newest first.
func (i *Inbox) Load(ctx context.Context) error {
	items, err := backend.ListAs[Notification](ctx, i.client, backend.Notifications, nil)
	if err != nil {
		return fmt.Errorf("load notifications: %w", err)
	}
	next := make([]*Notification, len(items))
	for k := range items {
		items[k].decorate()
		next[k] = &items[k]
	}
	slices.SortStableFunc(next, func(a, b *Notification) int {
		return newerFirst(a, b)
	})
	if len(next) > MaxInboxSize {
		next = next[:MaxInboxSize]
	}
	return i.publish(func([]*Notification) []*Notification { return next })
}

// Add puts n at the top of the inbox. A notification already present is
// replaced and moved to the top.
func (i *Inbox) Add(n Notification) error {
	n.decorate()
	key := strconv.FormatInt(n.ID, 10)
	return i.publish(func(cur []*Notification) []*Notification {
		next := make([]*Notification, 0, len(cur)+1)
		next = append(next, &n)
		for _, old := range cur {
			if strconv.FormatInt(old.ID, 10) != key {
				next = append(next, old)
			}
		}
		if len(next) > MaxInboxSize {
			next = next[:MaxInboxSize]
		}
		return next
	})
}

// MarkRead flags the notification with id as read. Unknown ids are ignored.
func (i *Inbox) MarkRead(id string) error {
	return i.publish(func(cur []*Notification) []*Notification {
		next := make([]*Notification, len(cur))
		for k, old := range cur {
			next[k] = old
			if strconv.FormatInt(old.ID, 10) == id && !old.Read {
				cp := *old
				cp.Read = true
				next[k] = &cp
			}
		}
		return next
	})
}

// Config returns the current config.
func (i *Inbox) Config() *table.Config {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.cfg
}

// Unread counts unread notifications.
func (i *Inbox) Unread() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	n := 0
	for _, item := range i.items {
		if !item.Read {
			n++
		}
	}
	return n
}

// Subscribe registers fn to receive every new config. fn runs on the
// goroutine that changed the inbox and must not change it again.
// The returned func unsubscribes.
func (i *Inbox) Subscribe(fn func(*table.Config)) (cancel func()) {
	i.mu.Lock()
	id := i.nextID
	i.nextID++
	i.subs[id] = fn
	i.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			i.mu.Lock()
			delete(i.subs, id)
			i.mu.Unlock()
		})
	}
}

// publish derives the next item list, rebuilds the config and notifies
// subscribers.
func (i *Inbox) publish(change func(cur []*Notification) []*Notification) error {
	i.pub.Lock()
	defer i.pub.Unlock()

	i.mu.RLock()
	next := change(i.items)
	i.mu.RUnlock()

	cfg, err := i.build(next)
	if err != nil {
		return err
	}

	i.mu.Lock()
	i.items = next
	i.cfg = cfg
	subs := make([]func(*table.Config), 0, len(i.subs))
	for _, fn := range i.subs {
		subs = append(subs, fn)
	}
	i.mu.Unlock()

	for _, fn := range subs {
		fn(cfg)
	}
	return nil
}

func (i *Inbox) build(items []*Notification) (*table.Config, error) {
	rows := make([]any, len(items))
	for k, item := range items {
		rows[k] = item
	}
	cfg, err := i.screen.Assemble(rows, map[string]table.ActionHandler{
		ActionMarkRead: markReadHandler(i.client, func(id string) {
			// Runs inside a view's action call; the view applies the new
			// config through its subscription.
			go func() { _ = i.MarkRead(id) }()
		}),
	})
	if err != nil {
		return nil, err
	}
	i.defaults.Apply(cfg)
	return cfg, nil
}

func newerFirst(a, b *Notification) int {
	ta, okA := dates.Parse(a.CreatedAt)
	tb, okB := dates.Parse(b.CreatedAt)
	switch {
	case okA && okB:
		return tb.Compare(ta)
	case okA:
		return -1
	case okB:
		return 1
	}
	return 0
}
