package notify

import (
	"sort"
	"sync"
)

// Entry is a received event with its local read state.
type Entry struct {
	Event
	Read bool `json:"read"`
}

// Ledger is the ordered, newest-first history of received events. Entries
// are only ever added by the channel it is attached to.
type Ledger struct {
	mu      sync.RWMutex
	entries []Entry
	index   map[string]struct{}
	unread  int
}

// NewLedger constructs an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{index: make(map[string]struct{})}
}

// Attach feeds the ledger from ch's notification events.
func (l *Ledger) Attach(ch *Channel) HandlerRef {
	return ch.On(EventNotification, func(msg Message) {
		if msg.Notification != nil {
			l.record(*msg.Notification)
		}
	})
}

// record inserts ev in newest-first position. Repeated IDs are ignored.
func (l *Ledger) record(ev Event) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, dup := l.index[ev.ID]; dup {
		return false
	}
	pos := sort.Search(len(l.entries), func(i int) bool {
		return l.entries[i].Event.Before(ev)
	})
	l.entries = append(l.entries, Entry{})
	copy(l.entries[pos+1:], l.entries[pos:])
	l.entries[pos] = Entry{Event: ev}
	l.index[ev.ID] = struct{}{}
	l.unread++
	return true
}

// Entries returns a snapshot of the ledger, newest first.
func (l *Ledger) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of entries.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// UnreadCount returns the number of unread entries.
func (l *Ledger) UnreadCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.unread
}

// MarkRead marks the entry read. It reports whether the entry changed.
func (l *Ledger) MarkRead(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	i := l.find(id)
	if i < 0 || l.entries[i].Read {
		return false
	}
	l.entries[i].Read = true
	l.unread--
	return true
}

// MarkAllRead marks every entry read.
func (l *Ledger) MarkAllRead() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.entries {
		l.entries[i].Read = true
	}
	l.unread = 0
}

// Dismiss removes the entry. It reports whether an entry was removed.
func (l *Ledger) Dismiss(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	i := l.find(id)
	if i < 0 {
		return false
	}
	if !l.entries[i].Read {
		l.unread--
	}
	l.entries = append(l.entries[:i], l.entries[i+1:]...)
	delete(l.index, id)
	return true
}

// ClearAll empties the ledger.
func (l *Ledger) ClearAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
	l.index = make(map[string]struct{})
	l.unread = 0
}

func (l *Ledger) find(id string) int {
	for i := range l.entries {
		if l.entries[i].ID == id {
			return i
		}
	}
	return -1
}
