package unread

import (
	"time"

	"github.com/PaulBabatuyi/pairchat/internal/data"
)

// Change is what the tracker publishes for one counterpart.
type Change struct {
	Counterpart  string
	Unread       int
	LastActivity time.Time
	Preview      string
}

// Tracker holds the latest message list per counterpart and the currently
// open conversation. It is not safe for concurrent use; Pipeline owns one
// from a single goroutine.
type Tracker struct {
	me       string
	open     string
	lists    map[string][]data.Message
	previews map[string]string
}

// NewTracker returns a tracker for the user me.
func NewTracker(me string) *Tracker {
	return &Tracker{me: me, lists: make(map[string][]data.Message), previews: make(map[string]string)}
}

// Open returns the counterpart of the open conversation, or "".
func (t *Tracker) Open() string { return t.open }

// Apply records the full message list for counterpart and returns the
// recomputed change. The open conversation always publishes zero unread;
// its messages' read sets are not touched here.
func (t *Tracker) Apply(counterpart string, msgs []data.Message) Change {
	t.lists[counterpart] = msgs
	return t.change(counterpart)
}

// ApplyConversation is Apply for a conversation document; the document's
// last-message preview is carried on this and later changes.
func (t *Tracker) ApplyConversation(counterpart string, conv *data.Conversation) Change {
	t.previews[counterpart] = conv.Preview()
	return t.Apply(counterpart, conv.Messages)
}

// SetOpen switches the open conversation ("" closes it) and returns the
// changes to publish for the previously open and the newly open counterpart.
func (t *Tracker) SetOpen(counterpart string) []Change {
	if counterpart == t.open {
		return nil
	}
	prev := t.open
	t.open = counterpart

	var out []Change
	if prev != "" {
		if _, ok := t.lists[prev]; ok {
			out = append(out, t.change(prev))
		}
	}
	if counterpart != "" {
		out = append(out, t.change(counterpart))
	}
	return out
}

func (t *Tracker) change(counterpart string) Change {
	s := Compute(t.lists[counterpart], t.me)
	if counterpart == t.open {
		s.Unread = 0
	}
	return Change{
		Counterpart:  counterpart,
		Unread:       s.Unread,
		LastActivity: s.LastActivity,
		Preview:      t.previews[counterpart],
	}
}
