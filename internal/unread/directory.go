package unread

import (
	"slices"
	"time"

	"github.com/PaulBabatuyi/pairchat/internal/normalize"
)

// Contact is a user the current user can chat with.
type Contact struct {
	UID         string
	DisplayName string
	Email       string
	Online      bool
	LastSeen    time.Time
}

// Row is one line of the rendered contact list.
type Row struct {
	Contact
	Unread       int
	LastActivity time.Time
	LastMessage  string
}

// Directory keeps the contact list and the tracker's latest numbers.
//
// Ordering is two separate stable passes: the base order is fixed once, at
// construction, by descending unread count (what was known at first listing);
// every view then stable-sorts that base order by descending last activity.
type Directory struct {
	base    []Contact
	unread  map[string]int
	last    map[string]time.Time
	preview map[string]string
}

// NewDirectory builds the base order from contacts and the unread counts
// known at first listing (may be nil).
func NewDirectory(contacts []Contact, unread map[string]int) *Directory {
	base := slices.Clone(contacts)
	slices.SortStableFunc(base, func(a, b Contact) int {
		return unread[b.UID] - unread[a.UID]
	})

	d := &Directory{
		base:    base,
		unread:  make(map[string]int, len(base)),
		last:    make(map[string]time.Time, len(base)),
		preview: make(map[string]string, len(base)),
	}
	for uid, n := range unread {
		d.unread[uid] = n
	}
	return d
}

// Apply stores a tracker change. It reports whether the counterpart is listed.
func (d *Directory) Apply(c Change) bool {
	d.unread[c.Counterpart] = c.Unread
	d.last[c.Counterpart] = c.LastActivity
	d.preview[c.Counterpart] = c.Preview
	return slices.ContainsFunc(d.base, func(ct Contact) bool { return ct.UID == c.Counterpart })
}

// SetPresence updates a listed contact's presence fields.
func (d *Directory) SetPresence(uid string, online bool, lastSeen time.Time) {
	for i := range d.base {
		if d.base[i].UID == uid {
			d.base[i].Online = online
			d.base[i].LastSeen = lastSeen
			return
		}
	}
}

// Unread returns the latest unread count for uid.
func (d *Directory) Unread(uid string) int { return d.unread[uid] }

// Rows returns contacts whose display name matches search, most recently
// active first. Contacts with no activity keep their base order at the end.
func (d *Directory) Rows(search string) []Row {
	rows := make([]Row, 0, len(d.base))
	for _, c := range d.base {
		if !normalize.MatchesSearch(c.DisplayName, search) {
			continue
		}
		rows = append(rows, Row{
			Contact:      c,
			Unread:       d.unread[c.UID],
			LastActivity: d.last[c.UID],
			LastMessage:  d.preview[c.UID],
		})
	}
	slices.SortStableFunc(rows, func(a, b Row) int {
		return b.LastActivity.Compare(a.LastActivity)
	})
	return rows
}
