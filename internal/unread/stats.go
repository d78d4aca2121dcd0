// Package unread derives per-counterpart unread counts and last-activity
// timestamps from conversation message lists, and orders the contact list
// from them.
//
// Everything here is recomputed from the full message list on every change:
// read receipts and deletions rewrite history, so a running delta would drift.
package unread

import (
	"time"

	"github.com/PaulBabatuyi/pairchat/internal/data"
)

// Stats is the derived state of one conversation for the current user.
type Stats struct {
	Unread       int
	LastActivity time.Time // zero means "never"
}

// Compute counts messages from others that me has not read and finds the
// newest message date. Messages without a date do not move LastActivity.
func Compute(msgs []data.Message, me string) Stats {
	var s Stats
	for _, m := range msgs {
		if !m.Date.IsZero() && m.Date.After(s.LastActivity) {
			s.LastActivity = m.Date
		}
		if m.SenderID != me && !m.ReadByUser(me) {
			s.Unread++
		}
	}
	return s
}

// MarkRead returns a copy of msgs where me has been added to the read set of
// every message from someone else that me had not read, and how many messages
// changed. The input slice and its ReadBy slices are left untouched.
func MarkRead(msgs []data.Message, me string) ([]data.Message, int) {
	out := make([]data.Message, len(msgs))
	changed := 0
	for i, m := range msgs {
		if m.SenderID != me && !m.ReadByUser(me) {
			readBy := make([]string, len(m.ReadBy), len(m.ReadBy)+1)
			copy(readBy, m.ReadBy)
			m.ReadBy = append(readBy, me)
			changed++
		}
		out[i] = m
	}
	return out, changed
}
