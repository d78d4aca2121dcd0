// Package convkey derives the canonical identifier of a two-party conversation.
//
// The key is the lexicographically greater user id followed by the lesser one,
// with no separator. User ids are fixed-width hex object ids, so the
// concatenation is unambiguous, and it matches the document ids already
// written by earlier clients.
package convkey

import "errors"

var (
	// ErrEmptyID is returned when either participant id is blank.
	ErrEmptyID = errors.New("convkey: empty user id")
	// ErrSelfConversation is returned when both ids are the same user.
	ErrSelfConversation = errors.New("convkey: conversation with self is not supported")
)

// Key returns the conversation key for users a and b. Key(a, b) == Key(b, a).
func Key(a, b string) (string, error) {
	if a == "" || b == "" {
		return "", ErrEmptyID
	}
	if a == b {
		return "", ErrSelfConversation
	}
	if a > b {
		return a + b, nil
	}
	return b + a, nil
}

// Participants returns the pair in the order it is stored on a new
// conversation document: the initiating user first.
func Participants(initiator, counterpart string) []string {
	return []string{initiator, counterpart}
}
