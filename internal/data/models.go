package data

import (
	"errors"
	"slices"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

var (
	// ErrNotFound is returned when a requested document does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUserExists is returned when registering an email that is already taken.
	ErrUserExists = errors.New("user already exists")
)

// User maps to the users collection.
type User struct {
	ID           bson.ObjectID `bson:"_id,omitempty"`
	DisplayName  string        `bson:"display_name"`
	Email        string        `bson:"email"`
	Password     string        `bson:"password"`
	IsOnline     bool          `bson:"is_online"`
	LastSeen     time.Time     `bson:"last_seen"`
	LastSelected string        `bson:"last_selected,omitempty"` // uid of the counterpart last opened
	CreatedAt    time.Time     `bson:"created_at"`
	UpdatedAt    time.Time     `bson:"updated_at"`
}

// UID returns the stable string identifier used everywhere outside the users collection.
func (u *User) UID() string { return u.ID.Hex() }

// Info returns the public part of the user record.
func (u *User) Info() UserInfo {
	return UserInfo{UID: u.UID(), DisplayName: u.DisplayName}
}

// UserInfo is the counterpart identity denormalized into summary entries.
type UserInfo struct {
	UID         string `bson:"uid"`
	DisplayName string `bson:"display_name"`
}

// MediaType classifies an attachment.
type MediaType string

const (
	MediaImage  MediaType = "image"
	MediaVideo  MediaType = "video"
	MediaAudio  MediaType = "audio"
	MediaPDF    MediaType = "pdf"
	MediaOffice MediaType = "office"
	MediaFile   MediaType = "file"
)

// Message is one element of a conversation's message list. Only ReadBy changes
// after creation.
type Message struct {
	ID        int64     `bson:"id"` // creation time in milliseconds
	Text      string    `bson:"text,omitempty"`
	SenderID  string    `bson:"sender_id"`
	Date      time.Time `bson:"date"`
	ReadBy    []string  `bson:"read_by"`
	MediaURL  string    `bson:"media_url,omitempty"`
	MediaType MediaType `bson:"media_type,omitempty"`
	FileName  string    `bson:"file_name,omitempty"`
}

// ReadByUser reports whether uid has seen the message.
func (m Message) ReadByUser(uid string) bool {
	return slices.Contains(m.ReadBy, uid)
}

// HasMedia reports whether the message carries an attachment.
func (m Message) HasMedia() bool { return m.MediaURL != "" }

// Preview returns the summary line of the conversation's last message, or "".
func (c *Conversation) Preview() string {
	if c == nil || c.LastMessage == nil {
		return ""
	}
	return c.LastMessage.Preview
}

// LastMessage summarizes the most recent message on the conversation document.
type LastMessage struct {
	Preview  string    `bson:"preview"`
	SenderID string    `bson:"sender_id"`
	Date     time.Time `bson:"date"`
}

// Conversation maps to the chats collection; ID is the conversation key.
type Conversation struct {
	ID           string       `bson:"_id"`
	Participants []string     `bson:"participants"`
	Messages     []Message    `bson:"messages"`
	LastMessage  *LastMessage `bson:"last_message,omitempty"`
	CreatedAt    time.Time    `bson:"created_at"`
	UpdatedAt    time.Time    `bson:"updated_at"`
}

// Summary is one entry of a user's conversation-summary index (user_chats collection).
type Summary struct {
	ID              string    `bson:"_id"` // owner + "/" + conversation key
	Owner           string    `bson:"owner"`
	ConversationKey string    `bson:"conversation_key"`
	Counterpart     UserInfo  `bson:"counterpart"`
	Date            time.Time `bson:"date"`
	LastMessage     string    `bson:"last_message,omitempty"`
}

// SummaryUpdate is the typed payload written to one summary entry. An empty
// LastMessage leaves the stored preview untouched unless ResetPreview is set,
// in which case the preview is removed.
type SummaryUpdate struct {
	Counterpart  UserInfo
	Date         time.Time
	LastMessage  string
	ResetPreview bool
}

func summaryID(owner, key string) string { return owner + "/" + key }
