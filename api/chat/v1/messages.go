package chatv1

import "time"

// Empty is used by calls that carry no payload.
type Empty struct{}

type RegisterRequest struct {
	Email       string `json:"email" validate:"required,email,max=254"`
	Password    string `json:"password" validate:"required,min=8,max=72"`
	DisplayName string `json:"display_name" validate:"required,max=64"`
	AdminPIN    string `json:"admin_pin" validate:"required"`
}

// GetEmail lets the rate limiter key on the account.
func (r *RegisterRequest) GetEmail() string { return r.Email }

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (r *LoginRequest) GetEmail() string { return r.Email }

type AuthResponse struct {
	User      User      `json:"user"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type User struct {
	UID         string    `json:"uid"`
	DisplayName string    `json:"display_name"`
	Email       string    `json:"email,omitempty"`
	IsOnline    bool      `json:"is_online"`
	LastSeen    time.Time `json:"last_seen"`
}

type ListUsersResponse struct {
	Users []User `json:"users"`
}

type CounterpartRequest struct {
	Counterpart string `json:"counterpart" validate:"required,len=24,hexadecimal"`
}

type OpenConversationResponse struct {
	Conversation ConversationSnapshot `json:"conversation"`
	Created      bool                 `json:"created"`
	MarkedRead   int                  `json:"marked_read"`
}

type Attachment struct {
	Name     string `json:"name" validate:"max=255"`
	MIMEType string `json:"mime_type" validate:"max=255"`
	Data     []byte `json:"data" validate:"required"`
}

type SendMessageRequest struct {
	Counterpart string      `json:"counterpart" validate:"required,len=24,hexadecimal"`
	Text        string      `json:"text" validate:"max=4000"`
	Attachment  *Attachment `json:"attachment,omitempty"`
}

type SendMessageResponse struct {
	Message Message `json:"message"`
}

type DeleteMessageRequest struct {
	Counterpart string `json:"counterpart" validate:"required,len=24,hexadecimal"`
	MessageID   int64  `json:"message_id" validate:"required"`
}

// MediaPreview tells a renderer how to show an attachment.
type MediaPreview struct {
	Mode string `json:"mode"` // inline, viewer or download
	URL  string `json:"url"`
}

type Message struct {
	ID        int64         `json:"id"`
	Text      string        `json:"text,omitempty"`
	SenderID  string        `json:"sender_id"`
	Date      time.Time     `json:"date"`
	ReadBy    []string      `json:"read_by"`
	MediaURL  string        `json:"media_url,omitempty"`
	MediaType string        `json:"media_type,omitempty"`
	FileName  string        `json:"file_name,omitempty"`
	Preview   *MediaPreview `json:"preview,omitempty"`
}

// ConversationSnapshot is the full state of a conversation document.
type ConversationSnapshot struct {
	Key          string    `json:"key"`
	Participants []string  `json:"participants"`
	Messages     []Message `json:"messages"`
}

type WatchSummariesRequest struct {
	Search string `json:"search" validate:"max=64"`
}

type ContactRow struct {
	User         User      `json:"user"`
	Unread       int       `json:"unread"`
	LastActivity time.Time `json:"last_activity"`
	LastMessage  string    `json:"last_message,omitempty"`
}

// ContactList is the ordered contact list of the caller.
type ContactList struct {
	Open string       `json:"open,omitempty"`
	Rows []ContactRow `json:"rows"`
}

const (
	IdentitySignedIn  = "signed_in"
	IdentitySignedOut = "signed_out"
)

type IdentityEvent struct {
	Type string `json:"type"`
	User User   `json:"user"`
}
