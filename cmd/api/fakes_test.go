package main

import (
	"context"
	"slices"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/PaulBabatuyi/pairchat/internal/data"
	"github.com/PaulBabatuyi/pairchat/internal/normalize"
)

// memUsers is an in-memory users collection with a unique email index.
type memUsers struct {
	mu      sync.Mutex
	byID    map[string]*data.User
	ids     []string
	creates int
}

func newMemUsers() *memUsers { return &memUsers{byID: map[string]*data.User{}} }

func (m *memUsers) CreateUser(_ context.Context, displayName, email, hashed string) (*data.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creates++
	email = normalize.Email(email)
	for _, u := range m.byID {
		if u.Email == email {
			return nil, data.ErrUserExists
		}
	}
	now := time.Now().UTC()
	u := &data.User{ID: bson.NewObjectID(), DisplayName: displayName, Email: email, Password: hashed, LastSeen: now, CreatedAt: now}
	m.byID[u.UID()] = u
	m.ids = append(m.ids, u.UID())
	cp := *u
	return &cp, nil
}

func (m *memUsers) GetUserByEmail(_ context.Context, email string) (*data.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	email = normalize.Email(email)
	for _, u := range m.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, data.ErrNotFound
}

func (m *memUsers) UserExists(_ context.Context, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	email = normalize.Email(email)
	for _, u := range m.byID {
		if u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (m *memUsers) createCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.creates
}

func (m *memUsers) GetUserByID(_ context.Context, uid string) (*data.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[uid]
	if !ok {
		return nil, data.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) ListUsers(context.Context) ([]*data.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*data.User, 0, len(m.ids))
	for _, id := range m.ids {
		cp := *m.byID[id]
		cp.Password = ""
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memUsers) update(uid string, fn func(u *data.User)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[uid]
	if !ok {
		return data.ErrNotFound
	}
	fn(u)
	return nil
}

func (m *memUsers) SetPresence(_ context.Context, uid string, online bool, at time.Time) error {
	return m.update(uid, func(u *data.User) { u.IsOnline, u.LastSeen = online, at })
}

func (m *memUsers) Touch(_ context.Context, uid string, at time.Time) error {
	return m.update(uid, func(u *data.User) { u.LastSeen = at })
}

func (m *memUsers) SetLastSelected(_ context.Context, uid, counterpart string) error {
	return m.update(uid, func(u *data.User) { u.LastSelected = counterpart })
}

func (m *memUsers) online(uid string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[uid]
	return ok && u.IsOnline
}

// memConvs is an in-memory chats collection. Subscribers get the latest
// document on a one-slot channel, like the change-stream store.
type memConvs struct {
	mu   sync.Mutex
	docs map[string]*data.Conversation
	subs map[string][]chan *data.Conversation
}

func newMemConvs() *memConvs {
	return &memConvs{docs: map[string]*data.Conversation{}, subs: map[string][]chan *data.Conversation{}}
}

func cloneConv(c *data.Conversation) *data.Conversation {
	cp := *c
	cp.Messages = make([]data.Message, len(c.Messages))
	for i, msg := range c.Messages {
		msg.ReadBy = slices.Clone(msg.ReadBy)
		cp.Messages[i] = msg
	}
	return &cp
}

func (m *memConvs) publish(key string) {
	doc := m.docs[key]
	for _, ch := range m.subs[key] {
		select {
		case <-ch:
		default:
		}
		ch <- cloneConv(doc)
	}
}

func (m *memConvs) Get(_ context.Context, key string) (*data.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[key]
	if !ok {
		return nil, data.ErrNotFound
	}
	return cloneConv(doc), nil
}

func (m *memConvs) Create(_ context.Context, key string, participants []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[key]; !ok {
		m.docs[key] = &data.Conversation{ID: key, Participants: participants, Messages: []data.Message{}}
		m.publish(key)
	}
	return nil
}

func (m *memConvs) Append(_ context.Context, key string, participants []string, msg data.Message, last data.LastMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[key]
	if !ok {
		doc = &data.Conversation{ID: key}
		m.docs[key] = doc
	}
	doc.Participants = participants
	doc.Messages = append(doc.Messages, msg)
	doc.LastMessage = &last
	m.publish(key)
	return nil
}

func (m *memConvs) ReplaceMessages(_ context.Context, key string, msgs []data.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[key]
	if !ok {
		return data.ErrNotFound
	}
	doc.Messages = msgs
	m.publish(key)
	return nil
}

func (m *memConvs) DeleteMessage(_ context.Context, key string, id int64, sender string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[key]
	if !ok {
		return false, data.ErrNotFound
	}
	n := len(doc.Messages)
	doc.Messages = slices.DeleteFunc(doc.Messages, func(msg data.Message) bool { return msg.ID == id && msg.SenderID == sender })
	if len(doc.Messages) == n {
		return false, nil
	}
	m.publish(key)
	return true, nil
}

func (m *memConvs) SetLastMessage(_ context.Context, key string, last *data.LastMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[key]
	if !ok {
		return data.ErrNotFound
	}
	doc.LastMessage = last
	m.publish(key)
	return nil
}

func (m *memConvs) Subscribe(_ context.Context, key string) (<-chan *data.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.subscribeLocked(key), nil
}

func (m *memConvs) SubscribeMany(_ context.Context, keys []string) (map[string]<-chan *data.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]<-chan *data.Conversation, len(keys))
	for _, k := range keys {
		out[k] = m.subscribeLocked(k)
	}
	return out, nil
}

func (m *memConvs) subscribeLocked(key string) chan *data.Conversation {
	ch := make(chan *data.Conversation, 1)
	if doc, ok := m.docs[key]; ok {
		ch <- cloneConv(doc)
	}
	m.subs[key] = append(m.subs[key], ch)
	return ch
}

type memSummaries struct {
	mu      sync.Mutex
	entries map[string]data.SummaryUpdate
}

func (m *memSummaries) Touch(_ context.Context, owner, key string, u data.SummaryUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.entries == nil {
		m.entries = map[string]data.SummaryUpdate{}
	}
	id := owner + "/" + key
	if prev, ok := m.entries[id]; ok && u.LastMessage == "" && !u.ResetPreview {
		u.LastMessage = prev.LastMessage
	}
	m.entries[id] = u
	return nil
}

func (m *memSummaries) get(owner, key string) (data.SummaryUpdate, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.entries[owner+"/"+key]
	return u, ok
}
