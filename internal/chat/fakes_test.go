package chat

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/PaulBabatuyi/pairchat/internal/assets"
	"github.com/PaulBabatuyi/pairchat/internal/data"
	"github.com/PaulBabatuyi/pairchat/internal/media"
)

// fakeConvs is an in-memory conversation store with live subscriptions.
type fakeConvs struct {
	mu       sync.Mutex
	docs     map[string]*data.Conversation
	subs     map[string][]chan *data.Conversation
	replaces int
	watches  int
	failGet  error
	failAdd  error
}

func newFakeConvs() *fakeConvs {
	return &fakeConvs{docs: map[string]*data.Conversation{}, subs: map[string][]chan *data.Conversation{}}
}

func clone(c *data.Conversation) *data.Conversation {
	cp := *c
	cp.Messages = make([]data.Message, len(c.Messages))
	for i, m := range c.Messages {
		m.ReadBy = slices.Clone(m.ReadBy)
		cp.Messages[i] = m
	}
	return &cp
}

func (f *fakeConvs) publish(key string) {
	doc := f.docs[key]
	for _, ch := range f.subs[key] {
		select {
		case <-ch:
		default:
		}
		ch <- clone(doc)
	}
}

func (f *fakeConvs) Get(_ context.Context, key string) (*data.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failGet != nil {
		return nil, f.failGet
	}
	doc, ok := f.docs[key]
	if !ok {
		return nil, data.ErrNotFound
	}
	return clone(doc), nil
}

func (f *fakeConvs) Create(_ context.Context, key string, participants []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.docs[key]; !ok {
		f.docs[key] = &data.Conversation{ID: key, Participants: participants, Messages: []data.Message{}}
		f.publish(key)
	}
	return nil
}

func (f *fakeConvs) Append(_ context.Context, key string, participants []string, msg data.Message, last data.LastMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAdd != nil {
		return f.failAdd
	}
	doc, ok := f.docs[key]
	if !ok {
		doc = &data.Conversation{ID: key}
		f.docs[key] = doc
	}
	doc.Participants = participants
	doc.Messages = append(doc.Messages, msg)
	doc.LastMessage = &last
	f.publish(key)
	return nil
}

func (f *fakeConvs) ReplaceMessages(_ context.Context, key string, msgs []data.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[key]
	if !ok {
		return data.ErrNotFound
	}
	f.replaces++
	doc.Messages = msgs
	f.publish(key)
	return nil
}

func (f *fakeConvs) DeleteMessage(_ context.Context, key string, id int64, sender string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[key]
	if !ok {
		return false, data.ErrNotFound
	}
	n := len(doc.Messages)
	doc.Messages = slices.DeleteFunc(doc.Messages, func(m data.Message) bool { return m.ID == id && m.SenderID == sender })
	if len(doc.Messages) == n {
		return false, nil
	}
	f.publish(key)
	return true, nil
}

func (f *fakeConvs) SetLastMessage(_ context.Context, key string, last *data.LastMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[key]
	if !ok {
		return data.ErrNotFound
	}
	doc.LastMessage = last
	f.publish(key)
	return nil
}

func (f *fakeConvs) SubscribeMany(_ context.Context, keys []string) (map[string]<-chan *data.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.watches++
	out := make(map[string]<-chan *data.Conversation, len(keys))
	for _, k := range keys {
		out[k] = f.subscribeLocked(k)
	}
	return out, nil
}

func (f *fakeConvs) subscribeLocked(key string) chan *data.Conversation {
	ch := make(chan *data.Conversation, 1)
	if doc, ok := f.docs[key]; ok {
		ch <- clone(doc)
	}
	f.subs[key] = append(f.subs[key], ch)
	return ch
}

func (f *fakeConvs) seed(key string, participants []string, msgs ...data.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[key] = &data.Conversation{ID: key, Participants: participants, Messages: msgs}
}

type summaryKey struct{ owner, key string }

type fakeSummaries struct {
	mu      sync.Mutex
	entries map[summaryKey]data.SummaryUpdate
	fail    error
}

func (f *fakeSummaries) Touch(_ context.Context, owner, key string, u data.SummaryUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	if f.entries == nil {
		f.entries = map[summaryKey]data.SummaryUpdate{}
	}
	if prev, ok := f.entries[summaryKey{owner, key}]; ok && u.LastMessage == "" && !u.ResetPreview {
		u.LastMessage = prev.LastMessage
	}
	f.entries[summaryKey{owner, key}] = u
	return nil
}

func (f *fakeSummaries) get(owner, key string) (data.SummaryUpdate, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.entries[summaryKey{owner, key}]
	return u, ok
}

type fakeUsers struct {
	mu       sync.Mutex
	byID     map[string]*data.User
	order    []string
	selected map[string]string
}

func newFakeUsers(names ...string) (*fakeUsers, []string) {
	f := &fakeUsers{byID: map[string]*data.User{}, selected: map[string]string{}}
	var ids []string
	for _, n := range names {
		u := &data.User{ID: bson.NewObjectID(), DisplayName: n, Email: n + "@example.com"}
		f.byID[u.UID()] = u
		f.order = append(f.order, u.UID())
		ids = append(ids, u.UID())
	}
	return f, ids
}

func (f *fakeUsers) GetUserByID(_ context.Context, uid string) (*data.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[uid]
	if !ok {
		return nil, data.ErrNotFound
	}
	cp := *u
	cp.LastSelected = f.selected[uid]
	return &cp, nil
}

func (f *fakeUsers) ListUsers(context.Context) ([]*data.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*data.User
	for _, id := range f.order {
		cp := *f.byID[id]
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeUsers) SetLastSelected(_ context.Context, uid, counterpart string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.selected[uid] = counterpart
	return nil
}

type fakeUploader struct {
	calls int
	got   media.File
	url   string
	err   error
}

func (f *fakeUploader) Upload(_ context.Context, file media.File, onProgress assets.Progress) (string, error) {
	f.calls++
	f.got = file
	if f.err != nil {
		return "", f.err
	}
	if onProgress != nil {
		onProgress(file.Size(), file.Size())
	}
	return f.url, nil
}

type failingCompressor struct{}

func (failingCompressor) Compress(context.Context, []byte) ([]byte, error) {
	return nil, errors.New("decoder exploded")
}

type fixture struct {
	svc       *Service
	convs     *fakeConvs
	summaries *fakeSummaries
	users     *fakeUsers
	uploader  *fakeUploader
	a, b, c   string
	now       time.Time
}

func newFixture(t *testing.T, policy media.Policy) *fixture {
	t.Helper()
	log, _ := test.NewNullLogger()
	users, ids := newFakeUsers("alice", "bob", "carol")
	f := &fixture{
		convs:     newFakeConvs(),
		summaries: &fakeSummaries{},
		users:     users,
		uploader:  &fakeUploader{url: "https://cdn.example/asset"},
		a:         ids[0],
		b:         ids[1],
		c:         ids[2],
		now:       time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
	}
	prep := &media.Preparer{Policy: policy, Images: failingCompressor{}, Log: log}
	f.svc = NewService(f.convs, f.summaries, f.users, prep, f.uploader, log)
	f.svc.now = func() time.Time { return f.now }
	return f
}
