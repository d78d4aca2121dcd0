package chat

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/PaulBabatuyi/pairchat/internal/assets"
	"github.com/PaulBabatuyi/pairchat/internal/convkey"
	"github.com/PaulBabatuyi/pairchat/internal/data"
	"github.com/PaulBabatuyi/pairchat/internal/media"
)

const previewRunes = 120

// Outgoing is a message being composed.
type Outgoing struct {
	From       string
	To         string
	Text       string
	Attachment *media.File
	OnProgress assets.Progress
}

// Send builds the message, uploads its attachment if any, appends it to the
// conversation and refreshes both summary entries with a preview.
//
// An oversized attachment is rejected before any network call. When the
// upload fails nothing is written.
func (s *Service) Send(ctx context.Context, out Outgoing) (*data.Message, error) {
	text := out.Text
	if strings.TrimSpace(text) == "" {
		text = ""
	}
	if text == "" && out.Attachment == nil {
		return nil, ErrEmptyMessage
	}

	key, err := convkey.Key(out.From, out.To)
	if err != nil {
		return nil, err
	}

	var prepared *media.Prepared
	if out.Attachment != nil {
		p, err := s.prepare(ctx, *out.Attachment)
		if err != nil {
			return nil, err
		}
		prepared = &p
	}

	self, other, err := s.pair(ctx, out.From, out.To)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	msg := data.Message{
		ID:       s.nextID(now.UnixMilli()),
		Text:     text,
		SenderID: out.From,
		Date:     now,
		ReadBy:   []string{out.From},
	}

	if prepared != nil {
		if s.uploader == nil {
			return nil, &assets.UploadError{Message: "attachments are disabled"}
		}
		url, err := s.uploader.Upload(ctx, prepared.File, out.OnProgress)
		if err != nil {
			s.log.WithFields(logrus.Fields{"uid": out.From, "conversation": key, "file": prepared.Name, "error": err}).
				Warn("attachment upload failed, message not sent")
			return nil, err
		}
		msg.MediaURL = url
		msg.MediaType = prepared.Kind
		msg.FileName = prepared.Name
	}

	preview := Preview(msg)
	last := data.LastMessage{Preview: preview, SenderID: out.From, Date: now}
	if err := s.convs.Append(ctx, key, convkey.Participants(out.From, out.To), msg, last); err != nil {
		return nil, err
	}

	// The message is stored; a stale summary must not make the caller resend it
	if err := s.touchBoth(ctx, key, self, other, data.SummaryUpdate{Date: now, LastMessage: preview}); err != nil {
		s.log.WithFields(logrus.Fields{"conversation": key, "error": err}).Error("update summaries after send")
	}
	return &msg, nil
}

func (s *Service) prepare(ctx context.Context, f media.File) (media.Prepared, error) {
	if s.prep == nil {
		return media.Prepared{File: f, Kind: media.Classify(f.MIMEType, f.Name)}, nil
	}
	return s.prep.Prepare(ctx, f)
}

// nextID returns a millisecond timestamp id, bumped past the last issued one
// so ids stay unique and increasing within this process.
func (s *Service) nextID(nowMillis int64) int64 {
	s.idMu.Lock()
	defer s.idMu.Unlock()
	if nowMillis <= s.lastID {
		nowMillis = s.lastID + 1
	}
	s.lastID = nowMillis
	return nowMillis
}

// Preview is the summary line for a message: its text, or a label for the
// attachment when there is no text.
func Preview(m data.Message) string {
	text := strings.Join(strings.Fields(m.Text), " ")
	if text == "" {
		if m.HasMedia() {
			return media.Label(m.MediaType, m.FileName)
		}
		return ""
	}
	if utf8.RuneCountInString(text) > previewRunes {
		r := []rune(text)
		return string(r[:previewRunes-1]) + "…"
	}
	return text
}

// DeleteMessage removes one message me sent. Unknown ids and missing
// conversations are a no-op.
func (s *Service) DeleteMessage(ctx context.Context, me, counterpart string, id int64) error {
	key, err := convkey.Key(me, counterpart)
	if err != nil {
		return err
	}

	removed, err := s.convs.DeleteMessage(ctx, key, id, me)
	if errors.Is(err, data.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if removed {
		s.refreshLastOrLog(ctx, key, me, counterpart)
		return nil
	}

	conv, err := s.convs.Get(ctx, key)
	if err != nil {
		if errors.Is(err, data.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("load conversation %s: %w", key, err)
	}
	if slices.ContainsFunc(conv.Messages, func(m data.Message) bool { return m.ID == id }) {
		return ErrNotSender
	}
	return nil
}

// Clear empties the conversation between me and counterpart.
func (s *Service) Clear(ctx context.Context, me, counterpart string) error {
	key, err := convkey.Key(me, counterpart)
	if err != nil {
		return err
	}
	err = s.convs.ReplaceMessages(ctx, key, []data.Message{})
	if errors.Is(err, data.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{"uid": me, "conversation": key}).Info("conversation cleared")
	s.refreshLastOrLog(ctx, key, me, counterpart)
	return nil
}

// refreshLast points the conversation's last-message summary, and both
// users' summary entries, at the newest message still in the list.
func (s *Service) refreshLast(ctx context.Context, key, me, counterpart string) error {
	conv, err := s.convs.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("load conversation %s: %w", key, err)
	}

	var last *data.LastMessage
	if n := len(conv.Messages); n > 0 {
		m := conv.Messages[n-1]
		last = &data.LastMessage{Preview: Preview(m), SenderID: m.SenderID, Date: m.Date}
	}
	if sameLast(conv.LastMessage, last) {
		return nil
	}

	if err := s.convs.SetLastMessage(ctx, key, last); err != nil {
		return fmt.Errorf("set last message: %w", err)
	}
	self, other, err := s.pair(ctx, me, counterpart)
	if err != nil {
		return err
	}
	u := data.SummaryUpdate{Date: s.now().UTC(), ResetPreview: true}
	if last != nil {
		u.Date = last.Date
		u.LastMessage = last.Preview
	}
	return s.touchBoth(ctx, key, self, other, u)
}

// refreshLastOrLog runs refreshLast after a removal that already succeeded.
func (s *Service) refreshLastOrLog(ctx context.Context, key, me, counterpart string) {
	if err := s.refreshLast(ctx, key, me, counterpart); err != nil {
		s.log.WithFields(logrus.Fields{"conversation": key, "error": err}).Error("refresh last message after removal")
	}
}

func sameLast(a, b *data.LastMessage) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Preview == b.Preview && a.SenderID == b.SenderID && a.Date.Equal(b.Date)
}
