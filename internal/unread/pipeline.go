package unread

import (
	"context"
	"errors"
	"fmt"

	"github.com/PaulBabatuyi/pairchat/internal/data"
)

// ErrFeedClosed is returned by Run when a counterpart's live feed ends while
// the pipeline is still running.
var ErrFeedClosed = errors.New("unread: conversation feed closed")

// event is the single message type of the pipeline's event loop.
type event struct {
	counterpart string
	conv        *data.Conversation
	setOpen     bool
	closed      bool
}

// Pipeline fans in one live feed per counterpart and runs a Tracker on a
// single goroutine. Feeds are independent: nothing is assumed about the
// relative order of events from different counterparts.
type Pipeline struct {
	tracker *Tracker
	events  chan event
	changes chan Change
	done    chan struct{}
}

// NewPipeline creates a pipeline for the user me with open as the initially
// open conversation ("" for none).
func NewPipeline(me, open string) *Pipeline {
	t := NewTracker(me)
	t.open = open
	return &Pipeline{
		tracker: t,
		events:  make(chan event),
		changes: make(chan Change, 16),
		done:    make(chan struct{}),
	}
}

// Prime records the first known state of counterpart's conversation and
// returns its change. It must only be called before Run starts.
func (p *Pipeline) Prime(counterpart string, conv *data.Conversation) Change {
	return p.tracker.ApplyConversation(counterpart, conv)
}

// Changes returns the channel of published changes. It is closed when Run returns.
func (p *Pipeline) Changes() <-chan Change { return p.changes }

// AddFeed forwards every conversation state from feed into the pipeline.
// A nil conversation is skipped. Must be called before or while Run is running.
func (p *Pipeline) AddFeed(ctx context.Context, counterpart string, feed <-chan *data.Conversation) {
	go func() {
		for conv := range feed {
			if conv == nil {
				continue
			}
			if !p.send(ctx, event{counterpart: counterpart, conv: conv}) {
				return
			}
		}
		p.send(ctx, event{counterpart: counterpart, closed: true})
	}()
}

// SetOpen changes the open conversation. It returns ctx.Err() if ctx ends
// first and nil if the pipeline has already stopped.
func (p *Pipeline) SetOpen(ctx context.Context, counterpart string) error {
	if p.send(ctx, event{counterpart: counterpart, setOpen: true}) {
		return nil
	}
	return ctx.Err()
}

func (p *Pipeline) send(ctx context.Context, ev event) bool {
	select {
	case p.events <- ev:
		return true
	case <-ctx.Done():
		return false
	case <-p.done:
		return false
	}
}

// Run processes events until ctx is done or a feed closes.
func (p *Pipeline) Run(ctx context.Context) error {
	defer close(p.changes)
	defer close(p.done)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-p.events:
			var out []Change
			switch {
			case ev.closed:
				return fmt.Errorf("%w: %s", ErrFeedClosed, ev.counterpart)
			case ev.setOpen:
				out = p.tracker.SetOpen(ev.counterpart)
			default:
				out = []Change{p.tracker.ApplyConversation(ev.counterpart, ev.conv)}
			}
			for _, c := range out {
				select {
				case p.changes <- c:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}
}
