// Package presence signs out users whose sessions went quiet.
package presence

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/PaulBabatuyi/pairchat/internal/data"
)

// Users is the subset of the user store the sweeper needs.
type Users interface {
	IdleOnline(ctx context.Context, cutoff time.Time) ([]*data.User, error)
	SetPresence(ctx context.Context, uid string, online bool, at time.Time) error
}

// SignOutFunc ends every live session of a user.
type SignOutFunc func(uid string)

// Sweeper periodically marks users offline whose last heartbeat is older
// than the idle timeout, and signs them out.
type Sweeper struct {
	users    Users
	signOut  SignOutFunc
	interval time.Duration
	idle     time.Duration
	log      logrus.FieldLogger
	now      func() time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewSweeper returns a stopped sweeper; call Start to run it.
//   - interval: how often to look for idle users (e.g., 30 seconds)
//   - idle: how long a user may stay silent before sign-out (e.g., 2 minutes)
func NewSweeper(users Users, signOut SignOutFunc, interval, idle time.Duration, log logrus.FieldLogger) *Sweeper {
	return &Sweeper{
		users:    users,
		signOut:  signOut,
		interval: interval,
		idle:     idle,
		log:      log,
		now:      time.Now,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start runs the sweep loop in its own goroutine.
func (s *Sweeper) Start() {
	go s.loop()
}

// Stop ends the loop and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	<-s.doneCh
}

func (s *Sweeper) loop() {
	defer close(s.doneCh)
	s.log.WithFields(logrus.Fields{"interval": s.interval, "idle": s.idle}).Info("presence sweeper started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), s.interval)
			s.Sweep(ctx)
			cancel()
		case <-s.stopCh:
			s.log.Info("presence sweeper stopped")
			return
		}
	}
}

// Sweep runs one pass and returns how many users were signed out.
func (s *Sweeper) Sweep(ctx context.Context) int {
	now := s.now().UTC()
	idle, err := s.users.IdleOnline(ctx, now.Add(-s.idle))
	if err != nil {
		s.log.WithField("error", err).Error("presence sweep: list idle users")
		return 0
	}

	n := 0
	for _, u := range idle {
		uid := u.UID()
		if err := s.users.SetPresence(ctx, uid, false, now); err != nil {
			s.log.WithFields(logrus.Fields{"uid": uid, "error": err}).Warn("presence sweep: mark offline")
			continue
		}
		if s.signOut != nil {
			s.signOut(uid)
		}
		s.log.WithField("uid", uid).Info("signed out idle user")
		n++
	}
	return n
}
