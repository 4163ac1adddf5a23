package dashboard

import (
	"context"
	"errors"
	"sync"

	"github.com/meme-sniper/pkg/push"
)

// Session is a mounted view: one open push channel plus the bootstrap fetch.
// Everything it produces arrives on Updates, to be passed to View.Handle by
// the view's owner.
type Session struct {
	cancel  context.CancelFunc
	updates chan interface{}
	wg      sync.WaitGroup

	mu  sync.Mutex
	err error
}

// Mount opens the push channel through sub and issues the bootstrap fetch.
// The channel stays open until Close or until ctx is cancelled.
func Mount(ctx context.Context, v *View, sub *push.Subscriber) *Session {
	ctx, cancel := context.WithCancel(ctx)
	s := &Session{cancel: cancel, updates: make(chan interface{}, 64)}

	s.wg.Add(3)
	go func() {
		defer s.wg.Done()
		if err := sub.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.setErr(err)
		}
	}()
	go func() {
		defer s.wg.Done()
		for ev := range sub.Events() {
			s.deliver(ctx, ev)
		}
	}()
	go func() {
		defer s.wg.Done()
		// in-flight fetches are not cancelled by teardown
		s.deliver(ctx, FetchBootstrap(context.WithoutCancel(ctx), v.backend))
	}()

	go func() {
		s.wg.Wait()
		close(s.updates)
	}()
	return s
}

func (s *Session) deliver(ctx context.Context, msg interface{}) {
	select {
	case s.updates <- msg:
	case <-ctx.Done():
	}
}

// Updates is closed once the channel is torn down and the bootstrap is done.
func (s *Session) Updates() <-chan interface{} {
	return s.updates
}

// Close tears down the push channel.
func (s *Session) Close() {
	s.cancel()
}

// Err reports why the channel stopped on its own, if it did.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Session) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}
