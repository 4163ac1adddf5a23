package dashboard

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/meme-sniper/pkg/db"
	"github.com/meme-sniper/pkg/push"
)

func next(t *testing.T, s *Session) interface{} {
	t.Helper()
	select {
	case u, ok := <-s.Updates():
		if !ok {
			t.Fatal("updates closed early")
		}
		return u
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for update")
	}
	return nil
}

func TestMountDeliversBootstrapAndEvents(t *testing.T) {
	hub := push.NewHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	b := &fakeBackend{whales: []db.WhaleActivity{whale(1)}, accounts: []string{"solana"}}
	v, _ := newTestView(b)
	sub := push.NewSubscriber("ws"+strings.TrimPrefix(srv.URL, "http"), 5, push.WithBackoff(10*time.Millisecond, 50*time.Millisecond))
	s := Mount(context.Background(), v, sub)

	var sawBootstrap, sawConnected bool
	for !(sawBootstrap && sawConnected) {
		u := next(t, s)
		v.Handle(u)
		switch m := u.(type) {
		case BootstrapResult:
			sawBootstrap = true
		case push.Event:
			if m.Kind == push.Connected {
				sawConnected = true
			}
		}
	}
	if !v.SocketConnected() || len(v.TrackedAccounts()) != 1 {
		t.Fatalf("view not bootstrapped: connected=%v accounts=%v", v.SocketConnected(), v.TrackedAccounts())
	}

	deadline := time.Now().Add(5 * time.Second)
	for hub.Clients() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if err := hub.PublishPost(db.Post{ID: "42", Text: "$BONK", Author: "solana"}); err != nil {
		t.Fatal(err)
	}
	for {
		u := next(t, s)
		v.Handle(u)
		if ev, ok := u.(push.Event); ok && ev.Kind == push.NewPost {
			break
		}
	}
	if posts := v.Posts(); len(posts) != 1 || posts[0].ID != "42" {
		t.Fatalf("posts = %+v", posts)
	}

	s.Close()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-s.Updates():
			if !ok {
				if err := s.Err(); err != nil {
					t.Fatalf("teardown reported %v", err)
				}
				return
			}
		case <-timeout:
			t.Fatal("updates not closed after Close")
		}
	}
}
