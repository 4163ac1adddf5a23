// Package push implements the live-update channel between the backend and
// dashboards: a broadcast hub on the server side and a reconnecting
// subscriber on the client side. Frames are JSON envelopes over WebSocket.
package push

import (
	"encoding/json"
	"fmt"

	"github.com/meme-sniper/pkg/db"
)

const (
	EventNewTweet         = "new_tweet"
	EventNewWhaleActivity = "new_whale_activity"
)

// Envelope is one frame on the wire.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func encode(event string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", event, err)
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}

// EventKind classifies what the subscriber delivers to its owner.
type EventKind int

const (
	Connected EventKind = iota
	Disconnected
	NewPost
	NewWhaleActivity
)

func (k EventKind) String() string {
	switch k {
	case Connected:
		return "connected"
	case Disconnected:
		return "disconnected"
	case NewPost:
		return "new_post"
	case NewWhaleActivity:
		return "new_whale_activity"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Event is a decoded channel message or a lifecycle change.
type Event struct {
	Kind  EventKind
	Post  *db.Post
	Whale *db.WhaleActivity
	Err   error // set on Disconnected when the link failed
}

// decode turns a frame into an Event. ok is false for unknown events.
func decode(frame []byte) (ev Event, ok bool, err error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Event{}, false, fmt.Errorf("decode envelope: %w", err)
	}
	switch env.Event {
	case EventNewTweet:
		var p db.Post
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return Event{}, false, fmt.Errorf("decode %s: %w", env.Event, err)
		}
		return Event{Kind: NewPost, Post: &p}, true, nil
	case EventNewWhaleActivity:
		var w db.WhaleActivity
		if err := json.Unmarshal(env.Data, &w); err != nil {
			return Event{}, false, fmt.Errorf("decode %s: %w", env.Event, err)
		}
		return Event{Kind: NewWhaleActivity, Whale: &w}, true, nil
	}
	return Event{}, false, nil
}
