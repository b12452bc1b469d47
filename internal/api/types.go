package api

import (
	"strings"

	"github.com/matheus3301/zfetch/internal/fetch"
	"github.com/matheus3301/zfetch/internal/store"
)

// StatusReply is returned by GetStatus and by every call that changes which
// list is current.
type StatusReply struct {
	Session        string `json:"session"`
	UptimeMS       int64  `json:"uptime_ms"`
	CachedMessages int64  `json:"cached_messages"`
	Unread         int    `json:"unread"`
	Error          string `json:"error,omitempty"`
	fetch.Snapshot
}

type InitializeRequest struct {
	Anchor string `json:"anchor,omitempty"`
}

// LoadRequest names the list to extend. Empty means the current list.
type LoadRequest struct {
	List string `json:"list,omitempty"`
}

// LoadReply reports whether a request was issued. Started is false when
// the list is already loading in that direction or has reached its end.
type LoadReply struct {
	Started bool `json:"started"`
}

type NarrowRequest struct {
	Narrow string `json:"narrow"`
	Anchor string `json:"anchor,omitempty"`
}

// ListMessagesRequest pages through the local cache, newest first.
type ListMessagesRequest struct {
	Stream   string `json:"stream,omitempty"`
	BeforeID int64  `json:"before_id,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

type MessagesReply struct {
	Messages []Message `json:"messages"`
	HasMore  bool      `json:"has_more"`
}

type SearchRequest struct {
	Query  string `json:"query"`
	Stream string `json:"stream,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

type SearchHit struct {
	Message Message `json:"message"`
	Snippet string  `json:"snippet"`
}

type SearchReply struct {
	Results []SearchHit `json:"results"`
	HasMore bool        `json:"has_more"`
}

// WatchRequest filters the event stream by kind prefix ("fetch.", "home.").
// Empty streams every event.
type WatchRequest struct {
	Prefix string `json:"prefix,omitempty"`
}

// Event is one bus event as sent on the WatchEvents stream.
type Event struct {
	ID           string         `json:"id"`
	Session      string         `json:"session"`
	Kind         string         `json:"kind"`
	OccurredAtMS int64          `json:"occurred_at_ms"`
	Payload      map[string]any `json:"payload,omitempty"`
}

// Message is a cached message as returned by ListMessages and
// SearchMessages.
type Message struct {
	ID          int64    `json:"id"`
	SenderID    int64    `json:"sender_id"`
	SenderEmail string   `json:"sender_email"`
	SenderName  string   `json:"sender_name"`
	Type        string   `json:"type"`
	StreamID    int64    `json:"stream_id,omitempty"`
	Stream      string   `json:"stream,omitempty"`
	Subject     string   `json:"subject,omitempty"`
	Content     string   `json:"content"`
	Timestamp   int64    `json:"timestamp"`
	Flags       []string `json:"flags,omitempty"`
}

func messageFromStore(m *store.Message) Message {
	out := Message{
		ID:          m.ID,
		SenderID:    m.SenderID,
		SenderEmail: m.SenderEmail,
		SenderName:  m.SenderName,
		Type:        m.Type,
		StreamID:    m.StreamID,
		Stream:      m.StreamName,
		Subject:     m.Subject,
		Content:     m.Content,
		Timestamp:   m.Timestamp,
	}
	if m.Flags != "" {
		out.Flags = strings.Split(m.Flags, ",")
	}
	return out
}
