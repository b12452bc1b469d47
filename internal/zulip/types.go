package zulip

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strconv"
)

// Anchor is the position a page of messages is requested around: a decimal
// message id or one of the symbolic anchors.
type Anchor string

const (
	AnchorNewest      Anchor = "newest"
	AnchorOldest      Anchor = "oldest"
	AnchorFirstUnread Anchor = "first_unread"
)

// AnchorID returns the anchor for a concrete message id.
func AnchorID(id int64) Anchor {
	return Anchor(strconv.FormatInt(id, 10))
}

// ID returns the numeric message id, if the anchor is one.
func (a Anchor) ID() (int64, bool) {
	id, err := strconv.ParseInt(string(a), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

func (a Anchor) Valid() bool {
	switch a {
	case AnchorNewest, AnchorOldest, AnchorFirstUnread:
		return true
	}
	id, ok := a.ID()
	return ok && id >= 0
}

// MessagesRequest is the query for GET /json/messages.
type MessagesRequest struct {
	Anchor         Anchor
	NumBefore      int
	NumAfter       int
	Narrow         string // JSON-encoded narrow; empty for none
	ClientGravatar bool
}

func (r MessagesRequest) Validate() error {
	if !r.Anchor.Valid() {
		return fmt.Errorf("invalid anchor %q", r.Anchor)
	}
	if r.NumBefore < 0 || r.NumAfter < 0 {
		return fmt.Errorf("negative page size (before=%d, after=%d)", r.NumBefore, r.NumAfter)
	}
	return nil
}

// Values encodes the request as query parameters.
func (r MessagesRequest) Values() url.Values {
	v := url.Values{}
	v.Set("anchor", string(r.Anchor))
	v.Set("num_before", strconv.Itoa(r.NumBefore))
	v.Set("num_after", strconv.Itoa(r.NumAfter))
	if r.Narrow != "" {
		v.Set("narrow", r.Narrow)
	}
	v.Set("client_gravatar", strconv.FormatBool(r.ClientGravatar))
	return v
}

// MessagesResponse is the decoded body of a successful /json/messages call.
type MessagesResponse struct {
	Result         string     `json:"result"`
	Msg            string     `json:"msg"`
	Messages       []*Message `json:"messages"`
	FoundNewest    bool       `json:"found_newest"`
	FoundOldest    bool       `json:"found_oldest"`
	FoundAnchor    bool       `json:"found_anchor"`
	HistoryLimited bool       `json:"history_limited"`
	Anchor         int64      `json:"anchor"`
}

// ErrMalformedResponse is returned when a 2xx body does not match the schema.
var ErrMalformedResponse = errors.New("malformed messages response")

func (r *MessagesResponse) Validate() error {
	if r.Result != "" && r.Result != "success" {
		return fmt.Errorf("%w: result %q", ErrMalformedResponse, r.Result)
	}
	if r.Messages == nil {
		return fmt.Errorf("%w: missing messages", ErrMalformedResponse)
	}
	for i, m := range r.Messages {
		if m == nil || m.ID <= 0 {
			return fmt.Errorf("%w: message %d has no id", ErrMalformedResponse, i)
		}
	}
	return nil
}

// Recipient is one entry of a private message's display_recipient.
type Recipient struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
}

// Message is a chat message as returned by the server. Fields the client
// does not interpret are kept in Raw and passed through to the store.
type Message struct {
	ID               int64           `json:"id"`
	SenderID         int64           `json:"sender_id"`
	SenderEmail      string          `json:"sender_email"`
	SenderFullName   string          `json:"sender_full_name"`
	Type             string          `json:"type"`
	StreamID         int64           `json:"stream_id,omitempty"`
	Subject          string          `json:"subject"`
	Content          string          `json:"content"`
	Timestamp        int64           `json:"timestamp"`
	Flags            []string        `json:"flags"`
	DisplayRecipient json.RawMessage `json:"display_recipient,omitempty"`

	// Set from Flags by the message store.
	Unread    bool `json:"-"`
	Starred   bool `json:"-"`
	Mentioned bool `json:"-"`
	Alerted   bool `json:"-"`
	Collapsed bool `json:"-"`

	Raw json.RawMessage `json:"-"`
}

func (m *Message) UnmarshalJSON(data []byte) error {
	type plain Message
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*m = Message(p)
	m.Raw = append(json.RawMessage(nil), data...)
	return nil
}

func (m *Message) IsPrivate() bool {
	return m.Type == "private"
}

// StreamName returns the stream name for stream messages.
func (m *Message) StreamName() string {
	if m.Type != "stream" {
		return ""
	}
	var name string
	if err := json.Unmarshal(m.DisplayRecipient, &name); err != nil {
		return ""
	}
	return name
}

// Recipients returns the participants of a private message.
func (m *Message) Recipients() []Recipient {
	if !m.IsPrivate() {
		return nil
	}
	var rs []Recipient
	if err := json.Unmarshal(m.DisplayRecipient, &rs); err != nil {
		return nil
	}
	return rs
}

func (m *Message) HasFlag(flag string) bool {
	return slices.Contains(m.Flags, flag)
}
