package fetch

import (
	"github.com/matheus3301/zfetch/internal/zulip"
)

// Reasons a request was issued.
const (
	ReasonInitial     = "initial"
	ReasonForwardFill = "forward_fill"
	ReasonBackfill    = "backfill"
	ReasonNewer       = "newer"
	ReasonOlder       = "older"
	ReasonNarrow      = "narrow"
)

// Request describes a fetch in fetch.* event payloads.
type Request struct {
	ID        string
	List      string
	Reason    string
	Anchor    zulip.Anchor
	NumBefore int
	NumAfter  int
	Narrow    string
}

// Direction is the metric label for the request: older, newer or both.
func (r Request) Direction() string {
	switch {
	case r.NumBefore > 0 && r.NumAfter > 0:
		return "both"
	case r.NumBefore > 0:
		return "older"
	default:
		return "newer"
	}
}

// Result is the payload of fetch.finished and fetch.failed.
type Result struct {
	Request
	Count          int
	FoundOldest    bool
	FoundNewest    bool
	HistoryLimited bool
	// Stale is set when the list stopped being current before the
	// response arrived and the messages were dropped.
	Stale bool
	Err   string
}

// Batch is the payload of messages.processed.
type Batch struct {
	List     string
	Messages []*zulip.Message
	// Live is set for messages that arrived through the event stream.
	Live bool
}
