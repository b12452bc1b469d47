package fetch

import (
	"context"

	"github.com/matheus3301/zfetch/internal/bus"
	"github.com/matheus3301/zfetch/internal/fetchstatus"
	"github.com/matheus3301/zfetch/internal/msglist"
	"github.com/matheus3301/zfetch/internal/status"
	"github.com/matheus3301/zfetch/internal/zulip"
	"go.uber.org/zap"
)

// AddNewMessages inserts messages received from the event stream. A list
// only takes them once it has loaded up to the newest message; until then
// its next newer batch will include them.
func (f *Fetcher) AddNewMessages(ctx context.Context, msgs []*zulip.Message) error {
	return f.call(ctx, func() { f.addNewMessages(msgs) })
}

func (f *Fetcher) handleRealtime(evt bus.Event) {
	switch p := evt.Payload.(type) {
	case *zulip.Message:
		f.addNewMessages([]*zulip.Message{p})
	case []*zulip.Message:
		f.addNewMessages(p)
	default:
		f.logger.Warn("unexpected realtime payload", zap.String("kind", evt.Kind))
	}
}

func (f *Fetcher) addNewMessages(msgs []*zulip.Message) {
	if len(msgs) == 0 {
		return
	}
	for i, m := range msgs {
		f.store.SetMessageBooleans(m)
		msgs[i] = f.store.AddMessageMetadata(m)
	}
	f.store.ProcessLoadedMessages(msgs)

	lists := []*msglist.List{f.all, f.home}
	if f.current != f.home {
		lists = append(lists, f.current)
	}
	for _, l := range lists {
		if !l.Status().HasFoundNewest() {
			continue
		}
		matching := msgs
		if l.Narrowed() {
			matching = nil
			for _, m := range msgs {
				if l.Filter().Match(m) {
					matching = append(matching, m)
				}
			}
		}
		if len(matching) == 0 {
			continue
		}
		info := l.AddMessages(matching, msglist.AddOpts{MessagesAreNew: true})
		if info.Live > 0 && l.SelectedID() == msglist.NoSelection {
			l.Select(l.Last().ID, false)
		}
	}
	f.observeLists()
	f.emit(bus.KindMessagesProcessed, Batch{List: f.current.Name(), Messages: msgs, Live: true})
}

// ListSnapshot describes one list.
type ListSnapshot struct {
	Name     string               `json:"name"`
	Narrow   string               `json:"narrow,omitempty"`
	Messages int                  `json:"messages"`
	FirstID  int64                `json:"first_id,omitempty"`
	LastID   int64                `json:"last_id,omitempty"`
	Selected int64                `json:"selected"`
	Fetch    fetchstatus.Snapshot `json:"fetch"`
}

// Snapshot describes the fetcher as a whole.
type Snapshot struct {
	State   status.State   `json:"state"`
	Pointer zulip.Anchor   `json:"pointer"`
	Current string         `json:"current"`
	Lists   []ListSnapshot `json:"lists"`
}

func (f *Fetcher) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := f.call(ctx, func() {
		snap = Snapshot{
			State:   f.machine.Current(),
			Pointer: f.pointer,
			Current: f.current.Name(),
		}
		lists := []*msglist.List{f.home, f.all}
		if f.current != f.home {
			lists = append(lists, f.current)
		}
		for _, l := range lists {
			snap.Lists = append(snap.Lists, snapshotList(l))
		}
	})
	return snap, err
}

func snapshotList(l *msglist.List) ListSnapshot {
	s := ListSnapshot{
		Name:     l.Name(),
		Narrow:   l.Filter().String(),
		Messages: l.Len(),
		Selected: l.SelectedID(),
		Fetch:    l.Status().Snapshot(),
	}
	if first := l.First(); first != nil {
		s.FirstID = first.ID
		s.LastID = l.Last().ID
	}
	return s
}
