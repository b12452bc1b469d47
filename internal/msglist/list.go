package msglist

import (
	"sort"

	"github.com/matheus3301/zfetch/internal/fetchstatus"
	"github.com/matheus3301/zfetch/internal/narrow"
	"github.com/matheus3301/zfetch/internal/zulip"
)

// NoSelection is the selected id of a list with no pointer yet.
const NoSelection int64 = -1

// AddOpts controls how a batch is merged.
type AddOpts struct {
	MessagesAreNew bool
}

// RenderInfo says where an added batch landed relative to the existing
// messages.
type RenderInfo struct {
	Appended  int
	Prepended int
	Inserted  int
	Dupes     int

	// Live counts appended messages that arrived as new rather than from
	// history; Rerender is set when messages landed inside the list.
	Live     int
	Rerender bool
}

func (r RenderInfo) Added() int {
	return r.Appended + r.Prepended + r.Inserted
}

// List is an id-ordered, de-duplicated view over messages, with the
// FetchStatus that paginates it. Not safe for concurrent use.
type List struct {
	name     string
	filter   narrow.Filter
	messages []*zulip.Message
	byID     map[int64]*zulip.Message
	selected int64
	status   *fetchstatus.FetchStatus
}

// New creates an empty list. A non-empty filter makes the list narrowed.
func New(name string, filter narrow.Filter) *List {
	return &List{
		name:     name,
		filter:   filter,
		byID:     make(map[int64]*zulip.Message),
		selected: NoSelection,
		status:   fetchstatus.New(),
	}
}

func (l *List) Name() string                     { return l.name }
func (l *List) Filter() narrow.Filter            { return l.filter }
func (l *List) Narrowed() bool                   { return len(l.filter) > 0 }
func (l *List) Status() *fetchstatus.FetchStatus { return l.status }
func (l *List) Len() int                         { return len(l.messages) }
func (l *List) Empty() bool                      { return len(l.messages) == 0 }

func (l *List) Get(id int64) (*zulip.Message, bool) {
	m, ok := l.byID[id]
	return m, ok
}

func (l *List) First() *zulip.Message {
	if l.Empty() {
		return nil
	}
	return l.messages[0]
}

func (l *List) Last() *zulip.Message {
	if l.Empty() {
		return nil
	}
	return l.messages[len(l.messages)-1]
}

// All returns a copy of the messages in id order.
func (l *List) All() []*zulip.Message {
	return append([]*zulip.Message(nil), l.messages...)
}

// Tail returns up to limit of the newest messages, in id order.
func (l *List) Tail(limit int) []*zulip.Message {
	if limit <= 0 || limit >= len(l.messages) {
		return l.All()
	}
	return append([]*zulip.Message(nil), l.messages[len(l.messages)-limit:]...)
}

// AddMessages merges msgs into the list. Messages already present are
// skipped. New messages that belong after the current tail are appended;
// everything else is placed by id.
func (l *List) AddMessages(msgs []*zulip.Message, opts AddOpts) RenderInfo {
	var info RenderInfo
	var fresh []*zulip.Message
	for _, m := range msgs {
		if m == nil {
			continue
		}
		if _, dup := l.byID[m.ID]; dup {
			info.Dupes++
			continue
		}
		l.byID[m.ID] = m
		fresh = append(fresh, m)
	}
	if len(fresh) == 0 {
		return info
	}
	sort.Slice(fresh, func(i, j int) bool { return fresh[i].ID < fresh[j].ID })

	var top, bottom, middle []*zulip.Message
	for _, m := range fresh {
		switch {
		case l.Empty():
			bottom = append(bottom, m)
		case m.ID > l.Last().ID:
			bottom = append(bottom, m)
		case m.ID < l.First().ID:
			top = append(top, m)
		default:
			middle = append(middle, m)
		}
	}

	if len(middle) > 0 {
		l.messages = append(l.messages, middle...)
		sort.Slice(l.messages, func(i, j int) bool { return l.messages[i].ID < l.messages[j].ID })
		info.Inserted = len(middle)
		info.Rerender = true
	}
	if len(top) > 0 {
		l.messages = append(top, l.messages...)
		info.Prepended = len(top)
	}
	if len(bottom) > 0 {
		l.messages = append(l.messages, bottom...)
		info.Appended = len(bottom)
		if opts.MessagesAreNew {
			info.Live = len(bottom)
		}
	}
	return info
}

func (l *List) SelectedID() int64 {
	return l.selected
}

// Select moves the pointer to id. With useClosest, an id not in the list
// selects the nearest message after it, or the last message.
func (l *List) Select(id int64, useClosest bool) bool {
	if _, ok := l.byID[id]; ok {
		l.selected = id
		return true
	}
	if !useClosest || l.Empty() {
		return false
	}
	i := sort.Search(len(l.messages), func(i int) bool { return l.messages[i].ID >= id })
	if i == len(l.messages) {
		i--
	}
	l.selected = l.messages[i].ID
	return true
}

// Reset drops all messages and the pointer and resets the fetch status.
func (l *List) Reset() {
	l.messages = nil
	l.byID = make(map[int64]*zulip.Message)
	l.selected = NoSelection
	l.status.Reset()
}
