package fetch

import (
	"context"
	"errors"
	"fmt"

	"github.com/matheus3301/zfetch/internal/msglist"
	"github.com/matheus3301/zfetch/internal/narrow"
	"github.com/matheus3301/zfetch/internal/zulip"
	"go.uber.org/zap"
)

// ErrNoList is returned when an operation names a list the fetcher does
// not hold.
var ErrNoList = errors.New("no such list")

// MaybeLoadNewer fetches the next page after the end of l unless a newer
// batch is in flight or the newest message is already loaded. It reports
// whether a request was issued.
func (f *Fetcher) MaybeLoadNewer(ctx context.Context, l *msglist.List) (bool, error) {
	var issued bool
	err := f.call(ctx, func() { issued = f.maybeLoadNewer(l) })
	return issued, err
}

// MaybeLoadOlder is MaybeLoadNewer towards the start of l.
func (f *Fetcher) MaybeLoadOlder(ctx context.Context, l *msglist.List) (bool, error) {
	var issued bool
	err := f.call(ctx, func() { issued = f.maybeLoadOlder(l) })
	return issued, err
}

// LoadNewer and LoadOlder resolve a list by name; "" is the current list.
func (f *Fetcher) LoadNewer(ctx context.Context, name string) (bool, error) {
	return f.loadByName(ctx, name, f.maybeLoadNewer)
}

func (f *Fetcher) LoadOlder(ctx context.Context, name string) (bool, error) {
	return f.loadByName(ctx, name, f.maybeLoadOlder)
}

func (f *Fetcher) loadByName(ctx context.Context, name string, load func(*msglist.List) bool) (bool, error) {
	var issued bool
	var found bool
	err := f.call(ctx, func() {
		l := f.view().List(name)
		if l == nil {
			return
		}
		found = true
		issued = load(l)
	})
	if err != nil {
		return false, err
	}
	if !found {
		return false, ErrNoList
	}
	return issued, nil
}

func (f *Fetcher) maybeLoadNewer(l *msglist.List) bool {
	if !f.canLoadNewer(l) {
		f.skipped("newer")
		return false
	}
	err := f.loadMessages(loadOpts{
		list:     l,
		anchor:   f.frontfillAnchor(l),
		numAfter: f.cfg.ForwardBatch,
		reason:   ReasonNewer,
		cont: func(resp *zulip.MessagesResponse) {
			if l == f.home && f.initialized && resp.FoundNewest {
				f.homeLoaded()
			}
		},
	})
	return err == nil
}

func (f *Fetcher) maybeLoadOlder(l *msglist.List) bool {
	if !f.canLoadOlder(l) {
		f.skipped("older")
		return false
	}
	return f.loadOlder(l, f.cfg.BackwardBatch, ReasonOlder, nil, nil) == nil
}

func (f *Fetcher) loadOlder(l *msglist.List, n int, reason string, cont func(*zulip.MessagesResponse), onError func(error)) error {
	return f.loadMessages(loadOpts{
		list:      l,
		anchor:    f.backfillAnchor(l),
		numBefore: n,
		reason:    reason,
		cont:      cont,
		onError:   onError,
	})
}

// Narrow makes a new list for filter current and loads the messages around
// anchor. An empty anchor uses the home pointer.
func (f *Fetcher) Narrow(ctx context.Context, filter narrow.Filter, anchor zulip.Anchor) (*msglist.List, error) {
	if len(filter) == 0 {
		return nil, errors.New("narrow: empty filter")
	}
	var l *msglist.List
	var loadErr error
	err := f.call(ctx, func() {
		l = msglist.New("narrowed", filter)
		if anchor == "" {
			anchor = f.narrowAnchor()
		}
		f.setCurrent(l)
		loadErr = f.loadMessages(loadOpts{
			list:      l,
			anchor:    anchor,
			numBefore: f.cfg.NarrowBefore,
			numAfter:  f.cfg.NarrowAfter,
			reason:    ReasonNarrow,
			cont: func(*zulip.MessagesResponse) {
				if l.SelectedID() != msglist.NoSelection || l.Empty() {
					return
				}
				if id, ok := anchor.ID(); ok {
					l.Select(id, true)
					return
				}
				l.Select(l.Last().ID, false)
			},
		})
	})
	if err != nil {
		return nil, err
	}
	if loadErr != nil {
		return l, fmt.Errorf("narrow: %w", loadErr)
	}
	return l, nil
}

func (f *Fetcher) narrowAnchor() zulip.Anchor {
	if id := f.home.SelectedID(); id != msglist.NoSelection {
		return zulip.AnchorID(id)
	}
	return f.pointer
}

// SetCurrent makes l the list shown to the user. Results for narrowed lists
// that are not current are dropped when they arrive.
func (f *Fetcher) SetCurrent(ctx context.Context, l *msglist.List) error {
	return f.call(ctx, func() { f.setCurrent(l) })
}

// Unnarrow returns to the home view.
func (f *Fetcher) Unnarrow(ctx context.Context) error {
	return f.call(ctx, func() { f.setCurrent(f.home) })
}

func (f *Fetcher) setCurrent(l *msglist.List) {
	if l == f.current {
		return
	}
	if f.current.Narrowed() && f.metrics != nil {
		f.metrics.ListMessages.DeleteLabelValues(f.current.Name())
	}
	f.logger.Debug("current list changed",
		zap.String("from", f.current.Filter().String()),
		zap.String("to", l.Filter().String()),
	)
	f.current = l
	f.observeLists()
}

func (f *Fetcher) view() View {
	return View{Home: f.home, All: f.all, Current: f.current, Pointer: f.pointer}
}
