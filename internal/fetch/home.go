package fetch

import (
	"context"

	"github.com/matheus3301/zfetch/internal/bus"
	"github.com/matheus3301/zfetch/internal/msglist"
	"github.com/matheus3301/zfetch/internal/status"
	"github.com/matheus3301/zfetch/internal/zulip"
	"go.uber.org/zap"
)

// Initialize loads the home view around anchor, then keeps fetching newer
// messages until the newest one is known. Once it is, older history is
// backfilled whenever the user goes idle. An empty anchor uses the
// configured pointer.
//
// Initialize returns once the first request is issued.
func (f *Fetcher) Initialize(ctx context.Context, anchor zulip.Anchor) error {
	var err error
	if callErr := f.call(ctx, func() { err = f.initialize(anchor) }); callErr != nil {
		return callErr
	}
	return err
}

// initialize may retry after a failure, but only while the home view has
// never reached its newest message and no home batch is outstanding.
func (f *Fetcher) initialize(anchor zulip.Anchor) error {
	if f.loaded || !f.machine.CanInitialize() {
		return ErrAlreadyInitialized
	}
	if f.inFlight(f.home) {
		return ErrBatchInFlight
	}
	if anchor != "" {
		f.pointer = anchor
	}
	f.initialized = true
	f.transition(status.Loading)
	return f.loadMessages(loadOpts{
		list:      f.home,
		anchor:    f.pointer,
		numBefore: f.cfg.NumBeforePointer,
		numAfter:  f.cfg.NumAfterPointer,
		reason:    ReasonInitial,
		cont:      f.loadedHome,
		onError:   f.homeFailed,
	})
}

// loadedHome runs after each initial or forward-fill batch.
func (f *Fetcher) loadedHome(resp *zulip.MessagesResponse) {
	f.selectPointer(resp)
	if resp.FoundNewest {
		f.homeLoaded()
		return
	}

	f.transition(status.CatchingUp)
	anchor := f.frontfillAnchor(f.home)
	if n := len(resp.Messages); n > 0 {
		anchor = zulip.AnchorID(resp.Messages[n-1].ID)
	}
	_ = f.loadMessages(loadOpts{
		list:     f.home,
		anchor:   anchor,
		numAfter: f.cfg.CatchUpBatch,
		reason:   ReasonForwardFill,
		cont:     f.loadedHome,
		onError:  f.homeFailed,
	})
}

// selectPointer places the home pointer on the first batch that can hold it.
func (f *Fetcher) selectPointer(resp *zulip.MessagesResponse) {
	if f.home.SelectedID() != msglist.NoSelection || f.home.Empty() {
		return
	}
	id, ok := f.pointer.ID()
	if !ok && resp.Anchor > 0 {
		// The server resolved a symbolic anchor for us.
		id, ok = resp.Anchor, true
		f.pointer = zulip.AnchorID(id)
	}
	if !ok {
		id = f.home.Last().ID
	}
	f.home.Select(id, true)
}

func (f *Fetcher) homeLoaded() {
	if f.loaded {
		if f.machine.Current() == status.Degraded {
			f.transition(status.Ready)
		}
		return
	}
	f.loaded = true
	f.transition(status.Ready)
	f.logger.Info("home view loaded",
		zap.Int("messages", f.home.Len()),
		zap.Int64("pointer", f.home.SelectedID()),
	)
	f.emit(bus.KindHomeLoaded, f.home.Status().Snapshot())
	f.startBackfilling()
}

func (f *Fetcher) homeFailed(error) {
	f.transition(status.Degraded)
}

func (f *Fetcher) startBackfilling() {
	if f.backfilling {
		return
	}
	f.backfilling = true
	f.idle.Idle(f.cfg.BackfillIdle, func() {
		f.post(f.backfillOnIdle)
	})
}

func (f *Fetcher) backfillOnIdle() {
	if !f.canLoadOlder(f.home) {
		f.skipped("older")
		return
	}
	f.transition(status.Backfilling)
	_ = f.loadOlder(f.home, f.cfg.BackfillBatch, ReasonBackfill, func(*zulip.MessagesResponse) {
		if f.machine.Current() == status.Backfilling {
			f.transition(status.Ready)
		}
	}, f.homeFailed)
}

// frontfillAnchor is where a newer batch for l starts. The home view
// anchors on the all-messages list so muted or filtered messages do not
// cause refetching.
func (f *Fetcher) frontfillAnchor(l *msglist.List) zulip.Anchor {
	src := l
	if l == f.home {
		src = f.all
	}
	if last := src.Last(); last != nil {
		return zulip.AnchorID(last.ID)
	}
	return f.pointer
}

func (f *Fetcher) backfillAnchor(l *msglist.List) zulip.Anchor {
	src := l
	if l == f.home {
		src = f.all
	}
	if first := src.First(); first != nil {
		return zulip.AnchorID(first.ID)
	}
	return f.pointer
}
