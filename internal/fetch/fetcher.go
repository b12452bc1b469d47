// Package fetch drives anchor-based pagination of message lists against the
// realm's messages endpoint.
//
// All list and FetchStatus state is owned by the goroutine running Run.
// Network requests run on their own goroutines and post their result back
// to that loop, as does the idle timer, so each result is applied exactly
// once and never concurrently with another mutation.
package fetch

import (
	"context"
	"errors"
	"time"

	"github.com/matheus3301/zfetch/internal/bus"
	"github.com/matheus3301/zfetch/internal/metrics"
	"github.com/matheus3301/zfetch/internal/msglist"
	"github.com/matheus3301/zfetch/internal/narrow"
	"github.com/matheus3301/zfetch/internal/status"
	"github.com/matheus3301/zfetch/internal/zulip"
	"go.uber.org/zap"
)

// Transport performs one GET against the messages endpoint. It must not
// retry on its own.
type Transport interface {
	GetMessages(ctx context.Context, req zulip.MessagesRequest) (*zulip.MessagesResponse, error)
}

// MessageStore is the client-side message cache fetched messages pass
// through before they reach a list.
type MessageStore interface {
	SetMessageBooleans(m *zulip.Message)
	AddMessageMetadata(m *zulip.Message) *zulip.Message
	ProcessLoadedMessages(msgs []*zulip.Message)
}

// IdleScheduler runs onIdle after timeout without user activity.
type IdleScheduler interface {
	Idle(timeout time.Duration, onIdle func())
}

// Reporter surfaces fetch failures to the user.
type Reporter interface {
	ShowError(err error)
	HideError()
}

// Config holds page sizes and timings.
type Config struct {
	NumBeforePointer int
	NumAfterPointer  int
	BackwardBatch    int
	ForwardBatch     int
	CatchUpBatch     int
	BackfillBatch    int
	NarrowBefore     int
	NarrowAfter      int
	BackfillIdle     time.Duration

	// Pointer is the anchor used when a list has no messages yet.
	Pointer zulip.Anchor
	// BaseNarrow is added to every request, e.g. a realm limited to one stream.
	BaseNarrow narrow.Filter
}

func DefaultConfig() Config {
	return Config{
		NumBeforePointer: 200,
		NumAfterPointer:  200,
		BackwardBatch:    100,
		ForwardBatch:     100,
		CatchUpBatch:     1000,
		BackfillBatch:    1000,
		NarrowBefore:     50,
		NarrowAfter:      50,
		BackfillIdle:     10 * time.Second,
		Pointer:          zulip.AnchorFirstUnread,
	}
}

// Deps are the collaborators of a Fetcher. Transport, Store and Idle are
// required; the rest may be nil. A nil Machine gets a private one.
type Deps struct {
	Transport Transport
	Store     MessageStore
	Idle      IdleScheduler
	Directory narrow.Directory
	Reporter  Reporter
	Bus       *bus.Bus
	Machine   *status.Machine
	Metrics   *metrics.FetchMetrics
	Logger    *zap.Logger
}

var (
	// ErrStopped is returned by calls made after Run has returned.
	ErrStopped = errors.New("fetcher stopped")
	// ErrAlreadyInitialized is returned by Initialize once the home view
	// is loading or loaded.
	ErrAlreadyInitialized = errors.New("home view already initialized")
	// ErrBatchInFlight is returned by Initialize while a batch for the home
	// view is outstanding.
	ErrBatchInFlight = errors.New("home view batch in flight")
)

// Fetcher orchestrates pagination for the home, all-messages and current
// lists.
type Fetcher struct {
	cfg       Config
	transport Transport
	store     MessageStore
	idle      IdleScheduler
	dir       narrow.Directory
	reporter  Reporter
	bus       *bus.Bus
	machine   *status.Machine
	metrics   *metrics.FetchMetrics
	logger    *zap.Logger
	encode    func(narrow.Filter, narrow.Directory) (string, error)

	// Owned by the run loop.
	home        *msglist.List
	all         *msglist.List
	current     *msglist.List
	pointer     zulip.Anchor
	initialized bool
	loaded      bool
	backfilling bool
	ctx         context.Context

	ops  chan func()
	quit chan struct{}
}

func New(cfg Config, deps Deps) *Fetcher {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	reporter := deps.Reporter
	if reporter == nil {
		reporter = nopReporter{}
	}
	machine := deps.Machine
	if machine == nil {
		machine = status.NewMachine(deps.Bus)
	}
	pointer := cfg.Pointer
	if pointer == "" {
		pointer = zulip.AnchorFirstUnread
	}
	home := msglist.New("home", nil)
	return &Fetcher{
		cfg:       cfg,
		transport: deps.Transport,
		store:     deps.Store,
		idle:      deps.Idle,
		dir:       deps.Directory,
		reporter:  reporter,
		bus:       deps.Bus,
		machine:   machine,
		metrics:   deps.Metrics,
		logger:    logger,
		encode:    narrow.Encode,
		home:      home,
		all:       msglist.New("all", nil),
		current:   home,
		pointer:   pointer,
		ctx:       context.Background(),
		ops:       make(chan func(), 64),
		quit:      make(chan struct{}),
	}
}

// Run processes fetch work until ctx is cancelled. It must be running for
// any other method to make progress.
func (f *Fetcher) Run(ctx context.Context) {
	defer close(f.quit)
	f.ctx = ctx

	var realtime <-chan bus.Event
	if f.bus != nil {
		ch, unsub := f.bus.Subscribe(bus.KindRealtimeMessage, 256)
		defer unsub()
		realtime = ch
	}

	for {
		select {
		case op := <-f.ops:
			op()
		case evt := <-realtime:
			f.handleRealtime(evt)
		case <-ctx.Done():
			return
		}
	}
}

// call runs fn on the loop and waits for it to finish.
func (f *Fetcher) call(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	op := func() {
		fn()
		close(done)
	}
	select {
	case f.ops <- op:
	case <-f.quit:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-f.quit:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// post queues fn on the loop without waiting.
func (f *Fetcher) post(fn func()) bool {
	select {
	case f.ops <- fn:
		return true
	case <-f.quit:
		return false
	}
}

// View gives read access to the lists from inside the loop.
type View struct {
	Home    *msglist.List
	All     *msglist.List
	Current *msglist.List
	Pointer zulip.Anchor
}

// List returns the list with the given name, or nil.
func (v View) List(name string) *msglist.List {
	switch name {
	case "", v.Current.Name():
		return v.Current
	case v.Home.Name():
		return v.Home
	case v.All.Name():
		return v.All
	}
	return nil
}

// Inspect runs fn on the loop. fn must not retain the lists or call back
// into the Fetcher.
func (f *Fetcher) Inspect(ctx context.Context, fn func(View)) error {
	return f.call(ctx, func() { fn(f.view()) })
}

func (f *Fetcher) transition(to status.State) {
	if err := f.machine.Transition(to); err != nil {
		f.logger.Debug("home status unchanged", zap.Error(err))
	}
}

func (f *Fetcher) emit(kind string, payload any) {
	if f.bus != nil {
		f.bus.Emit(kind, payload)
	}
}

type nopReporter struct{}

func (nopReporter) ShowError(error) {}
func (nopReporter) HideError()      {}
