package fetch

import (
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/zfetch/internal/bus"
	"github.com/matheus3301/zfetch/internal/msglist"
	"github.com/matheus3301/zfetch/internal/zulip"
	"go.uber.org/zap"
)

type loadOpts struct {
	list      *msglist.List
	anchor    zulip.Anchor
	numBefore int
	numAfter  int
	reason    string
	cont      func(resp *zulip.MessagesResponse)
	onError   func(err error)
}

// loadMessages marks the batches in flight and issues the request. Must be
// called on the loop. An error means no request was issued; o.onError has
// already run for it.
func (f *Fetcher) loadMessages(o loadOpts) error {
	narrowParam, err := f.narrowParam(o.list)
	if err != nil {
		f.logger.Error("encode narrow", zap.String("list", o.list.Name()), zap.Error(err))
		if o.onError != nil {
			o.onError(err)
		}
		return err
	}

	req := Request{
		ID:        uuid.NewString(),
		List:      o.list.Name(),
		Reason:    o.reason,
		Anchor:    o.anchor,
		NumBefore: o.numBefore,
		NumAfter:  o.numAfter,
		Narrow:    narrowParam,
	}
	for _, l := range f.statusLists(o.list) {
		if o.numBefore > 0 {
			l.Status().StartOlderBatch()
		}
		if o.numAfter > 0 {
			l.Status().StartNewerBatch()
		}
	}

	wire := zulip.MessagesRequest{
		Anchor:         o.anchor,
		NumBefore:      o.numBefore,
		NumAfter:       o.numAfter,
		Narrow:         narrowParam,
		ClientGravatar: true,
	}
	if f.metrics != nil {
		f.metrics.InFlight.WithLabelValues(req.Direction()).Inc()
	}
	f.logger.Debug("fetching messages",
		zap.String("request_id", req.ID),
		zap.String("list", req.List),
		zap.String("reason", req.Reason),
		zap.String("anchor", string(req.Anchor)),
		zap.Int("num_before", req.NumBefore),
		zap.Int("num_after", req.NumAfter),
	)
	f.emit(bus.KindFetchStarted, req)

	ctx := f.ctx
	go func() {
		start := time.Now()
		resp, err := f.transport.GetMessages(ctx, wire)
		elapsed := time.Since(start)
		f.post(func() { f.finish(o, req, resp, err, elapsed) })
	}()
	return nil
}

// statusLists returns the lists whose FetchStatus tracks a request for l.
// Home batches also move the all-messages list.
func (f *Fetcher) statusLists(l *msglist.List) []*msglist.List {
	if l == f.home {
		return []*msglist.List{f.home, f.all}
	}
	return []*msglist.List{l}
}

// canLoadOlder reports whether an older batch for l may start. l must not
// have found its oldest message, and no list the batch would move may have
// an older batch in flight.
func (f *Fetcher) canLoadOlder(l *msglist.List) bool {
	if !l.Status().CanLoadOlder() {
		return false
	}
	for _, s := range f.statusLists(l) {
		if s.Status().LoadingOlder() {
			return false
		}
	}
	return true
}

func (f *Fetcher) canLoadNewer(l *msglist.List) bool {
	if !l.Status().CanLoadNewer() {
		return false
	}
	for _, s := range f.statusLists(l) {
		if s.Status().LoadingNewer() {
			return false
		}
	}
	return true
}

// inFlight reports whether any batch that moves l is outstanding.
func (f *Fetcher) inFlight(l *msglist.List) bool {
	for _, s := range f.statusLists(l) {
		if s.Status().LoadingOlder() || s.Status().LoadingNewer() {
			return true
		}
	}
	return false
}

func (f *Fetcher) narrowParam(l *msglist.List) (string, error) {
	if l.Narrowed() {
		terms := append(slices.Clone(l.Filter()), f.cfg.BaseNarrow...)
		return f.encode(terms, f.dir)
	}
	if l == f.home && len(f.cfg.BaseNarrow) > 0 {
		return f.encode(f.cfg.BaseNarrow, nil)
	}
	return "", nil
}

func (f *Fetcher) finish(o loadOpts, req Request, resp *zulip.MessagesResponse, err error, elapsed time.Duration) {
	dir := req.Direction()
	if f.metrics != nil {
		f.metrics.InFlight.WithLabelValues(dir).Dec()
		f.metrics.Duration.WithLabelValues(dir).Observe(elapsed.Seconds())
	}
	stale := o.list.Narrowed() && o.list != f.current

	if err != nil {
		for _, l := range f.statusLists(o.list) {
			if o.numBefore > 0 {
				l.Status().AbortOlderBatch()
			}
			if o.numAfter > 0 {
				l.Status().AbortNewerBatch()
			}
		}
		f.fail(o, req, err, stale)
		return
	}

	for _, l := range f.statusLists(o.list) {
		if o.numBefore > 0 {
			l.Status().FinishOlderBatch(resp.FoundOldest, resp.HistoryLimited)
		}
		if o.numAfter > 0 {
			l.Status().FinishNewerBatch(resp.FoundNewest)
		}
	}
	res := Result{
		Request:        req,
		Count:          len(resp.Messages),
		FoundOldest:    resp.FoundOldest,
		FoundNewest:    resp.FoundNewest,
		HistoryLimited: resp.HistoryLimited,
	}
	if f.metrics != nil {
		f.metrics.Requests.WithLabelValues(dir, "success").Inc()
		f.metrics.BatchSize.WithLabelValues(dir).Observe(float64(len(resp.Messages)))
	}

	if stale {
		if f.metrics != nil {
			f.metrics.StaleResults.Inc()
		}
		f.logger.Debug("dropping result for inactive list",
			zap.String("request_id", req.ID), zap.String("list", req.List))
		res.Stale = true
		f.emit(bus.KindFetchFinished, res)
		return
	}

	f.reporter.HideError()
	if o.numBefore > 0 && resp.HistoryLimited {
		f.emit(bus.KindFetchHistoryLimited, res)
	}
	f.process(o.list, resp.Messages)
	if o.cont != nil {
		o.cont(resp)
	}
	f.logger.Debug("fetched messages",
		zap.String("request_id", req.ID),
		zap.Int("count", res.Count),
		zap.Bool("found_oldest", res.FoundOldest),
		zap.Bool("found_newest", res.FoundNewest),
		zap.Duration("elapsed", elapsed),
	)
	f.emit(bus.KindFetchFinished, res)
}

func (f *Fetcher) fail(o loadOpts, req Request, err error, stale bool) {
	res := Result{Request: req, Err: err.Error(), Stale: stale}
	result := "error"
	switch {
	case stale:
		f.logger.Debug("request for inactive list failed",
			zap.String("request_id", req.ID), zap.Error(err))
	case zulip.IsBadRequest(err):
		// The request itself is wrong, so the connection is fine.
		result = "bad_request"
		f.logger.Warn("messages request rejected",
			zap.String("request_id", req.ID),
			zap.String("list", req.List),
			zap.String("narrow", req.Narrow),
			zap.Error(err),
		)
	default:
		f.logger.Error("messages request failed",
			zap.String("request_id", req.ID),
			zap.String("list", req.List),
			zap.Error(err),
		)
		f.reporter.ShowError(err)
	}
	if f.metrics != nil {
		f.metrics.Requests.WithLabelValues(req.Direction(), result).Inc()
	}
	if !stale && o.onError != nil {
		o.onError(err)
	}
	f.emit(bus.KindFetchFailed, res)
}

// process runs fetched messages through the store and adds them to l.
func (f *Fetcher) process(l *msglist.List, msgs []*zulip.Message) {
	for i, m := range msgs {
		f.store.SetMessageBooleans(m)
		msgs[i] = f.store.AddMessageMetadata(m)
	}
	f.store.ProcessLoadedMessages(msgs)

	if len(msgs) > 0 {
		if l == f.home {
			f.all.AddMessages(msgs, msglist.AddOpts{})
		}
		l.AddMessages(msgs, msglist.AddOpts{})
	}
	f.observeLists()
	f.emit(bus.KindMessagesProcessed, Batch{List: l.Name(), Messages: msgs})
}

func (f *Fetcher) observeLists() {
	if f.metrics == nil {
		return
	}
	f.metrics.ListMessages.WithLabelValues(f.home.Name()).Set(float64(f.home.Len()))
	f.metrics.ListMessages.WithLabelValues(f.all.Name()).Set(float64(f.all.Len()))
	if f.current != f.home {
		f.metrics.ListMessages.WithLabelValues(f.current.Name()).Set(float64(f.current.Len()))
	}
}

func (f *Fetcher) skipped(direction string) {
	if f.metrics != nil {
		f.metrics.SkippedLoads.WithLabelValues(direction).Inc()
	}
}
