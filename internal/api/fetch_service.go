package api

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/zfetch/internal/bus"
	"github.com/matheus3301/zfetch/internal/fetch"
	"github.com/matheus3301/zfetch/internal/msglist"
	"github.com/matheus3301/zfetch/internal/narrow"
	"github.com/matheus3301/zfetch/internal/store"
	"github.com/matheus3301/zfetch/internal/zulip"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// Fetcher is the part of *fetch.Fetcher the service drives.
type Fetcher interface {
	Snapshot(ctx context.Context) (fetch.Snapshot, error)
	Initialize(ctx context.Context, anchor zulip.Anchor) error
	LoadNewer(ctx context.Context, name string) (bool, error)
	LoadOlder(ctx context.Context, name string) (bool, error)
	Narrow(ctx context.Context, filter narrow.Filter, anchor zulip.Anchor) (*msglist.List, error)
	Unnarrow(ctx context.Context) error
}

// Cache is the local message store behind ListMessages and SearchMessages.
type Cache interface {
	ListMessages(streamID, beforeID int64, limit int) ([]store.Message, error)
	SearchMessages(query string, streamID int64, limit int) ([]store.SearchResult, error)
	MessageCount() (int64, error)
	StreamIDByName(name string) (int64, bool)
}

type UnreadCounter interface {
	UnreadCount() int
}

type ErrorState interface {
	Showing() (bool, string)
}

const (
	defaultPageSize = 50
	maxPageSize     = 1000
)

// FetchService implements zfetch.v1.FetchService.
type FetchService struct {
	session   string
	startedAt time.Time
	fetcher   Fetcher
	cache     Cache
	unread    UnreadCounter
	errors    ErrorState
	bus       *bus.Bus
	logger    *zap.Logger
}

// FetchServiceDeps groups the collaborators of a FetchService. Unread and
// Errors are optional.
type FetchServiceDeps struct {
	Fetcher Fetcher
	Cache   Cache
	Unread  UnreadCounter
	Errors  ErrorState
	Bus     *bus.Bus
	Logger  *zap.Logger
}

// NewFetchService creates the control service for one session.
func NewFetchService(session string, deps FetchServiceDeps) *FetchService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FetchService{
		session:   session,
		startedAt: time.Now(),
		fetcher:   deps.Fetcher,
		cache:     deps.Cache,
		unread:    deps.Unread,
		errors:    deps.Errors,
		bus:       deps.Bus,
		logger:    logger.Named("api"),
	}
}

func (s *FetchService) GetStatus(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	st, err := s.status(ctx)
	if err != nil {
		return nil, err
	}
	return reply(st)
}

func (s *FetchService) Initialize(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req InitializeRequest
	if err := parse(in, &req); err != nil {
		return nil, err
	}
	anchor := zulip.Anchor(req.Anchor)
	if anchor != "" && !anchor.Valid() {
		return nil, grpcstatus.Errorf(codes.InvalidArgument, "invalid anchor %q", req.Anchor)
	}
	if err := s.fetcher.Initialize(ctx, anchor); err != nil {
		return nil, rpcError("initialize", err)
	}
	st, err := s.status(ctx)
	if err != nil {
		return nil, err
	}
	return reply(st)
}

func (s *FetchService) LoadNewer(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.load(ctx, in, "load newer", s.fetcher.LoadNewer)
}

func (s *FetchService) LoadOlder(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.load(ctx, in, "load older", s.fetcher.LoadOlder)
}

func (s *FetchService) load(ctx context.Context, in *structpb.Struct, op string, fn func(context.Context, string) (bool, error)) (*structpb.Struct, error) {
	var req LoadRequest
	if err := parse(in, &req); err != nil {
		return nil, err
	}
	started, err := fn(ctx, req.List)
	if err != nil {
		return nil, rpcError(op, err)
	}
	return reply(LoadReply{Started: started})
}

func (s *FetchService) Narrow(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req NarrowRequest
	if err := parse(in, &req); err != nil {
		return nil, err
	}
	filter, err := narrow.Parse(req.Narrow)
	if err != nil {
		return nil, grpcstatus.Errorf(codes.InvalidArgument, "%v", err)
	}
	if len(filter) == 0 {
		return nil, grpcstatus.Error(codes.InvalidArgument, "narrow is required")
	}
	anchor := zulip.Anchor(req.Anchor)
	if anchor != "" && !anchor.Valid() {
		return nil, grpcstatus.Errorf(codes.InvalidArgument, "invalid anchor %q", req.Anchor)
	}
	if _, err := s.fetcher.Narrow(ctx, filter, anchor); err != nil {
		return nil, rpcError("narrow", err)
	}
	s.logger.Debug("narrowed", zap.String("narrow", filter.String()))
	st, err := s.status(ctx)
	if err != nil {
		return nil, err
	}
	return reply(st)
}

func (s *FetchService) Unnarrow(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	if err := s.fetcher.Unnarrow(ctx); err != nil {
		return nil, rpcError("unnarrow", err)
	}
	st, err := s.status(ctx)
	if err != nil {
		return nil, err
	}
	return reply(st)
}

func (s *FetchService) ListMessages(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req ListMessagesRequest
	if err := parse(in, &req); err != nil {
		return nil, err
	}
	streamID, err := s.streamID(req.Stream)
	if err != nil {
		return nil, err
	}
	limit := pageSize(req.Limit)
	msgs, err := s.cache.ListMessages(streamID, req.BeforeID, limit)
	if err != nil {
		return nil, grpcstatus.Errorf(codes.Internal, "list messages: %v", err)
	}
	out := MessagesReply{Messages: make([]Message, 0, len(msgs)), HasMore: len(msgs) == limit}
	for i := range msgs {
		out.Messages = append(out.Messages, messageFromStore(&msgs[i]))
	}
	return reply(out)
}

func (s *FetchService) SearchMessages(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req SearchRequest
	if err := parse(in, &req); err != nil {
		return nil, err
	}
	if req.Query == "" {
		return nil, grpcstatus.Error(codes.InvalidArgument, "query is required")
	}
	streamID, err := s.streamID(req.Stream)
	if err != nil {
		return nil, err
	}
	limit := pageSize(req.Limit)
	results, err := s.cache.SearchMessages(req.Query, streamID, limit)
	if err != nil {
		return nil, grpcstatus.Errorf(codes.Internal, "search messages: %v", err)
	}
	out := SearchReply{Results: make([]SearchHit, 0, len(results)), HasMore: len(results) == limit}
	for i := range results {
		out.Results = append(out.Results, SearchHit{
			Message: messageFromStore(&results[i].Message),
			Snippet: results[i].Snippet,
		})
	}
	return reply(out)
}

func (s *FetchService) WatchEvents(in *structpb.Struct, stream grpc.ServerStream) error {
	var req WatchRequest
	if err := parse(in, &req); err != nil {
		return err
	}
	ch, unsub := s.bus.Subscribe(req.Prefix, 256)
	defer unsub()

	for {
		select {
		case evt := <-ch:
			msg, err := encode(Event{
				ID:           uuid.New().String(),
				Session:      s.session,
				Kind:         evt.Kind,
				OccurredAtMS: evt.Timestamp.UnixMilli(),
				Payload:      eventPayload(evt),
			})
			if err != nil {
				s.logger.Warn("dropping unencodable event", zap.String("kind", evt.Kind), zap.Error(err))
				continue
			}
			if err := stream.SendMsg(msg); err != nil {
				return err
			}
		case <-stream.Context().Done():
			return nil
		}
	}
}

func (s *FetchService) status(ctx context.Context) (StatusReply, error) {
	snap, err := s.fetcher.Snapshot(ctx)
	if err != nil {
		return StatusReply{}, rpcError("status", err)
	}
	st := StatusReply{
		Session:  s.session,
		UptimeMS: time.Since(s.startedAt).Milliseconds(),
		Snapshot: snap,
	}
	if s.cache != nil {
		if n, err := s.cache.MessageCount(); err == nil {
			st.CachedMessages = n
		}
	}
	if s.unread != nil {
		st.Unread = s.unread.UnreadCount()
	}
	if s.errors != nil {
		if showing, msg := s.errors.Showing(); showing {
			st.Error = msg
		}
	}
	return st, nil
}

func (s *FetchService) streamID(name string) (int64, error) {
	if name == "" {
		return 0, nil
	}
	id, ok := s.cache.StreamIDByName(name)
	if !ok {
		return 0, grpcstatus.Errorf(codes.NotFound, "unknown stream %q", name)
	}
	return id, nil
}

// pageSize applies the default to an unset limit and caps the rest.
func pageSize(n int) int {
	if n <= 0 {
		return defaultPageSize
	}
	return min(n, maxPageSize)
}

// rpcError maps fetcher errors onto gRPC codes.
func rpcError(op string, err error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return grpcstatus.FromContextError(err).Err()
	case errors.Is(err, fetch.ErrStopped):
		return grpcstatus.Errorf(codes.Unavailable, "%s: %v", op, err)
	case errors.Is(err, fetch.ErrAlreadyInitialized):
		return grpcstatus.Errorf(codes.FailedPrecondition, "%s: %v", op, err)
	case errors.Is(err, fetch.ErrBatchInFlight):
		return grpcstatus.Errorf(codes.Aborted, "%s: %v", op, err)
	case errors.Is(err, fetch.ErrNoList):
		return grpcstatus.Errorf(codes.NotFound, "%s: %v", op, err)
	default:
		return grpcstatus.Errorf(codes.Internal, "%s: %v", op, err)
	}
}
