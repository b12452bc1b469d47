package sync

import (
	"context"
	"fmt"
	"strings"
	stdsync "sync"

	"github.com/matheus3301/zfetch/internal/bus"
	"github.com/matheus3301/zfetch/internal/fetch"
	"github.com/matheus3301/zfetch/internal/store"
	"github.com/matheus3301/zfetch/internal/zulip"
	"go.uber.org/zap"
)

// Engine is the client-side message store. Fetched messages pass through it
// on the fetch loop, where it sets flag booleans, deduplicates message
// objects and tracks unread counts. Processed batches are persisted to the
// database from its own goroutine.
type Engine struct {
	db     *store.DB
	bus    *bus.Bus
	logger *zap.Logger
	cancel context.CancelFunc
	done   chan struct{}

	mu       stdsync.RWMutex
	messages map[int64]*zulip.Message
	unread   map[int64]int64 // message id -> stream id, 0 for private
	users    map[string]int64
	streams  map[string]int64
}

// NewEngine creates a new sync engine.
func NewEngine(db *store.DB, b *bus.Bus, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		db:       db,
		bus:      b,
		logger:   logger,
		messages: make(map[int64]*zulip.Message),
		unread:   make(map[int64]int64),
		users:    make(map[string]int64),
		streams:  make(map[string]int64),
	}
}

// Start persists processed batches until ctx is cancelled or Stop is called.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	e.done = make(chan struct{})
	ch, unsub := e.bus.Subscribe(bus.KindMessagesProcessed, 1024)

	go func() {
		defer close(e.done)
		defer unsub()
		for {
			select {
			case evt := <-ch:
				e.handleEvent(evt)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the engine and waits for the current batch to be written.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
		<-e.done
	}
}

func (e *Engine) handleEvent(evt bus.Event) {
	batch, ok := evt.Payload.(fetch.Batch)
	if !ok || len(batch.Messages) == 0 {
		return
	}
	if err := e.IngestBatch(batch.Messages); err != nil {
		e.logger.Error("failed to persist batch", zap.Error(err),
			zap.String("list", batch.List), zap.Int("count", len(batch.Messages)))
		return
	}
	e.logger.Debug("batch persisted", zap.String("list", batch.List), zap.Int("messages", len(batch.Messages)))
}

// IngestBatch writes messages and the users and streams they mention in a
// single transaction (idempotent).
func (e *Engine) IngestBatch(msgs []*zulip.Message) error {
	b := toStoreBatch(msgs)
	if err := e.db.SaveBatch(b); err != nil {
		return fmt.Errorf("save batch: %w", err)
	}
	e.bus.Emit(bus.KindBatchSaved, map[string]int{
		"messages_count": len(b.Messages),
		"users_count":    len(b.Users),
		"streams_count":  len(b.Streams),
	})
	return nil
}

// SetMessageBooleans derives the boolean fields from the server flags.
func (e *Engine) SetMessageBooleans(m *zulip.Message) {
	m.Unread = !m.HasFlag("read")
	m.Starred = m.HasFlag("starred")
	m.Mentioned = m.HasFlag("mentioned") || m.HasFlag("wildcard_mentioned")
	m.Alerted = m.HasFlag("has_alert_word")
	m.Collapsed = m.HasFlag("collapsed")
}

// AddMessageMetadata returns the canonical object for m's id, recording m
// if it is new. Its sender and stream are added to the directory.
func (e *Engine) AddMessageMetadata(m *zulip.Message) *zulip.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	if cached, ok := e.messages[m.ID]; ok {
		return cached
	}
	e.messages[m.ID] = m
	if m.SenderEmail != "" && m.SenderID != 0 {
		e.users[strings.ToLower(m.SenderEmail)] = m.SenderID
	}
	for _, r := range m.Recipients() {
		if r.Email != "" && r.ID != 0 {
			e.users[strings.ToLower(r.Email)] = r.ID
		}
	}
	if name := m.StreamName(); name != "" && m.StreamID != 0 {
		e.streams[strings.ToLower(name)] = m.StreamID
	}
	return m
}

// ProcessLoadedMessages updates unread counts.
func (e *Engine) ProcessLoadedMessages(msgs []*zulip.Message) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, m := range msgs {
		if m.Unread {
			e.unread[m.ID] = m.StreamID
		} else {
			delete(e.unread, m.ID)
		}
	}
}

// Message returns the cached message with the given id.
func (e *Engine) Message(id int64) (*zulip.Message, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	m, ok := e.messages[id]
	return m, ok
}

// UnreadCount returns the number of unread loaded messages.
func (e *Engine) UnreadCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.unread)
}

// UnreadByStream returns unread counts keyed by stream id. Private
// messages are counted under 0.
func (e *Engine) UnreadByStream() map[int64]int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[int64]int)
	for _, stream := range e.unread {
		out[stream]++
	}
	return out
}

// UserIDByEmail resolves from loaded messages first, then the database.
func (e *Engine) UserIDByEmail(email string) (int64, bool) {
	e.mu.RLock()
	id, ok := e.users[strings.ToLower(email)]
	e.mu.RUnlock()
	if ok {
		return id, true
	}
	return e.db.UserIDByEmail(email)
}

func (e *Engine) StreamIDByName(name string) (int64, bool) {
	e.mu.RLock()
	id, ok := e.streams[strings.ToLower(name)]
	e.mu.RUnlock()
	if ok {
		return id, true
	}
	return e.db.StreamIDByName(name)
}

func toStoreBatch(msgs []*zulip.Message) store.Batch {
	var b store.Batch
	seenUsers := make(map[int64]bool)
	seenStreams := make(map[int64]bool)
	addUser := func(u store.User) {
		if u.ID == 0 || seenUsers[u.ID] {
			return
		}
		seenUsers[u.ID] = true
		b.Users = append(b.Users, u)
	}

	for _, m := range msgs {
		sm := store.Message{
			ID:          m.ID,
			SenderID:    m.SenderID,
			SenderEmail: m.SenderEmail,
			SenderName:  m.SenderFullName,
			Type:        m.Type,
			StreamID:    m.StreamID,
			StreamName:  m.StreamName(),
			Subject:     m.Subject,
			Content:     m.Content,
			Timestamp:   m.Timestamp,
			Flags:       strings.Join(m.Flags, ","),
			Raw:         string(m.Raw),
		}
		b.Messages = append(b.Messages, sm)

		addUser(store.User{ID: m.SenderID, Email: m.SenderEmail, FullName: m.SenderFullName})
		for _, r := range m.Recipients() {
			addUser(store.User{ID: r.ID, Email: r.Email, FullName: r.FullName})
		}
		if sm.StreamID != 0 && sm.StreamName != "" && !seenStreams[sm.StreamID] {
			seenStreams[sm.StreamID] = true
			b.Streams = append(b.Streams, store.Stream{ID: sm.StreamID, Name: sm.StreamName})
		}
	}
	return b
}
