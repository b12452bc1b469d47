package sync

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/matheus3301/zfetch/internal/bus"
	"github.com/matheus3301/zfetch/internal/fetch"
	"github.com/matheus3301/zfetch/internal/store"
	"github.com/matheus3301/zfetch/internal/zulip"
)

func testDB(t *testing.T) *store.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := store.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func streamMessage(id int64, stream string, streamID int64, flags ...string) *zulip.Message {
	dr, _ := json.Marshal(stream)
	return &zulip.Message{
		ID:               id,
		SenderID:         7,
		SenderEmail:      "alice@example.com",
		SenderFullName:   "Alice",
		Type:             "stream",
		StreamID:         streamID,
		Subject:          "general",
		Content:          "hello world",
		Timestamp:        1000 + id,
		Flags:            flags,
		DisplayRecipient: dr,
	}
}

func privateMessage(id int64) *zulip.Message {
	return &zulip.Message{
		ID:               id,
		SenderID:         7,
		SenderEmail:      "alice@example.com",
		SenderFullName:   "Alice",
		Type:             "private",
		Content:          "psst",
		DisplayRecipient: json.RawMessage(`[{"id":7,"email":"alice@example.com","full_name":"Alice"},{"id":9,"email":"bob@example.com","full_name":"Bob"}]`),
	}
}

func TestSetMessageBooleans(t *testing.T) {
	e := NewEngine(testDB(t), bus.New(), nil)

	m := streamMessage(1, "design", 3, "read", "starred", "wildcard_mentioned", "has_alert_word")
	e.SetMessageBooleans(m)
	if m.Unread || !m.Starred || !m.Mentioned || !m.Alerted || m.Collapsed {
		t.Errorf("booleans = unread %v starred %v mentioned %v alerted %v collapsed %v",
			m.Unread, m.Starred, m.Mentioned, m.Alerted, m.Collapsed)
	}

	fresh := streamMessage(2, "design", 3)
	e.SetMessageBooleans(fresh)
	if !fresh.Unread {
		t.Error("message without read flag should be unread")
	}
}

func TestAddMessageMetadataReturnsCachedObject(t *testing.T) {
	e := NewEngine(testDB(t), bus.New(), nil)

	first := streamMessage(1, "design", 3)
	if got := e.AddMessageMetadata(first); got != first {
		t.Fatal("new message should be returned as-is")
	}
	again := streamMessage(1, "design", 3)
	if got := e.AddMessageMetadata(again); got != first {
		t.Error("refetched message should resolve to the cached object")
	}
	if m, ok := e.Message(1); !ok || m != first {
		t.Error("Message(1) did not return the cached object")
	}
}

func TestDirectoryFromLoadedMessages(t *testing.T) {
	e := NewEngine(testDB(t), bus.New(), nil)
	e.AddMessageMetadata(streamMessage(1, "Design", 3))
	e.AddMessageMetadata(privateMessage(2))

	if id, ok := e.UserIDByEmail("Bob@example.com"); !ok || id != 9 {
		t.Errorf("UserIDByEmail(bob) = %d, %v; want 9, true", id, ok)
	}
	if id, ok := e.StreamIDByName("design"); !ok || id != 3 {
		t.Errorf("StreamIDByName(design) = %d, %v; want 3, true", id, ok)
	}
	if _, ok := e.StreamIDByName("nowhere"); ok {
		t.Error("unknown stream resolved")
	}
}

func TestDirectoryFallsBackToDatabase(t *testing.T) {
	db := testDB(t)
	if err := db.UpsertStream(&store.Stream{ID: 11, Name: "ops"}); err != nil {
		t.Fatal(err)
	}
	e := NewEngine(db, bus.New(), nil)
	if id, ok := e.StreamIDByName("ops"); !ok || id != 11 {
		t.Errorf("StreamIDByName(ops) = %d, %v; want 11, true", id, ok)
	}
}

func TestUnreadCounts(t *testing.T) {
	e := NewEngine(testDB(t), bus.New(), nil)

	msgs := []*zulip.Message{
		streamMessage(1, "design", 3),
		streamMessage(2, "design", 3, "read"),
		streamMessage(3, "ops", 4),
		privateMessage(4),
	}
	for _, m := range msgs {
		e.SetMessageBooleans(m)
	}
	e.ProcessLoadedMessages(msgs)

	if got := e.UnreadCount(); got != 3 {
		t.Errorf("UnreadCount = %d, want 3", got)
	}
	byStream := e.UnreadByStream()
	if byStream[3] != 1 || byStream[4] != 1 || byStream[0] != 1 {
		t.Errorf("UnreadByStream = %v", byStream)
	}

	// Reloading a message after it was read clears it.
	read := streamMessage(1, "design", 3, "read")
	e.SetMessageBooleans(read)
	e.ProcessLoadedMessages([]*zulip.Message{read})
	if got := e.UnreadCount(); got != 2 {
		t.Errorf("UnreadCount after read = %d, want 2", got)
	}
}

func TestIngestBatch(t *testing.T) {
	db := testDB(t)
	b := bus.New()
	e := NewEngine(db, b, nil)

	ch, unsub := b.Subscribe("sync.", 10)
	defer unsub()

	msgs := []*zulip.Message{streamMessage(1, "design", 3, "read"), privateMessage(2)}
	if err := e.IngestBatch(msgs); err != nil {
		t.Fatal(err)
	}
	// Idempotent.
	if err := e.IngestBatch(msgs); err != nil {
		t.Fatal(err)
	}

	count, err := db.MessageCount()
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("MessageCount = %d, want 2", count)
	}
	stored, err := db.GetMessage(1)
	if err != nil {
		t.Fatal(err)
	}
	if stored == nil || stored.StreamName != "design" || stored.Flags != "read" {
		t.Errorf("stored message = %+v", stored)
	}
	if id, ok := db.UserIDByEmail("bob@example.com"); !ok || id != 9 {
		t.Errorf("recipient not stored: %d, %v", id, ok)
	}

	select {
	case evt := <-ch:
		if evt.Kind != bus.KindBatchSaved {
			t.Errorf("event kind = %q, want %s", evt.Kind, bus.KindBatchSaved)
		}
	default:
		t.Error("no sync.batch_saved event")
	}
}

func TestEnginePersistsProcessedBatches(t *testing.T) {
	db := testDB(t)
	b := bus.New()
	e := NewEngine(db, b, nil)
	e.Start(context.Background())
	defer e.Stop()

	saved, unsub := b.Subscribe(bus.KindBatchSaved, 10)
	defer unsub()

	b.Emit(bus.KindMessagesProcessed, fetch.Batch{
		List:     "home",
		Messages: []*zulip.Message{streamMessage(5, "design", 3), streamMessage(6, "design", 3)},
	})

	select {
	case <-saved:
	case <-time.After(2 * time.Second):
		t.Fatal("batch was not persisted")
	}
	count, err := db.MessageCount()
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("MessageCount = %d, want 2", count)
	}
}

func TestReconcilerPointer(t *testing.T) {
	db := testDB(t)
	r := NewReconciler(db, nil)

	if got := r.StartAnchor(""); got != zulip.AnchorFirstUnread {
		t.Errorf("StartAnchor with no checkpoint = %q, want first_unread", got)
	}
	if err := r.SavePointer(zulip.AnchorNewest); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := r.Pointer(); ok {
		t.Error("symbolic anchor should not be saved")
	}

	if err := r.SavePointer(zulip.AnchorID(444)); err != nil {
		t.Fatal(err)
	}
	a, ok, err := r.Pointer()
	if err != nil {
		t.Fatal(err)
	}
	if !ok || a != "444" {
		t.Errorf("Pointer = %q, %v; want 444, true", a, ok)
	}
	if got := r.StartAnchor(""); got != "444" {
		t.Errorf("StartAnchor = %q, want saved pointer", got)
	}
	if got := r.StartAnchor(zulip.AnchorID(10)); got != "10" {
		t.Errorf("StartAnchor(10) = %q, explicit anchor should win", got)
	}
}

func TestReconcilerIgnoresCorruptPointer(t *testing.T) {
	db := testDB(t)
	if err := db.SetState("pointer", "not-a-number"); err != nil {
		t.Fatal(err)
	}
	r := NewReconciler(db, nil)
	if _, ok, err := r.Pointer(); ok || err != nil {
		t.Errorf("Pointer = ok %v, err %v; want ignored", ok, err)
	}
}
