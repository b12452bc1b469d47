package bus

import "time"

// Event kinds. Subscribers filter on a prefix such as "fetch.".
const (
	KindFetchStarted        = "fetch.started"
	KindFetchFinished       = "fetch.finished"
	KindFetchFailed         = "fetch.failed"
	KindFetchHistoryLimited = "fetch.history_limited"
	KindMessagesProcessed   = "messages.processed"
	KindHomeLoaded          = "home.loaded"
	KindHomeStatusChanged   = "home.status_changed"
	KindRealtimeMessage     = "realtime.message"
	KindBatchSaved          = "sync.batch_saved"
	KindUIErrorShown        = "ui.error_shown"
	KindUIErrorHidden       = "ui.error_hidden"
)

// Event is a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}
