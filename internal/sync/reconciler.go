package sync

import (
	"strconv"

	"github.com/matheus3301/zfetch/internal/store"
	"github.com/matheus3301/zfetch/internal/zulip"
	"go.uber.org/zap"
)

const pointerKey = "pointer"

// Reconciler manages sync checkpoints between daemon runs.
type Reconciler struct {
	db     *store.DB
	logger *zap.Logger
}

// NewReconciler creates a new reconciler.
func NewReconciler(db *store.DB, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{db: db, logger: logger}
}

// SavePointer records the home pointer. Symbolic anchors are not saved.
func (r *Reconciler) SavePointer(a zulip.Anchor) error {
	id, ok := a.ID()
	if !ok {
		return nil
	}
	return r.db.SetState(pointerKey, strconv.FormatInt(id, 10))
}

// Pointer returns the saved home pointer, if any.
func (r *Reconciler) Pointer() (zulip.Anchor, bool, error) {
	v, ok, err := r.db.GetState(pointerKey)
	if err != nil || !ok {
		return "", false, err
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		r.logger.Warn("ignoring corrupt pointer checkpoint", zap.String("value", v))
		return "", false, nil
	}
	return zulip.AnchorID(id), true, nil
}

// StartAnchor picks the anchor for the initial load: an explicit anchor
// wins, then the saved pointer, then the first unread message.
func (r *Reconciler) StartAnchor(explicit zulip.Anchor) zulip.Anchor {
	if explicit != "" {
		return explicit
	}
	a, ok, err := r.Pointer()
	if err != nil {
		r.logger.Warn("failed to read pointer checkpoint", zap.Error(err))
	}
	if ok {
		return a
	}
	return zulip.AnchorFirstUnread
}
