package fetchstatus

// FetchStatus tracks in-flight pagination and known boundaries for one
// message list. It is owned by the goroutine that owns the list and is not
// safe for concurrent use.
type FetchStatus struct {
	loadingOlder   bool
	loadingNewer   bool
	foundOldest    bool
	foundNewest    bool
	historyLimited bool
}

// Snapshot is a point-in-time copy of a FetchStatus.
type Snapshot struct {
	LoadingOlder   bool `json:"loading_older"`
	LoadingNewer   bool `json:"loading_newer"`
	FoundOldest    bool `json:"found_oldest"`
	FoundNewest    bool `json:"found_newest"`
	HistoryLimited bool `json:"history_limited"`
}

// New returns a FetchStatus with nothing loading and no boundary found.
func New() *FetchStatus {
	return &FetchStatus{}
}

// StartOlderBatch marks an older-direction request as in flight.
// Callers check CanLoadOlder first.
func (s *FetchStatus) StartOlderBatch() {
	s.loadingOlder = true
}

// FinishOlderBatch clears the older in-flight flag and records what the
// server reported. foundOldest never goes back to false.
func (s *FetchStatus) FinishOlderBatch(foundOldest, historyLimited bool) {
	s.loadingOlder = false
	s.foundOldest = s.foundOldest || foundOldest
	s.historyLimited = historyLimited
}

// AbortOlderBatch clears the older in-flight flag after a failed request.
func (s *FetchStatus) AbortOlderBatch() {
	s.loadingOlder = false
}

func (s *FetchStatus) CanLoadOlder() bool {
	return !s.loadingOlder && !s.foundOldest
}

// LoadingOlder reports whether an older batch is in flight.
func (s *FetchStatus) LoadingOlder() bool {
	return s.loadingOlder
}

func (s *FetchStatus) HistoryLimited() bool {
	return s.historyLimited
}

func (s *FetchStatus) HasFoundOldest() bool {
	return s.foundOldest
}

// StartNewerBatch marks a newer-direction request as in flight.
// Callers check CanLoadNewer first.
func (s *FetchStatus) StartNewerBatch() {
	s.loadingNewer = true
}

// FinishNewerBatch clears the newer in-flight flag. foundNewest is sticky.
func (s *FetchStatus) FinishNewerBatch(foundNewest bool) {
	s.loadingNewer = false
	s.foundNewest = s.foundNewest || foundNewest
}

// AbortNewerBatch clears the newer in-flight flag after a failed request.
func (s *FetchStatus) AbortNewerBatch() {
	s.loadingNewer = false
}

func (s *FetchStatus) CanLoadNewer() bool {
	return !s.loadingNewer && !s.foundNewest
}

func (s *FetchStatus) LoadingNewer() bool {
	return s.loadingNewer
}

func (s *FetchStatus) HasFoundNewest() bool {
	return s.foundNewest
}

// Reset returns the status to its initial state.
func (s *FetchStatus) Reset() {
	*s = FetchStatus{}
}

func (s *FetchStatus) Snapshot() Snapshot {
	return Snapshot{
		LoadingOlder:   s.loadingOlder,
		LoadingNewer:   s.loadingNewer,
		FoundOldest:    s.foundOldest,
		FoundNewest:    s.foundNewest,
		HistoryLimited: s.historyLimited,
	}
}
