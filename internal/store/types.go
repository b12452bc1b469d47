package store

// Message is a cached message. Flags is the comma-separated flag list as
// last seen from the server.
type Message struct {
	ID          int64
	SenderID    int64
	SenderEmail string
	SenderName  string
	Type        string // stream or private
	StreamID    int64
	StreamName  string
	Subject     string
	Content     string
	Timestamp   int64
	Flags       string
	Raw         string
}

// User is a realm member seen as a sender or private message recipient.
type User struct {
	ID       int64
	Email    string
	FullName string
}

// Stream maps a stream name to its id.
type Stream struct {
	ID   int64
	Name string
}

// Batch is everything learned from one fetched page, saved atomically.
type Batch struct {
	Messages []Message
	Users    []User
	Streams  []Stream
}

// SearchResult holds a message with a search snippet.
type SearchResult struct {
	Message Message
	Snippet string
}
