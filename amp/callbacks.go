package amp

import (
	"time"
)

// Callbacks provides hooks for AMP transfer events.
// All callbacks are optional - nil callbacks use default behavior.
type Callbacks struct {
	// OnNewFile is called the first time a block arrives for a transfer hash.
	OnNewFile func(event NewFileEvent)

	// OnFileUpdate is called for every block that changed a file's state.
	// Fields that are not known yet are zero.
	OnFileUpdate func(event FileUpdateEvent)

	// OnFileComplete is called once per file, when the name, the size and
	// every data block are known.
	OnFileComplete func(event FileCompleteEvent)

	// OnFileReceived is called by sessions with the recovered content of a
	// completed file. If an error is returned, the session stops.
	OnFileReceived func(file *File, content []byte) error

	// OnFileStart is called when a session starts sending a file.
	OnFileStart func(filename string, size int, blocks int)

	// OnFileSent is called when a session has written every block of a file.
	OnFileSent func(filename string, bytesWritten int64, duration time.Duration)

	// OnProgress is called periodically during reception.
	// held: data blocks held so far
	// total: data blocks expected (0 if SIZE is not known yet)
	// rate: blocks per second
	OnProgress func(hash, filename string, held, total int, rate float64)

	// OnError is called when an error occurs.
	// context: description of where the error occurred
	// Return true to continue, false to abort.
	OnError func(err error, context string) bool

	// OnEvent is called for protocol events (debugging/logging).
	OnEvent func(event Event)
}

// NewFileEvent reports the first block seen for a transfer hash.
type NewFileEvent struct {
	Hash string
}

// FileUpdateEvent reports the state of a file after a new block. Its block
// lists are shared with the decoder and must not be modified.
type FileUpdateEvent struct {
	Hash     string
	Filename string

	// BlocksSeen lists the data block numbers held, in ascending order
	BlocksSeen []int

	// BlocksNeeded lists the missing data block numbers; nil until the
	// SIZE block is known
	BlocksNeeded []int

	BlockCount int
	BlockSize  int

	// FileSize is the length declared by the SIZE block
	FileSize int

	// SizeKnown reports whether a SIZE block has been received
	SizeKnown bool
}

// FileCompleteEvent reports a file whose content can be recovered.
type FileCompleteEvent struct {
	Hash     string
	Filename string
}

// Event represents a protocol event for logging/debugging.
type Event struct {
	Type      EventType
	Message   string
	Hash      string
	Timestamp time.Time
}

// EventType categorizes protocol events.
type EventType int

const (
	EventBlockSent EventType = iota
	EventBlockReceived
	EventBlockDuplicate
	EventBlockRejected
	EventFileStart
	EventFileComplete
	EventError
	EventCancelled
	EventBlockIgnored
)

func (t EventType) String() string {
	switch t {
	case EventBlockSent:
		return "block sent"
	case EventBlockReceived:
		return "block received"
	case EventBlockDuplicate:
		return "duplicate block"
	case EventBlockRejected:
		return "block rejected"
	case EventFileStart:
		return "file start"
	case EventFileComplete:
		return "file complete"
	case EventError:
		return "error"
	case EventCancelled:
		return "cancelled"
	case EventBlockIgnored:
		return "block ignored"
	default:
		return "unknown event"
	}
}

// defaultCallbacks returns a set of callbacks with default implementations.
func defaultCallbacks() *Callbacks {
	return &Callbacks{
		OnNewFile:      func(NewFileEvent) {},
		OnFileUpdate:   func(FileUpdateEvent) {},
		OnFileComplete: func(FileCompleteEvent) {},
		OnFileReceived: func(*File, []byte) error { return nil },
		OnFileStart:    func(string, int, int) {},
		OnFileSent:     func(string, int64, time.Duration) {},
		OnProgress:     func(string, string, int, int, float64) {},
		OnError: func(error, string) bool {
			return true // Keep listening by default
		},
		OnEvent: func(Event) {},
	}
}

// mergeCallbacks merges user callbacks with defaults.
// User callbacks override defaults, nil callbacks use defaults.
func mergeCallbacks(user *Callbacks) *Callbacks {
	if user == nil {
		return defaultCallbacks()
	}

	result := defaultCallbacks()

	// Decoder lifecycle
	if user.OnNewFile != nil {
		result.OnNewFile = user.OnNewFile
	}
	if user.OnFileUpdate != nil {
		result.OnFileUpdate = user.OnFileUpdate
	}
	if user.OnFileComplete != nil {
		result.OnFileComplete = user.OnFileComplete
	}

	// Session hooks
	if user.OnFileReceived != nil {
		result.OnFileReceived = user.OnFileReceived
	}
	if user.OnFileStart != nil {
		result.OnFileStart = user.OnFileStart
	}
	if user.OnFileSent != nil {
		result.OnFileSent = user.OnFileSent
	}
	if user.OnProgress != nil {
		result.OnProgress = user.OnProgress
	}

	// Error
	if user.OnError != nil {
		result.OnError = user.OnError
	}

	// Event
	if user.OnEvent != nil {
		result.OnEvent = user.OnEvent
	}

	return result
}

// chainCallbacks returns callbacks calling extra after each hook of base that
// extra sets. Sessions use it to observe decoder events alongside the user.
func chainCallbacks(base *Callbacks, extra *Callbacks) *Callbacks {
	out := *base
	if extra.OnFileUpdate != nil {
		prev := base.OnFileUpdate
		out.OnFileUpdate = func(e FileUpdateEvent) { prev(e); extra.OnFileUpdate(e) }
	}
	if extra.OnFileComplete != nil {
		prev := base.OnFileComplete
		out.OnFileComplete = func(e FileCompleteEvent) { prev(e); extra.OnFileComplete(e) }
	}
	return &out
}
