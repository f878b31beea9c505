package amp

import (
	"errors"
	"fmt"
)

// Error represents an AMP protocol error
type Error struct {
	// Type is the error type
	Type ErrorType

	// Message is a human-readable error message
	Message string

	// Hash is the transfer hash the error relates to (if applicable)
	Hash string
}

// ErrorType categorizes AMP errors
type ErrorType int

const (
	// ErrProtocol indicates a protocol violation
	ErrProtocol ErrorType = iota

	// ErrChecksum indicates a block checksum mismatch
	ErrChecksum

	// ErrInvalidBlock indicates a frame that does not form a valid block
	ErrInvalidBlock

	// ErrNotReady indicates content was requested while data blocks are missing
	ErrNotReady

	// ErrMetadataMissing indicates content was requested before the SIZE
	// block was received
	ErrMetadataMissing

	// ErrContentIntegrity indicates reassembled content does not match its
	// declared size
	ErrContentIntegrity

	// ErrCompression indicates a compressor failed
	ErrCompression

	// ErrEncoding indicates a binary-to-text codec failed
	ErrEncoding

	// ErrUnknownFile indicates no file is held for a hash
	ErrUnknownFile

	// ErrConfig indicates invalid encoder or session configuration
	ErrConfig

	// ErrTimeout indicates the channel stayed silent for too long
	ErrTimeout

	// ErrCancelled indicates the session was cancelled
	ErrCancelled
)

func (e *Error) Error() string {
	if e.Hash != "" {
		return fmt.Sprintf("amp %s: %s (hash: %s)", e.Type, e.Message, e.Hash)
	}
	return fmt.Sprintf("amp %s: %s", e.Type, e.Message)
}

func (t ErrorType) String() string {
	switch t {
	case ErrProtocol:
		return "protocol error"
	case ErrChecksum:
		return "checksum error"
	case ErrInvalidBlock:
		return "invalid block"
	case ErrNotReady:
		return "not ready"
	case ErrMetadataMissing:
		return "metadata missing"
	case ErrContentIntegrity:
		return "content integrity error"
	case ErrCompression:
		return "compression error"
	case ErrEncoding:
		return "encoding error"
	case ErrUnknownFile:
		return "unknown file"
	case ErrConfig:
		return "configuration error"
	case ErrTimeout:
		return "timeout"
	case ErrCancelled:
		return "cancelled"
	default:
		return "unknown error"
	}
}

// NewError creates a new AMP error
func NewError(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
	}
}

// NewFileError creates a new AMP error tied to a transfer hash
func NewFileError(errType ErrorType, message string, hash string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Hash:    hash,
	}
}

func isType(err error, t ErrorType) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Type == t
	}
	return false
}

// IsNotReady checks if an error reports missing data blocks
func IsNotReady(err error) bool {
	return isType(err, ErrNotReady)
}

// IsMetadataMissing checks if an error reports an unknown SIZE
func IsMetadataMissing(err error) bool {
	return isType(err, ErrMetadataMissing)
}

// IsContentIntegrity checks if an error reports a size mismatch
func IsContentIntegrity(err error) bool {
	return isType(err, ErrContentIntegrity)
}

// IsChecksum checks if an error is a checksum error
func IsChecksum(err error) bool {
	return isType(err, ErrChecksum)
}

// IsTimeout checks if an error is a timeout error
func IsTimeout(err error) bool {
	return isType(err, ErrTimeout)
}

// IsCancelled checks if an error indicates cancellation
func IsCancelled(err error) bool {
	return isType(err, ErrCancelled)
}
