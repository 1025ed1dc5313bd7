// Package ferrors defines the closed error taxonomy surfaced by the
// filesystem engine, and the classifier that maps raw OS error strings
// onto it exactly once, at the facade boundary.
package ferrors

import (
	"errors"
	"fmt"
	"strings"
)

// Kind identifies one of the closed set of taxonomy error kinds.
type Kind int

const (
	KindNotFound Kind = iota
	KindAlreadyExists
	KindPermissionDenied
	KindReadFailed
	KindWriteFailed
	KindCopyFailed
	KindDirectoryNotEmpty
	KindDiskFull
	KindInvalidPath
	KindStreamFailed
	KindGeneric
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "NotFound"
	case KindAlreadyExists:
		return "AlreadyExists"
	case KindPermissionDenied:
		return "PermissionDenied"
	case KindReadFailed:
		return "ReadFailed"
	case KindWriteFailed:
		return "WriteFailed"
	case KindCopyFailed:
		return "CopyFailed"
	case KindDirectoryNotEmpty:
		return "DirectoryNotEmpty"
	case KindDiskFull:
		return "DiskFull"
	case KindInvalidPath:
		return "InvalidPath"
	case KindStreamFailed:
		return "StreamFailed"
	default:
		return "Generic"
	}
}

// Error is the single concrete error type for every taxonomy kind. Every
// kind records the operation name and offending path; copy and stream
// variants additionally carry destination path and bytes-processed.
type Error struct {
	Kind          Kind
	Op            string
	Path          string
	Dest          string // copy/rename/copyStream destination, if any
	BytesHandled  int64  // StreamFailed: bytes processed before failure
	HasBytes      bool
	Cause         error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	b.WriteByte(' ')
	b.WriteString(e.Op)
	if e.Path != "" {
		b.WriteString(" path=")
		b.WriteString(e.Path)
	}
	if e.Dest != "" {
		b.WriteString(" dest=")
		b.WriteString(e.Dest)
	}
	if e.HasBytes {
		b.WriteString(fmt.Sprintf(" bytesHandled=%d", e.BytesHandled))
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is a *Error with the same Kind, so callers can
// do errors.Is(err, &ferrors.Error{Kind: ferrors.KindNotFound}).
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Kind == e.Kind
	}
	return false
}

func New(kind Kind, op, path string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Cause: cause}
}

func NewCopy(kind Kind, op, src, dst string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Path: src, Dest: dst, Cause: cause}
}

func NewStream(kind Kind, op, path string, bytesHandled int64, cause error) *Error {
	return &Error{Kind: kind, Op: op, Path: path, BytesHandled: bytesHandled, HasBytes: true, Cause: cause}
}

// opClass distinguishes read-like, write-like, and other operations for the
// classification table in §7.
type opClass int

const (
	classRead opClass = iota
	classWrite
	classOther
)

func classify(op string) opClass {
	switch op {
	case "read", "read_generator", "readStream", "readFromGenerator", "readLines":
		return classRead
	case "write", "append", "write_generator", "writeStream", "writeFromGenerator":
		return classWrite
	default:
		return classOther
	}
}

// Classify applies the case-insensitive substring classification rule set
// from §7 to a raw error (typically an *os.PathError or *os.LinkError) for
// the given operation and path, producing a single taxonomy error. It is
// meant to run exactly once, at the facade boundary.
func Classify(op, path string, raw error) *Error {
	if raw == nil {
		return nil
	}
	msg := strings.ToLower(raw.Error())

	switch {
	case strings.Contains(msg, "already exists") || strings.Contains(msg, "file exists"):
		return New(KindAlreadyExists, op, path, raw)
	case strings.Contains(msg, "permission") || strings.Contains(msg, "denied") || strings.Contains(msg, "forbidden"):
		return New(KindPermissionDenied, op, path, raw)
	case strings.Contains(msg, "no space") || strings.Contains(msg, "disk full") || strings.Contains(msg, "device has no space"):
		return New(KindDiskFull, op, path, raw)
	case strings.Contains(msg, "directory not empty"):
		return New(KindDirectoryNotEmpty, op, path, raw)
	case strings.Contains(msg, "invalid argument") && strings.Contains(msg, "path"):
		return New(KindInvalidPath, op, path, raw)
	}

	switch classify(op) {
	case classWrite:
		return New(KindWriteFailed, op, path, raw)
	case classRead:
		if isMissing(msg) {
			return New(KindNotFound, op, path, raw)
		}
		return New(KindReadFailed, op, path, raw)
	default:
		if isMissing(msg) {
			return New(KindNotFound, op, path, raw)
		}
		return New(KindGeneric, op, path, raw)
	}
}

// ClassifyCopy applies the copy-specific classifier from §7: NotFound
// (source) takes priority, then PermissionDenied, else CopyFailed carrying
// both source and destination.
func ClassifyCopy(op, src, dst string, raw error) *Error {
	if raw == nil {
		return nil
	}
	msg := strings.ToLower(raw.Error())
	switch {
	case isMissing(msg):
		return NewCopy(KindNotFound, op, src, dst, raw)
	case strings.Contains(msg, "permission") || strings.Contains(msg, "denied") || strings.Contains(msg, "forbidden"):
		return NewCopy(KindPermissionDenied, op, src, dst, raw)
	default:
		return NewCopy(KindCopyFailed, op, src, dst, raw)
	}
}

// ClassifyStream is Classify plus a bytesHandled annotation, used when a
// streaming operation fails partway through (§7 kind 10, StreamFailed).
func ClassifyStream(op, path string, bytesHandled int64, raw error) *Error {
	base := Classify(op, path, raw)
	if base == nil {
		return nil
	}
	base.BytesHandled = bytesHandled
	base.HasBytes = true
	if base.Kind != KindNotFound && base.Kind != KindPermissionDenied && base.Kind != KindAlreadyExists {
		base.Kind = KindStreamFailed
	}
	return base
}

func isMissing(lowerMsg string) bool {
	return strings.Contains(lowerMsg, "not found") ||
		strings.Contains(lowerMsg, "no such file") ||
		strings.Contains(lowerMsg, "does not exist")
}
