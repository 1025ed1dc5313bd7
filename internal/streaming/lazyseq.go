package streaming

import "errors"

// ErrSequenceCancelled is returned by LazySequence.Pull once the
// originating operation's future has been cancelled.
var ErrSequenceCancelled = errors.New("streaming: lazy sequence cancelled")

// LazySequence is the value a generator-read operation fulfills with: a
// lazy sequence of byte-string chunks, iterable at least once. It holds a
// back-reference (via isCancelled) to the originating operation so that
// cancelling the future invalidates further pulls.
type LazySequence struct {
	opID        int64
	next        Puller
	isCancelled func() bool
	exhausted   bool
}

func NewLazySequence(opID int64, next Puller, isCancelled func() bool) *LazySequence {
	return &LazySequence{opID: opID, next: next, isCancelled: isCancelled}
}

func (s *LazySequence) OpID() int64 { return s.opID }

// Pull advances the sequence by one chunk. Once exhausted, further pulls
// return (nil, false, nil). If the originating future was cancelled,
// further pulls return ErrSequenceCancelled.
func (s *LazySequence) Pull() (chunk []byte, ok bool, err error) {
	if s.exhausted {
		return nil, false, nil
	}
	if s.isCancelled != nil && s.isCancelled() {
		s.exhausted = true
		return nil, false, ErrSequenceCancelled
	}
	data, end, err := s.next()
	if err != nil {
		s.exhausted = true
		return nil, false, err
	}
	if end {
		s.exhausted = true
		if len(data) == 0 {
			return nil, false, nil
		}
		return data, true, nil
	}
	return data, true, nil
}

// Collect drains the entire sequence into one concatenated byte slice.
func (s *LazySequence) Collect() ([]byte, error) {
	var out []byte
	for {
		chunk, ok, err := s.Pull()
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, chunk...)
	}
}
