package streaming

// AutoBuffer wraps an upstream Puller with one that concatenates upstream
// yields until the accumulated length reaches bufferSize before yielding,
// flushing any residual at end-of-stream. It performs no I/O: pure glue
// over the Puller contract, usable on either the read or the write side.
func AutoBuffer(upstream Puller, bufferSize int) Puller {
	if bufferSize <= 0 {
		return upstream
	}
	var pending []byte
	upstreamDone := false

	return func() ([]byte, bool, error) {
		for {
			if upstreamDone {
				if len(pending) == 0 {
					return nil, true, nil
				}
				out := pending
				pending = nil
				return out, true, nil
			}
			chunk, end, err := upstream()
			if err != nil {
				return nil, true, err
			}
			if len(chunk) > 0 {
				pending = append(pending, chunk...)
			}
			if end {
				upstreamDone = true
			}
			if len(pending) >= bufferSize {
				out := pending
				pending = nil
				return out, upstreamDone, nil
			}
		}
	}
}
