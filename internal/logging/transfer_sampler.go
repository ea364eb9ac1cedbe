package logging

// TransferSampler thins out byte-transfer progress so a download logs a
// handful of lines instead of one per chunk. With a known total it emits
// when the percentage crosses a bucket boundary; with an unknown total it
// emits every Step bytes.
type TransferSampler struct {
	bucket     float64
	step       int64
	lastBucket int
	nextMark   int64
	done       bool
}

// DefaultTransferStep is the byte interval used when the total is unknown.
const DefaultTransferStep int64 = 16 << 20

// NewTransferSampler returns a sampler using bucket percent steps (default 10)
// and step bytes for indeterminate transfers (default DefaultTransferStep).
func NewTransferSampler(bucket float64, step int64) *TransferSampler {
	if bucket <= 0 {
		bucket = 10
	}
	if step <= 0 {
		step = DefaultTransferStep
	}
	return &TransferSampler{bucket: bucket, step: step, lastBucket: -1}
}

// Observe reports whether the transfer state (received of total bytes, total
// negative when unknown) is worth a log line. The first observation and the
// completion of a known-length transfer always emit.
func (s *TransferSampler) Observe(received, total int64) bool {
	if s == nil {
		return true
	}
	if total > 0 {
		if received >= total {
			if s.done {
				return false
			}
			s.done = true
			return true
		}
		b := int(Percent(received, total) / s.bucket)
		if b > s.lastBucket {
			s.lastBucket = b
			return true
		}
		return false
	}
	if received >= s.nextMark {
		s.nextMark = (received/s.step + 1) * s.step
		return true
	}
	return false
}

// Percent returns received as a percentage of total, or -1 when total is not
// positive.
func Percent(received, total int64) float64 {
	if total <= 0 {
		return -1
	}
	p := float64(received) / float64(total) * 100
	if p > 100 {
		p = 100
	}
	return p
}
