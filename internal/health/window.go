package health

// ring is a fixed-capacity FIFO buffer with a write cursor. Appending at
// capacity evicts the oldest element first, so len never exceeds cap and
// iteration order is always chronological.
type ring[T any] struct {
	buf   []T
	start int
	n     int
}

func newRing[T any](capacity int) *ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &ring[T]{buf: make([]T, capacity)}
}

func (r *ring[T]) append(v T) {
	if r.n == len(r.buf) {
		r.buf[r.start] = v
		r.start = (r.start + 1) % len(r.buf)
		return
	}
	r.buf[(r.start+r.n)%len(r.buf)] = v
	r.n++
}

func (r *ring[T]) len() int { return r.n }

// tail copies out the last limit elements oldest-first. limit <= 0 or beyond
// the available length returns everything.
func (r *ring[T]) tail(limit int) []T {
	n := r.n
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]T, n)
	for i := 0; i < n; i++ {
		out[i] = r.buf[(r.start+r.n-n+i)%len(r.buf)]
	}
	return out
}
