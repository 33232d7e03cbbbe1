// Package throttle caps the throughput of a data stream with a token
// bucket. The bucket holds one second's worth of tokens, so a transfer
// may burst briefly but averages out to the configured rate.
package throttle

import (
	"io"
	"sync"
	"time"
)

// chunk bounds how many bytes one wait covers. Smaller chunks pace
// more evenly; larger ones waste fewer wakeups.
const chunk = 32 * 1024

// Limiter paces byte consumption to a fixed rate. A nil *Limiter
// imposes no limit, so callers never need to branch.
type Limiter struct {
	mu     sync.Mutex
	rate   float64 // bytes per second
	tokens float64
	last   time.Time
}

// New returns a limiter for the given rate, or nil when the rate is
// zero or negative (unlimited).
func New(bytesPerSec int64) *Limiter {
	if bytesPerSec <= 0 {
		return nil
	}
	return &Limiter{
		rate:   float64(bytesPerSec),
		tokens: float64(bytesPerSec),
		last:   time.Now(),
	}
}

// wait blocks until n tokens are available and consumes them.
func (l *Limiter) wait(n int) {
	if l == nil || n <= 0 {
		return
	}

	l.mu.Lock()
	now := time.Now()
	l.tokens += now.Sub(l.last).Seconds() * l.rate
	if l.tokens > l.rate {
		l.tokens = l.rate
	}
	l.last = now
	l.tokens -= float64(n)
	deficit := -l.tokens
	l.mu.Unlock()

	if deficit > 0 {
		time.Sleep(time.Duration(deficit / l.rate * float64(time.Second)))
	}
}

type reader struct {
	r io.Reader
	l *Limiter
}

// Reader paces reads from r. With a nil limiter, r is returned as-is.
func Reader(r io.Reader, l *Limiter) io.Reader {
	if l == nil {
		return r
	}
	return &reader{r: r, l: l}
}

func (tr *reader) Read(p []byte) (int, error) {
	if len(p) > chunk {
		p = p[:chunk]
	}
	n, err := tr.r.Read(p)
	tr.l.wait(n)
	return n, err
}

type writer struct {
	w io.Writer
	l *Limiter
}

// Writer paces writes to w. With a nil limiter, w is returned as-is.
func Writer(w io.Writer, l *Limiter) io.Writer {
	if l == nil {
		return w
	}
	return &writer{w: w, l: l}
}

func (tw *writer) Write(p []byte) (int, error) {
	written := 0
	for written < len(p) {
		end := min(written+chunk, len(p))
		tw.l.wait(end - written)
		n, err := tw.w.Write(p[written:end])
		written += n
		if err != nil {
			return written, err
		}
	}
	return written, nil
}
