package ftpc

import "io"

// TransferListener observes the progress of a data transfer. It is
// called with the cumulative byte count and the size of the chunk that
// just moved. Listeners are for reporting only; they cannot influence
// the transfer.
type TransferListener interface {
	BytesTransferred(total, delta int64)
}

// ListenerFunc adapts a function to the TransferListener interface.
type ListenerFunc func(total, delta int64)

func (f ListenerFunc) BytesTransferred(total, delta int64) { f(total, delta) }

// countingReader feeds every read chunk to a TransferListener.
type countingReader struct {
	r        io.Reader
	listener TransferListener
	total    int64
}

func (cr *countingReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	if n > 0 {
		cr.total += int64(n)
		cr.listener.BytesTransferred(cr.total, int64(n))
	}
	return n, err
}

// countingWriter feeds every written chunk to a TransferListener.
type countingWriter struct {
	w        io.Writer
	listener TransferListener
	total    int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	if n > 0 {
		cw.total += int64(n)
		cw.listener.BytesTransferred(cw.total, int64(n))
	}
	return n, err
}
