package ftpc

import (
	"bufio"
	"io"
)

// ASCII mode (TYPE A) requires CRLF line endings on the wire. Uploads
// insert a CR before every bare LF; downloads collapse CRLF back to
// LF. Bytes that already form CRLF pairs pass through unchanged, so
// translating twice is harmless.

// crlfReader wraps a local source and yields its bytes with LF
// expanded to CRLF, for sending ASCII data to the server.
type crlfReader struct {
	r *bufio.Reader

	// pendingLF is set when a CR was emitted for a bare LF and the LF
	// itself still has to go out.
	pendingLF bool

	// lastCR tracks whether the previous source byte was CR, so CRLF
	// input is not expanded to CRCRLF.
	lastCR bool
}

func newCRLFReader(r io.Reader) io.Reader {
	return &crlfReader{r: bufio.NewReader(r)}
}

func (cr *crlfReader) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		if cr.pendingLF {
			p[n] = '\n'
			n++
			cr.pendingLF = false
			continue
		}

		b, err := cr.r.ReadByte()
		if err != nil {
			if n > 0 {
				return n, nil
			}
			return 0, err
		}

		if b == '\n' && !cr.lastCR {
			p[n] = '\r'
			n++
			cr.pendingLF = true
			cr.lastCR = false
			continue
		}

		cr.lastCR = b == '\r'
		p[n] = b
		n++
	}
	return n, nil
}

// lfReader wraps the network side of a download and yields its bytes
// with CRLF collapsed to LF. A CR not followed by LF is data and is
// kept.
type lfReader struct {
	r *bufio.Reader

	// pending holds a byte read ahead while deciding whether a CR
	// opened a CRLF pair.
	pending    byte
	hasPending bool
}

func newLFReader(r io.Reader) io.Reader {
	return &lfReader{r: bufio.NewReader(r)}
}

func (lr *lfReader) next() (byte, error) {
	if lr.hasPending {
		lr.hasPending = false
		return lr.pending, nil
	}
	return lr.r.ReadByte()
}

func (lr *lfReader) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		b, err := lr.next()
		if err != nil {
			if n > 0 {
				return n, nil
			}
			return 0, err
		}

		if b == '\r' {
			nb, err := lr.r.ReadByte()
			switch {
			case err != nil:
				// Trailing CR at EOF is data.
				p[n] = '\r'
				n++
				if n == len(p) || err != io.EOF {
					return n, nil
				}
				continue
			case nb == '\n':
				b = '\n'
			default:
				lr.pending = nb
				lr.hasPending = true
			}
		}

		p[n] = b
		n++
	}
	return n, nil
}
