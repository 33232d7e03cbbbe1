package ftpc

import (
	"errors"
	"fmt"
	"io"

	"github.com/odalmau/ftpc/internal/throttle"
)

// Store uploads the bytes read from src to remotePath. The configured
// transfer type is applied first: binary streams the bytes untouched,
// ASCII expands line endings to CRLF on the wire.
//
// A failed upload is not rolled back; the remote file may be left
// truncated, matching the at-least-once semantics of the protocol.
func (c *Client) Store(remotePath string, src io.Reader) error {
	if err := c.requireAuth("STOR"); err != nil {
		return err
	}
	if err := c.syncType(); err != nil {
		return err
	}

	if c.transferType == TypeASCII {
		src = newCRLFReader(src)
	}
	if c.listener != nil {
		src = &countingReader{r: src, listener: c.listener}
	}
	src = throttle.Reader(src, throttle.New(c.bytesPerSec))

	dataConn, err := c.openDataCmd("STOR", remotePath)
	if err != nil {
		return transferFailure("STOR", remotePath, err)
	}

	keep := c.startKeepAlive()
	_, copyErr := io.Copy(dataConn, src)
	if keep != nil {
		if kaErr := keep.finish(); kaErr != nil {
			c.releaseData(dataConn)
			return kaErr
		}
	}

	reply, finErr := c.finishData(dataConn)
	switch {
	case copyErr != nil:
		return &TransferError{Op: "STOR", Path: remotePath, Err: copyErr}
	case finErr != nil:
		return finErr
	case reply.Class() != ReplyPositiveCompletion:
		return &TransferError{Op: "STOR", Path: remotePath, Code: reply.Code, Text: reply.Text}
	}
	return nil
}

// Retrieve downloads remotePath into dst. The data connection is fully
// drained before the completion reply is read from the control
// channel; the server will not send that reply until it has finished
// writing and closed the data side, so reading it early would
// deadlock.
func (c *Client) Retrieve(remotePath string, dst io.Writer) error {
	if err := c.requireAuth("RETR"); err != nil {
		return err
	}
	if err := c.syncType(); err != nil {
		return err
	}

	dataConn, err := c.openDataCmd("RETR", remotePath)
	if err != nil {
		return transferFailure("RETR", remotePath, err)
	}

	var wire io.Reader = dataConn
	wire = throttle.Reader(wire, throttle.New(c.bytesPerSec))
	if c.transferType == TypeASCII {
		wire = newLFReader(wire)
	}
	if c.listener != nil {
		wire = &countingReader{r: wire, listener: c.listener}
	}

	keep := c.startKeepAlive()
	_, copyErr := io.Copy(dst, wire)
	if keep != nil {
		if kaErr := keep.finish(); kaErr != nil {
			c.releaseData(dataConn)
			return kaErr
		}
	}

	reply, finErr := c.finishData(dataConn)
	switch {
	case copyErr != nil:
		return &TransferError{Op: "RETR", Path: remotePath, Err: copyErr}
	case finErr != nil:
		return finErr
	case reply.Class() != ReplyPositiveCompletion:
		return &TransferError{Op: "RETR", Path: remotePath, Code: reply.Code, Text: reply.Text}
	}
	return nil
}

// Upload stores a local file at remotePath, reading it through the
// session's filesystem.
func (c *Client) Upload(localPath, remotePath string) error {
	f, err := c.fs.Open(localPath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", localPath, err)
	}
	defer f.Close()

	return c.Store(remotePath, f)
}

// Download retrieves remotePath into a local file. On failure the
// partial local file is removed.
func (c *Client) Download(remotePath, localPath string) error {
	f, err := c.fs.Create(localPath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", localPath, err)
	}

	if err := c.Retrieve(remotePath, f); err != nil {
		f.Close()
		_ = c.fs.Remove(localPath)
		return err
	}
	return f.Close()
}

// transferFailure maps a rejected transfer command onto TransferError
// so callers see one error kind for "the transfer did not happen",
// whether the server refused it up front or the plumbing failed.
func transferFailure(op, path string, err error) error {
	var pe *ProtocolError
	if errors.As(err, &pe) {
		return &TransferError{Op: op, Path: path, Code: pe.Code, Text: pe.Text}
	}
	var ce *ConnectionError
	var ae *AuthError
	if errors.As(err, &ce) || errors.As(err, &ae) {
		return err
	}
	return &TransferError{Op: op, Path: path, Err: err}
}
