package ftpc

import "fmt"

// ConnectionError reports that the control connection could not be
// established or maintained. After a ConnectionError the session is
// closed and no further commands are accepted.
type ConnectionError struct {
	// Op names the action that failed (e.g. "dial", "greeting", "keep-alive").
	Op string

	// Code and Text carry the last server reply, when one was received.
	Code int
	Text string

	// Err is the underlying I/O error, if any.
	Err error
}

func (e *ConnectionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ftpc: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("ftpc: %s: server replied %d %s", e.Op, e.Code, e.Text)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// AuthError reports a rejected login. The control connection stays
// open, but the session never reaches the authenticated state and all
// data operations keep being refused.
type AuthError struct {
	Code int
	Text string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("ftpc: login rejected: %d %s", e.Code, e.Text)
}

// TransferError reports a failed data transfer or listing: either the
// data connection broke, the local stream failed, or the server sent a
// negative completion reply. The remote file may be left truncated.
type TransferError struct {
	// Op is the transfer command ("STOR", "RETR", "LIST", ...).
	Op string

	// Path is the remote path of the transfer, when there is one.
	Path string

	// Code and Text carry the server's completion reply, when received.
	Code int
	Text string

	// Err is the underlying I/O error, if any.
	Err error
}

func (e *TransferError) Error() string {
	what := e.Op
	if e.Path != "" {
		what += " " + e.Path
	}
	if e.Err != nil {
		return fmt.Sprintf("ftpc: %s: %v", what, e.Err)
	}
	return fmt.Sprintf("ftpc: %s: server replied %d %s", what, e.Code, e.Text)
}

func (e *TransferError) Unwrap() error { return e.Err }

// ProtocolError reports a reply the client did not expect for the
// command it sent, or a reply it could not parse at all.
type ProtocolError struct {
	// Command is the command whose reply was unexpected.
	Command string

	Code int
	Text string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("ftpc: %s failed: %d %s", e.Command, e.Code, e.Text)
}

// Temporary reports whether the failure is transient (4xx) and the
// same request may succeed if retried. Retrying is the caller's call;
// the client never retries on its own.
func (e *ProtocolError) Temporary() bool {
	return Classify(e.Code) == ReplyTransientNegative
}
