package ftpc

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ReplyClass is the outcome class of a server reply, derived from the
// first digit of the three-digit reply code (RFC 959 section 4.2).
type ReplyClass int

const (
	// ReplyInvalid marks a code outside the 100-599 range.
	ReplyInvalid ReplyClass = iota

	// ReplyPositivePreliminary (1xx): the requested action is being
	// started; expect another reply before issuing a new command.
	ReplyPositivePreliminary

	// ReplyPositiveCompletion (2xx): the requested action completed.
	ReplyPositiveCompletion

	// ReplyPositiveIntermediate (3xx): the command was accepted but the
	// action needs further information (e.g. PASS after USER).
	ReplyPositiveIntermediate

	// ReplyTransientNegative (4xx): the action did not take place but
	// the condition is temporary.
	ReplyTransientNegative

	// ReplyPermanentNegative (5xx): the action did not take place and
	// retrying the same request will not help.
	ReplyPermanentNegative
)

func (rc ReplyClass) String() string {
	switch rc {
	case ReplyPositivePreliminary:
		return "positive-preliminary"
	case ReplyPositiveCompletion:
		return "positive-completion"
	case ReplyPositiveIntermediate:
		return "positive-intermediate"
	case ReplyTransientNegative:
		return "transient-negative"
	case ReplyPermanentNegative:
		return "permanent-negative"
	}
	return "invalid"
}

// Classify maps a numeric reply code to its ReplyClass.
// It is a pure function; Reply.Class is a convenience wrapper around it.
func Classify(code int) ReplyClass {
	switch code / 100 {
	case 1:
		return ReplyPositivePreliminary
	case 2:
		return ReplyPositiveCompletion
	case 3:
		return ReplyPositiveIntermediate
	case 4:
		return ReplyTransientNegative
	case 5:
		return ReplyPermanentNegative
	}
	return ReplyInvalid
}

// Reply is a single server reply from the control connection: a numeric
// code plus one or more lines of text.
type Reply struct {
	// Code is the three-digit reply code (e.g. 220, 550).
	Code int

	// Text is the reply text with the code prefix stripped. For
	// multi-line replies the lines are joined with '\n'.
	Text string

	// Lines holds every raw line of the reply as received.
	Lines []string
}

// Class returns the classification of the reply code.
func (r *Reply) Class() ReplyClass {
	return Classify(r.Code)
}

// Positive reports whether the reply is any positive class (1xx-3xx).
func (r *Reply) Positive() bool {
	c := r.Class()
	return c == ReplyPositivePreliminary || c == ReplyPositiveCompletion || c == ReplyPositiveIntermediate
}

// Completed reports whether the reply is a positive completion (2xx).
func (r *Reply) Completed() bool {
	return r.Class() == ReplyPositiveCompletion
}

// String returns the raw reply, one line per received line.
func (r *Reply) String() string {
	return strings.Join(r.Lines, "\n")
}

// readReply reads one complete reply from the control channel.
//
// Single-line replies look like "220 Welcome\r\n". Multi-line replies
// open with "ccc-text" and end with a "ccc text" line carrying the same
// code; in between, servers may send either "ccc-text" lines or bare
// continuation lines starting with a space (RFC 2389 FEAT style).
func readReply(r *bufio.Reader) (*Reply, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return nil, err
	}

	line = strings.TrimRight(line, "\r\n")
	if len(line) < 4 {
		return nil, fmt.Errorf("short reply line %q", line)
	}

	code, err := strconv.Atoi(line[:3])
	if err != nil || Classify(code) == ReplyInvalid {
		return nil, fmt.Errorf("bad reply code in %q", line)
	}

	lines := []string{line}

	switch line[3] {
	case ' ':
		return &Reply{Code: code, Text: line[4:], Lines: lines}, nil
	case '-':
		// fall through to the multi-line loop below
	default:
		return nil, fmt.Errorf("bad reply separator in %q", line)
	}

	terminator := line[:3] + " "
	for {
		line, err = r.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				return nil, fmt.Errorf("reply truncated after %d lines", len(lines))
			}
			return nil, err
		}
		line = strings.TrimRight(line, "\r\n")
		lines = append(lines, line)

		if strings.HasPrefix(line, terminator) {
			break
		}
	}

	return &Reply{Code: code, Text: joinReplyText(code, lines), Lines: lines}, nil
}

// joinReplyText strips the code prefix from every line that carries one
// and joins the result. Continuation lines without a code are kept
// as-is (minus the leading space).
func joinReplyText(code int, lines []string) string {
	prefix := fmt.Sprintf("%03d", code)
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		switch {
		case len(l) >= 4 && strings.HasPrefix(l, prefix) && (l[3] == ' ' || l[3] == '-'):
			out = append(out, l[4:])
		case strings.HasPrefix(l, " "):
			out = append(out, l[1:])
		default:
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}
