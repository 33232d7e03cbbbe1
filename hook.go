package ftpc

import (
	"fmt"
	"io"
	"strings"
)

// CommandListener observes the control-channel conversation: every
// command the client sends and every reply the server returns. It is a
// logging hook only and must not issue commands of its own.
type CommandListener interface {
	CommandSent(line string)
	ReplyReceived(reply *Reply)
}

// ReplyPrinter writes the raw conversation to w, one line per command
// and reply line. The PASS argument is masked so credentials never
// reach the output.
func ReplyPrinter(w io.Writer) CommandListener {
	return &replyPrinter{w: w}
}

type replyPrinter struct {
	w io.Writer
}

func (p *replyPrinter) CommandSent(line string) {
	if strings.HasPrefix(line, "PASS ") {
		line = "PASS ****"
	}
	fmt.Fprintf(p.w, "> %s\n", line)
}

func (p *replyPrinter) ReplyReceived(reply *Reply) {
	for _, l := range reply.Lines {
		fmt.Fprintf(p.w, "< %s\n", l)
	}
}
