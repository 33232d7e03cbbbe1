package ftpc

import (
	"time"
)

// keepAliveSender keeps the control connection warm while a data
// transfer runs. Long transfers leave the control channel idle, and
// some servers or middleboxes drop it; the sender writes a NOOP
// whenever idle time crosses the configured threshold and awaits its
// reply before resuming.
//
// The sender sends nothing but NOOP, and it is the only reader of the
// control channel while it runs: the transfer path reads the
// completion reply only after stopping the sender, so the strict
// request/reply discipline is preserved.
type keepAliveSender struct {
	c    *Client
	stop chan struct{}
	done chan struct{}

	// err records a keep-alive failure. Owned by the loop goroutine;
	// finish reads it only after the loop has exited.
	err error
}

// startKeepAlive launches the sender for one transfer. Returns nil
// when keep-alive is not armed.
func (c *Client) startKeepAlive() *keepAliveSender {
	if c.keepAliveIdle <= 0 {
		return nil
	}
	s := &keepAliveSender{
		c:    c,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go s.loop()
	return s
}

func (s *keepAliveSender) loop() {
	defer close(s.done)

	// Tick at half the idle threshold so an idle period is never
	// overshot by more than half a threshold.
	interval := s.c.keepAliveIdle / 2
	if interval <= 0 {
		interval = s.c.keepAliveIdle
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	replyTimeout := s.c.keepAliveReply
	if replyTimeout <= 0 {
		replyTimeout = s.c.timeout
	}

	for {
		select {
		case <-ticker.C:
			s.c.mu.Lock()
			idle := time.Since(s.c.lastWrite)
			s.c.mu.Unlock()
			if idle < s.c.keepAliveIdle {
				continue
			}

			s.c.logger.Debug("keep-alive NOOP")
			if err := s.c.writeControl("NOOP"); err != nil {
				s.err = &ConnectionError{Op: "keep-alive", Err: err}
				s.c.markBroken()
				return
			}

			// A reply that does not arrive within the bounded timeout
			// means the control connection is gone. Closing it also
			// unblocks the transfer copy with an error.
			if replyTimeout > 0 {
				if err := s.c.conn.SetReadDeadline(time.Now().Add(replyTimeout)); err != nil {
					s.err = &ConnectionError{Op: "keep-alive", Err: err}
					s.c.markBroken()
					return
				}
			}
			reply, err := readReply(s.c.reader)
			if err != nil {
				s.err = &ConnectionError{Op: "keep-alive", Err: err}
				s.c.markBroken()
				return
			}
			s.c.logger.Debug("keep-alive reply", "code", reply.Code)
		case <-s.stop:
			return
		}
	}
}

// finish stops the sender, waits for any in-flight NOOP exchange to
// complete, and reports whether keep-alive broke the session.
func (s *keepAliveSender) finish() error {
	close(s.stop)
	<-s.done
	return s.err
}
