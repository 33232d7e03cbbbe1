package ftpc

import (
	"bufio"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"
)

// TransferType selects how file contents travel over the data
// connection.
type TransferType int

const (
	// TypeASCII translates line endings in transit (TYPE A). This is
	// the protocol default.
	TypeASCII TransferType = iota

	// TypeBinary transfers bytes exactly as they are (TYPE I).
	TypeBinary
)

func (t TransferType) wire() string {
	if t == TypeBinary {
		return "I"
	}
	return "A"
}

// ConnMode selects which endpoint initiates data connections.
type ConnMode int

const (
	// ModePassive makes the client connect to a server-advertised
	// address (PASV/EPSV). The default; friendliest to NAT.
	ModePassive ConnMode = iota

	// ModeActive makes the client listen and the server connect back
	// (PORT/EPRT).
	ModeActive
)

// sessionState tracks the control-connection lifecycle.
type sessionState int

const (
	stateUnconnected sessionState = iota
	stateConnected
	stateAuthenticated
	stateClosed
)

// Client is one FTP session: a single control connection, its
// authentication state, and the settings applied to data connections.
//
// A Client is meant for sequential use by one caller. The control
// protocol is strictly request/reply, so the client never issues
// concurrent commands; the keep-alive sender (see SetControlKeepAlive)
// is the only background activity and it sends nothing but NOOP.
type Client struct {
	conn   net.Conn
	reader *bufio.Reader

	host string
	port string

	timeout   time.Duration
	dialer    *net.Dialer
	logger    *slog.Logger
	fs        afero.Fs
	tlsConfig *tls.Config
	tlsMode   tlsMode

	state        sessionState
	transferType TransferType
	connMode     ConnMode
	epsvWithIPv4 bool
	listHidden   bool

	// wireType is the TYPE value last acknowledged by the server, used
	// to skip redundant TYPE commands.
	wireType string

	keepAliveIdle  time.Duration
	keepAliveReply time.Duration

	bytesPerSec int64
	listener    TransferListener
	cmdListener CommandListener

	features map[string]string

	// mu serializes writes on the control channel (commands vs the
	// keep-alive sender) and guards lastWrite and dataConn.
	mu        sync.Mutex
	lastWrite time.Time
	dataConn  net.Conn
}

// Dial opens the control connection to addr ("host:port"), reads the
// server greeting and, for FTPS, performs the TLS setup. The returned
// client is connected but not authenticated; call Login next.
//
//	client, err := ftpc.Dial("ftp.example.com:21", ftpc.WithTimeout(10*time.Second))
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
func Dial(addr string, opts ...Option) (*Client, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid address: %w", err)
	}

	c := &Client{
		host:    host,
		port:    port,
		timeout: 30 * time.Second,
		dialer:  &net.Dialer{},
		logger:  slog.New(slog.DiscardHandler),
		fs:      afero.NewOsFs(),
		state:   stateUnconnected,
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, fmt.Errorf("applying option: %w", err)
		}
	}
	c.dialer.Timeout = c.timeout

	if err := c.connect(); err != nil {
		return nil, err
	}

	c.state = stateConnected
	c.lastWrite = time.Now()
	return c, nil
}

// connect establishes the control connection and verifies the greeting.
// Anything partially opened is closed before returning an error.
func (c *Client) connect() error {
	addr := net.JoinHostPort(c.host, c.port)
	c.logger.Debug("connecting", "addr", addr, "tls", c.tlsMode)

	conn, err := c.dialer.Dial("tcp", addr)
	if err != nil {
		return &ConnectionError{Op: "dial " + addr, Err: err}
	}

	if c.tlsMode == tlsImplicit {
		tlsConn := tls.Client(conn, c.tlsConfig)
		if c.timeout > 0 {
			_ = conn.SetDeadline(time.Now().Add(c.timeout))
		}
		if err := tlsConn.Handshake(); err != nil {
			conn.Close()
			return &ConnectionError{Op: "tls handshake", Err: err}
		}
		_ = conn.SetDeadline(time.Time{})
		conn = tlsConn
	}

	c.conn = conn
	c.reader = bufio.NewReader(conn)

	greeting, err := c.readControlReply()
	if err != nil {
		conn.Close()
		return &ConnectionError{Op: "greeting", Err: err}
	}
	if greeting.Class() != ReplyPositiveCompletion {
		conn.Close()
		return &ConnectionError{Op: "greeting", Code: greeting.Code, Text: greeting.Text}
	}

	if c.tlsMode == tlsExplicit {
		if err := c.upgradeTLS(); err != nil {
			conn.Close()
			return err
		}
	}

	return nil
}

// upgradeTLS performs the AUTH TLS upgrade on an established control
// connection, then protects the data channel with PBSZ 0 / PROT P.
func (c *Client) upgradeTLS() error {
	reply, err := c.sendCommand("AUTH", "TLS")
	if err != nil {
		return err
	}
	if reply.Code != 234 {
		return &ConnectionError{Op: "AUTH TLS", Code: reply.Code, Text: reply.Text}
	}

	tlsConn := tls.Client(c.conn, c.tlsConfig)
	if c.timeout > 0 {
		_ = c.conn.SetDeadline(time.Now().Add(c.timeout))
	}
	if err := tlsConn.Handshake(); err != nil {
		return &ConnectionError{Op: "tls handshake", Err: err}
	}
	_ = tlsConn.SetDeadline(time.Time{})

	c.conn = tlsConn
	c.reader = bufio.NewReader(tlsConn)

	if _, err := c.expectCode(200, "PBSZ", "0"); err != nil {
		return err
	}
	if _, err := c.expectCode(200, "PROT", "P"); err != nil {
		return err
	}
	return nil
}

// Login authenticates the session. A rejected login returns an
// *AuthError and leaves the session connected but unauthenticated;
// data operations keep being refused until a later Login succeeds.
func (c *Client) Login(user, pass string) error {
	if c.state == stateClosed {
		return &ConnectionError{Op: "USER", Err: errClosed}
	}

	reply, err := c.sendCommand("USER", user)
	if err != nil {
		return err
	}

	switch {
	case reply.Code == 230:
		// No password wanted.
	case reply.Class() == ReplyPositiveIntermediate:
		reply, err = c.sendCommand("PASS", pass)
		if err != nil {
			return err
		}
		if reply.Class() != ReplyPositiveCompletion {
			return &AuthError{Code: reply.Code, Text: reply.Text}
		}
	default:
		return &AuthError{Code: reply.Code, Text: reply.Text}
	}

	c.state = stateAuthenticated
	c.logger.Debug("authenticated", "user", user)
	return nil
}

// SetTransferType selects binary or ASCII transfers. The matching TYPE
// command is sent lazily before the next data operation, so the value
// in effect when a transfer starts is the last one set.
func (c *Client) SetTransferType(t TransferType) { c.transferType = t }

// SetConnectionMode selects active or passive data connections for
// subsequent transfers and listings.
func (c *Client) SetConnectionMode(m ConnMode) { c.connMode = m }

// SetUseEPSVWithIPv4 makes the client use the extended EPSV/EPRT
// commands even over IPv4. Over IPv6 they are always used.
func (c *Client) SetUseEPSVWithIPv4(use bool) { c.epsvWithIPv4 = use }

// SetListHidden makes subsequent List and NameList calls ask the
// server to include hidden files ("-a").
func (c *Client) SetListHidden(hidden bool) { c.listHidden = hidden }

// SetControlKeepAlive arms the transfer-time keep-alive. While a data
// transfer runs, a background sender writes a NOOP on the control
// channel whenever it has been idle for idle and awaits the reply
// within replyTimeout. A reply that does not arrive in time marks the
// session broken.
//
// idle 0 disables the keep-alive. replyTimeout 0 falls back to the
// session timeout.
func (c *Client) SetControlKeepAlive(idle, replyTimeout time.Duration) {
	c.keepAliveIdle = idle
	c.keepAliveReply = replyTimeout
}

// SetBandwidthLimit caps data-connection throughput at bytesPerSec in
// each direction. Zero or negative removes the cap.
func (c *Client) SetBandwidthLimit(bytesPerSec int64) { c.bytesPerSec = bytesPerSec }

// SetTransferListener attaches a progress observer for subsequent
// transfers. Pass nil to detach.
func (c *Client) SetTransferListener(l TransferListener) { c.listener = l }

// SetCommandListener attaches an observer for the control-channel
// conversation. Pass nil to detach.
func (c *Client) SetCommandListener(l CommandListener) { c.cmdListener = l }

// Noop sends a NOOP. It fails if the control connection has silently
// died, which makes it a cheap liveness check.
func (c *Client) Noop() error {
	if err := c.requireAuth("NOOP"); err != nil {
		return err
	}
	_, err := c.expectCompletion("NOOP")
	return err
}

// DoCommand sends an arbitrary command and returns the reply without
// interpreting it beyond classification. The caller decides what a
// negative reply means.
func (c *Client) DoCommand(command string, args ...string) (*Reply, error) {
	if err := c.requireAuth(command); err != nil {
		return nil, err
	}
	return c.sendCommand(command, args...)
}

// Syst returns the server's system type (SYST).
func (c *Client) Syst() (string, error) {
	reply, err := c.expectCompletion("SYST")
	if err != nil {
		return "", err
	}
	return reply.Text, nil
}

// Features queries the server's capabilities with FEAT and returns
// them as a map of upper-cased capability name to parameters.
//
// Feature discovery is advisory: a server that rejects FEAT yields a
// nil map and a nil error. Only an I/O failure is an error.
func (c *Client) Features() (map[string]string, error) {
	if c.features != nil {
		return c.features, nil
	}

	reply, err := c.sendCommand("FEAT")
	if err != nil {
		return nil, err
	}
	if reply.Class() != ReplyPositiveCompletion {
		c.logger.Debug("FEAT not supported", "code", reply.Code)
		return nil, nil
	}

	c.features = parseFeatures(reply.Lines)
	return c.features, nil
}

// HasFeature reports whether the server advertises the named
// capability, querying FEAT on first use.
func (c *Client) HasFeature(name string) bool {
	feats, err := c.Features()
	if err != nil {
		return false
	}
	_, ok := feats[strings.ToUpper(name)]
	return ok
}

// parseFeatures extracts one capability per line from a FEAT reply.
// Both the RFC 2389 layout (space-indented lines) and the traditional
// "211-CAP" layout are accepted; the opening and closing status lines
// are skipped.
func parseFeatures(lines []string) map[string]string {
	feats := make(map[string]string)
	for i, line := range lines {
		if i == 0 || i == len(lines)-1 {
			continue
		}

		capa := line
		if strings.HasPrefix(line, " ") {
			capa = strings.TrimSpace(line)
		} else if len(line) >= 4 && (line[3] == '-' || line[3] == ' ') {
			capa = strings.TrimSpace(line[4:])
		}
		if capa == "" {
			continue
		}

		name, params, _ := strings.Cut(capa, " ")
		feats[strings.ToUpper(name)] = params
	}
	return feats
}

// Logout signs off gracefully with QUIT, expecting a positive
// completion, and then tears the connection down.
func (c *Client) Logout() error {
	if c.state == stateClosed {
		return nil
	}

	reply, err := c.sendCommand("QUIT")
	if err != nil {
		_ = c.Close()
		return err
	}
	if reply.Class() != ReplyPositiveCompletion {
		_ = c.Close()
		return &ProtocolError{Command: "QUIT", Code: reply.Code, Text: reply.Text}
	}
	return c.Close()
}

// Close unconditionally tears down the control connection and any
// lingering data connection. It is idempotent and safe to call at any
// point, including after a failed Login.
func (c *Client) Close() error {
	if c.state == stateClosed {
		return nil
	}
	c.state = stateClosed

	var result *multierror.Error

	c.mu.Lock()
	if c.dataConn != nil {
		result = multierror.Append(result, c.dataConn.Close())
		c.dataConn = nil
	}
	c.mu.Unlock()

	if c.conn != nil {
		result = multierror.Append(result, c.conn.Close())
	}
	return result.ErrorOrNil()
}

var errClosed = fmt.Errorf("session is closed")

// requireAuth guards the operations that are only valid once
// authenticated.
func (c *Client) requireAuth(op string) error {
	switch c.state {
	case stateClosed:
		return &ConnectionError{Op: op, Err: errClosed}
	case stateAuthenticated:
		return nil
	default:
		return &AuthError{Text: "not authenticated"}
	}
}

// markBroken records an unrecoverable control-connection failure: the
// session moves straight to closed and the socket is torn down, which
// also unblocks any in-flight read or write.
func (c *Client) markBroken() {
	if c.state == stateClosed {
		return
	}
	c.state = stateClosed
	c.mu.Lock()
	if c.dataConn != nil {
		c.dataConn.Close()
		c.dataConn = nil
	}
	c.mu.Unlock()
	if c.conn != nil {
		c.conn.Close()
	}
}

// sendCommand writes one command on the control channel and reads its
// reply. Any I/O failure is fatal to the session.
func (c *Client) sendCommand(command string, args ...string) (*Reply, error) {
	if c.state == stateClosed {
		return nil, &ConnectionError{Op: command, Err: errClosed}
	}

	line := command
	if len(args) > 0 {
		line += " " + strings.Join(args, " ")
	}

	if c.cmdListener != nil {
		c.cmdListener.CommandSent(line)
	}
	c.logger.Debug("command", "line", maskLine(line))

	if err := c.writeControl(line); err != nil {
		c.markBroken()
		return nil, &ConnectionError{Op: command, Err: err}
	}

	reply, err := c.readControlReply()
	if err != nil {
		c.markBroken()
		return nil, &ConnectionError{Op: command, Err: err}
	}

	if c.cmdListener != nil {
		c.cmdListener.ReplyReceived(reply)
	}
	c.logger.Debug("reply", "code", reply.Code, "text", reply.Text)
	return reply, nil
}

// writeControl writes one CRLF-terminated line, serialized against the
// keep-alive sender.
func (c *Client) writeControl(line string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.timeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(c.conn, "%s\r\n", line)
	if err == nil {
		c.lastWrite = time.Now()
	}
	return err
}

// readControlReply reads one reply within the session timeout.
func (c *Client) readControlReply() (*Reply, error) {
	if c.timeout > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
			return nil, err
		}
	}
	return readReply(c.reader)
}

// expectCompletion sends a command and requires a 2xx reply.
func (c *Client) expectCompletion(command string, args ...string) (*Reply, error) {
	reply, err := c.sendCommand(command, args...)
	if err != nil {
		return nil, err
	}
	if reply.Class() != ReplyPositiveCompletion {
		return reply, &ProtocolError{Command: command, Code: reply.Code, Text: reply.Text}
	}
	return reply, nil
}

// expectCode sends a command and requires one exact reply code.
func (c *Client) expectCode(code int, command string, args ...string) (*Reply, error) {
	reply, err := c.sendCommand(command, args...)
	if err != nil {
		return nil, err
	}
	if reply.Code != code {
		return reply, &ProtocolError{Command: command, Code: reply.Code, Text: reply.Text}
	}
	return reply, nil
}

// syncType sends TYPE for the configured transfer type unless the
// server already acknowledged that value.
func (c *Client) syncType() error {
	want := c.transferType.wire()
	if c.wireType == want {
		return nil
	}
	if _, err := c.expectCode(200, "TYPE", want); err != nil {
		return err
	}
	c.wireType = want
	return nil
}

// maskLine hides the PASS argument in logs.
func maskLine(line string) string {
	if strings.HasPrefix(line, "PASS ") {
		return "PASS ****"
	}
	return line
}
