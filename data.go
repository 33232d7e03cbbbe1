package ftpc

import (
	"crypto/tls"
	"fmt"
	"net"
	"regexp"
	"strconv"
	"time"
)

var (
	// 227 Entering Passive Mode (h1,h2,h3,h4,p1,p2)
	pasvPattern = regexp.MustCompile(`\((\d+),(\d+),(\d+),(\d+),(\d+),(\d+)\)`)

	// 229 Entering Extended Passive Mode (|||port|)
	epsvPattern = regexp.MustCompile(`\(\|\|\|(\d+)\|\)`)
)

// parsePASV extracts "host:port" from a PASV reply.
func parsePASV(text string) (string, error) {
	m := pasvPattern.FindStringSubmatch(text)
	if m == nil {
		return "", fmt.Errorf("unparseable PASV reply %q", text)
	}

	var octets [4]int
	for i := range octets {
		v, err := strconv.Atoi(m[i+1])
		if err != nil || v > 255 {
			return "", fmt.Errorf("bad address octet %q in PASV reply", m[i+1])
		}
		octets[i] = v
	}

	hi, err1 := strconv.Atoi(m[5])
	lo, err2 := strconv.Atoi(m[6])
	if err1 != nil || err2 != nil || hi > 255 || lo > 255 {
		return "", fmt.Errorf("bad port in PASV reply %q", text)
	}

	host := fmt.Sprintf("%d.%d.%d.%d", octets[0], octets[1], octets[2], octets[3])
	return net.JoinHostPort(host, strconv.Itoa(hi*256+lo)), nil
}

// parseEPSV extracts the port from an EPSV reply. EPSV never carries an
// address; the data connection goes to the control-connection host.
func parseEPSV(text string) (string, error) {
	m := epsvPattern.FindStringSubmatch(text)
	if m == nil {
		return "", fmt.Errorf("unparseable EPSV reply %q", text)
	}
	port, err := strconv.Atoi(m[1])
	if err != nil || port < 1 || port > 65535 {
		return "", fmt.Errorf("bad port %q in EPSV reply", m[1])
	}
	return m[1], nil
}

// formatPORT renders a local "host:port" as the h1,h2,h3,h4,p1,p2
// argument of PORT. IPv4 only.
func formatPORT(addr string) (string, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", err
	}
	ip := net.ParseIP(host)
	if ip == nil || ip.To4() == nil {
		return "", fmt.Errorf("PORT needs an IPv4 address, have %q", host)
	}
	ip = ip.To4()
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", fmt.Errorf("bad port %q", portStr)
	}
	return fmt.Sprintf("%d,%d,%d,%d,%d,%d", ip[0], ip[1], ip[2], ip[3], port/256, port%256), nil
}

// formatEPRT renders a local "host:port" as the |prt|addr|port|
// argument of EPRT (RFC 2428). Works for both address families.
func formatEPRT(addr string) (string, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", err
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return "", fmt.Errorf("bad IP address %q", host)
	}
	family := 2
	if ip.To4() != nil {
		family = 1
	}
	return fmt.Sprintf("|%d|%s|%s|", family, host, portStr), nil
}

// substituteDataHost replaces a 0.0.0.0 PASV address with the control
// connection host. Some NATed servers advertise the wildcard address.
func substituteDataHost(dataAddr, controlHost string) string {
	host, port, err := net.SplitHostPort(dataAddr)
	if err != nil {
		return dataAddr
	}
	if host == "0.0.0.0" {
		return net.JoinHostPort(controlHost, port)
	}
	return dataAddr
}

// controlIsIPv6 reports whether the control connection peer is IPv6,
// which forces the extended EPSV/EPRT commands.
func (c *Client) controlIsIPv6() bool {
	tcp, ok := c.conn.RemoteAddr().(*net.TCPAddr)
	return ok && tcp.IP.To4() == nil
}

// openDataConn negotiates a data connection using the configured
// connection mode. The two branches are an explicit strategy choice:
// active binds a local listener and tells the server where to connect;
// passive asks the server for an address and connects to it.
func (c *Client) openDataConn() (net.Conn, error) {
	if c.connMode == ModeActive {
		return c.openActive()
	}
	return c.openPassive()
}

// openPassive sends EPSV or PASV, parses the advertised endpoint and
// connects to it.
func (c *Client) openPassive() (net.Conn, error) {
	var addr string

	if c.controlIsIPv6() || c.epsvWithIPv4 {
		reply, err := c.sendCommand("EPSV")
		if err != nil {
			return nil, err
		}
		if reply.Class() != ReplyPositiveCompletion {
			return nil, &ProtocolError{Command: "EPSV", Code: reply.Code, Text: reply.Text}
		}
		port, err := parseEPSV(reply.Text)
		if err != nil {
			return nil, &ProtocolError{Command: "EPSV", Code: reply.Code, Text: reply.Text}
		}
		addr = net.JoinHostPort(c.host, port)
	} else {
		reply, err := c.sendCommand("PASV")
		if err != nil {
			return nil, err
		}
		if reply.Class() != ReplyPositiveCompletion {
			return nil, &ProtocolError{Command: "PASV", Code: reply.Code, Text: reply.Text}
		}
		addr, err = parsePASV(reply.Text)
		if err != nil {
			return nil, &ProtocolError{Command: "PASV", Code: reply.Code, Text: reply.Text}
		}
		addr = substituteDataHost(addr, c.host)
	}

	conn, err := c.dialer.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("data connect to %s: %w", addr, err)
	}

	if c.tlsConfig != nil {
		tlsConn := tls.Client(conn, c.tlsConfig)
		if err := tlsConn.Handshake(); err != nil {
			conn.Close()
			return nil, fmt.Errorf("data connection TLS handshake: %w", err)
		}
		conn = tlsConn
	}

	return &deadlineConn{Conn: conn, timeout: c.timeout}, nil
}

// openActive binds a listener next to the control connection's local
// address and announces it with PORT or EPRT. The accept is deferred
// until the server actually connects, which only happens once the
// transfer command has been sent.
func (c *Client) openActive() (net.Conn, error) {
	localHost, _, err := net.SplitHostPort(c.conn.LocalAddr().String())
	if err != nil {
		localHost = "127.0.0.1"
	}

	ln, err := net.Listen("tcp", net.JoinHostPort(localHost, "0"))
	if err != nil {
		if ln, err = net.Listen("tcp", ":0"); err != nil {
			return nil, fmt.Errorf("binding active-mode listener: %w", err)
		}
	}

	addr := ln.Addr().String()
	extended := c.controlIsIPv6() || c.epsvWithIPv4

	var reply *Reply
	var cmd string
	if extended {
		cmd = "EPRT"
		arg, ferr := formatEPRT(addr)
		if ferr != nil {
			ln.Close()
			return nil, ferr
		}
		reply, err = c.sendCommand(cmd, arg)
	} else {
		cmd = "PORT"
		arg, ferr := formatPORT(addr)
		if ferr != nil {
			ln.Close()
			return nil, ferr
		}
		reply, err = c.sendCommand(cmd, arg)
	}
	if err != nil {
		ln.Close()
		return nil, err
	}
	if reply.Class() != ReplyPositiveCompletion {
		ln.Close()
		return nil, &ProtocolError{Command: cmd, Code: reply.Code, Text: reply.Text}
	}

	return &activeConn{ln: ln, tlsConfig: c.tlsConfig, timeout: c.timeout}, nil
}

// activeConn defers the Accept of an active-mode data connection until
// the first read or write, since the server only connects back after
// receiving the transfer command.
type activeConn struct {
	ln        net.Listener
	conn      net.Conn
	tlsConfig *tls.Config
	timeout   time.Duration
}

func (a *activeConn) ensure() error {
	if a.conn != nil {
		return nil
	}
	if tl, ok := a.ln.(*net.TCPListener); ok && a.timeout > 0 {
		_ = tl.SetDeadline(time.Now().Add(a.timeout))
	}
	conn, err := a.ln.Accept()
	if err != nil {
		return err
	}

	// The server dialed us, but TLS roles follow the control
	// connection, so we still handshake as the client.
	if a.tlsConfig != nil {
		tlsConn := tls.Client(conn, a.tlsConfig)
		if a.timeout > 0 {
			_ = conn.SetDeadline(time.Now().Add(a.timeout))
		}
		if err := tlsConn.Handshake(); err != nil {
			conn.Close()
			return err
		}
		_ = conn.SetDeadline(time.Time{})
		conn = tlsConn
	}

	a.conn = conn
	return nil
}

func (a *activeConn) Read(p []byte) (int, error) {
	if err := a.ensure(); err != nil {
		return 0, err
	}
	if a.timeout > 0 {
		_ = a.conn.SetReadDeadline(time.Now().Add(a.timeout))
	}
	return a.conn.Read(p)
}

func (a *activeConn) Write(p []byte) (int, error) {
	if err := a.ensure(); err != nil {
		return 0, err
	}
	if a.timeout > 0 {
		_ = a.conn.SetWriteDeadline(time.Now().Add(a.timeout))
	}
	return a.conn.Write(p)
}

func (a *activeConn) Close() error {
	var connErr error
	if a.conn != nil {
		connErr = a.conn.Close()
	}
	lnErr := a.ln.Close()
	if connErr != nil {
		return connErr
	}
	return lnErr
}

func (a *activeConn) LocalAddr() net.Addr {
	if a.conn != nil {
		return a.conn.LocalAddr()
	}
	return a.ln.Addr()
}

func (a *activeConn) RemoteAddr() net.Addr {
	if a.conn != nil {
		return a.conn.RemoteAddr()
	}
	return nil
}

func (a *activeConn) SetDeadline(t time.Time) error {
	if a.conn != nil {
		return a.conn.SetDeadline(t)
	}
	return nil
}

func (a *activeConn) SetReadDeadline(t time.Time) error {
	if a.conn != nil {
		return a.conn.SetReadDeadline(t)
	}
	return nil
}

func (a *activeConn) SetWriteDeadline(t time.Time) error {
	if a.conn != nil {
		return a.conn.SetWriteDeadline(t)
	}
	return nil
}

// deadlineConn re-arms a read/write deadline before every operation so
// a stalled transfer cannot hang past the session timeout.
type deadlineConn struct {
	net.Conn
	timeout time.Duration
}

func (d *deadlineConn) Read(p []byte) (int, error) {
	if d.timeout > 0 {
		if err := d.Conn.SetReadDeadline(time.Now().Add(d.timeout)); err != nil {
			return 0, err
		}
	}
	return d.Conn.Read(p)
}

func (d *deadlineConn) Write(p []byte) (int, error) {
	if d.timeout > 0 {
		if err := d.Conn.SetWriteDeadline(time.Now().Add(d.timeout)); err != nil {
			return 0, err
		}
	}
	return d.Conn.Write(p)
}

// openDataCmd negotiates a data connection, sends the command that
// uses it, and hands the connection to the caller once the server
// acknowledges with a preliminary (1xx) or completion (2xx) reply.
// The caller must end the exchange with finishData.
func (c *Client) openDataCmd(command string, args ...string) (net.Conn, error) {
	if err := c.requireAuth(command); err != nil {
		return nil, err
	}

	dataConn, err := c.openDataConn()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.dataConn = dataConn
	c.mu.Unlock()

	reply, err := c.sendCommand(command, args...)
	if err != nil {
		c.releaseData(dataConn)
		return nil, err
	}

	switch reply.Class() {
	case ReplyPositivePreliminary, ReplyPositiveCompletion:
		return dataConn, nil
	default:
		c.releaseData(dataConn)
		return nil, &ProtocolError{Command: command, Code: reply.Code, Text: reply.Text}
	}
}

// releaseData closes a data connection and forgets it without touching
// the control channel.
func (c *Client) releaseData(dataConn net.Conn) {
	dataConn.Close()
	c.mu.Lock()
	if c.dataConn == dataConn {
		c.dataConn = nil
	}
	c.mu.Unlock()
}

// finishData closes the data connection and reads the transfer
// completion reply from the control channel. The server only sends
// that reply once it sees the data connection close (upload) or has
// finished writing (download), so this is always the last step.
func (c *Client) finishData(dataConn net.Conn) (*Reply, error) {
	closeErr := dataConn.Close()

	c.mu.Lock()
	if c.dataConn == dataConn {
		c.dataConn = nil
	}
	c.mu.Unlock()

	reply, err := c.readControlReply()
	if err != nil {
		c.markBroken()
		return nil, &ConnectionError{Op: "transfer completion", Err: err}
	}
	if c.cmdListener != nil {
		c.cmdListener.ReplyReceived(reply)
	}
	c.logger.Debug("transfer finished", "code", reply.Code, "text", reply.Text)

	if closeErr != nil {
		return reply, fmt.Errorf("closing data connection: %w", closeErr)
	}
	return reply, nil
}
