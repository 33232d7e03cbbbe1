package ftpc

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/spf13/afero"
)

// Option configures a Client at Dial time. Settings that may change
// over the life of a session (transfer type, connection mode, ...) are
// plain setters on Client instead.
type Option func(*Client) error

// WithTimeout sets the timeout applied to connecting and to every
// blocking read and write on both the control and data connections.
// The default is 30 seconds.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) error {
		if d < 0 {
			return fmt.Errorf("negative timeout %v", d)
		}
		c.timeout = d
		return nil
	}
}

// WithLogger enables debug logging of commands, replies and state
// changes through the given slog logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) error {
		if logger == nil {
			return fmt.Errorf("nil logger")
		}
		c.logger = logger
		return nil
	}
}

// WithDialer replaces the net.Dialer used for control and data
// connections (source address, socket keep-alives, ...).
func WithDialer(d *net.Dialer) Option {
	return func(c *Client) error {
		if d == nil {
			return fmt.Errorf("nil dialer")
		}
		c.dialer = d
		return nil
	}
}

// WithFS replaces the local filesystem used by Upload and Download.
// The default is the OS filesystem; tests typically pass
// afero.NewMemMapFs().
func WithFS(fs afero.Fs) Option {
	return func(c *Client) error {
		if fs == nil {
			return fmt.Errorf("nil filesystem")
		}
		c.fs = fs
		return nil
	}
}

// tlsMode is how (and whether) the control connection is secured.
type tlsMode int

const (
	tlsNone tlsMode = iota
	tlsExplicit
	tlsImplicit
)

func (m tlsMode) String() string {
	switch m {
	case tlsExplicit:
		return "explicit"
	case tlsImplicit:
		return "implicit"
	}
	return "none"
}

// WithExplicitTLS secures the session with explicit FTPS: the client
// connects in the clear, upgrades with AUTH TLS, and protects the data
// channel with PBSZ 0 / PROT P. config.ServerName should be set for
// certificate validation. A session cache is installed if the config
// has none, so data connections can resume the control-channel TLS
// session.
func WithExplicitTLS(config *tls.Config) Option {
	return func(c *Client) error {
		return c.setTLS(tlsExplicit, config)
	}
}

// WithImplicitTLS secures the session with implicit FTPS: the
// connection is TLS from the first byte, conventionally on port 990.
func WithImplicitTLS(config *tls.Config) Option {
	return func(c *Client) error {
		return c.setTLS(tlsImplicit, config)
	}
}

func (c *Client) setTLS(mode tlsMode, config *tls.Config) error {
	if c.tlsMode != tlsNone && c.tlsMode != mode {
		return fmt.Errorf("%s TLS cannot be combined with %s TLS", mode, c.tlsMode)
	}
	if config == nil {
		config = &tls.Config{}
	}
	if config.ClientSessionCache == nil {
		config.ClientSessionCache = tls.NewLRUClientSessionCache(0)
	}
	c.tlsConfig = config
	c.tlsMode = mode
	return nil
}
