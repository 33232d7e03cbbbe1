// Package ftpc implements an FTP client session: one control
// connection with its authentication state, plus the configuration
// that governs data connections (transfer type, active vs passive
// negotiation, keep-alive, bandwidth cap).
//
// # Basic usage
//
//	client, err := ftpc.Dial("ftp.example.com:21")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	if err := client.Login("user", "secret"); err != nil {
//	    log.Fatal(err)
//	}
//
//	client.SetTransferType(ftpc.TypeBinary)
//	if err := client.Upload("build.tar.gz", "/incoming/build.tar.gz"); err != nil {
//	    log.Fatal(err)
//	}
//
// # Session lifecycle
//
// A session moves Unconnected → Connected (Dial succeeded and the
// greeting was positive) → Authenticated (Login succeeded) → Closed
// (Logout, Close, or an unrecoverable I/O failure). Transfers,
// listings, NOOP and DoCommand are only accepted while authenticated;
// nothing is accepted once closed. Close is idempotent.
//
// # FTPS
//
// Pass WithExplicitTLS for AUTH TLS upgrades on port 21, or
// WithImplicitTLS for TLS-from-the-first-byte servers on port 990.
// Data connections inherit the TLS configuration and reuse the
// control-channel session.
//
// # Errors
//
// Failures come back as one of four kinds: *ConnectionError (the
// control connection could not be established or died; the session
// is closed), *AuthError (login rejected), *TransferError (a data
// transfer or listing failed, or the server sent a negative
// completion), and *ProtocolError (an unexpected reply to some other
// command). All carry the server's last reply code and text when one
// was received. The client never retries on its own.
package ftpc
