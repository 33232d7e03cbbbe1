// Command ftpc is a small FTP/FTPS client: it connects, logs in, and
// performs one operation per invocation (upload, download, one of the
// four listing commands, a FEAT query, or an arbitrary command) while
// echoing the whole control-channel conversation.
//
// Usage:
//
//	ftpc [flags] <host[:port]> <user> <password> [remote [local]]
//
// The default operation downloads remote into local.
package main

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/odalmau/ftpc"
)

func main() {
	app := &cli.App{
		Name:      "ftpc",
		Usage:     "transfer files and query listings over FTP/FTPS",
		ArgsUsage: "<host[:port]> <user> <password> [remote [local]]",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "active", Aliases: []string{"a"}, Usage: "use active (PORT) data connections instead of passive"},
			&cli.BoolFlag{Name: "binary", Aliases: []string{"b"}, Usage: "use binary transfer mode (default is ASCII)"},
			&cli.StringFlag{Name: "command", Aliases: []string{"c"}, Usage: "issue an arbitrary `CMD` (remote is used as its argument if given)"},
			&cli.BoolFlag{Name: "mlsd", Aliases: []string{"d"}, Usage: "list directory details with MLSD (remote is the pathname if given)"},
			&cli.BoolFlag{Name: "epsv4", Aliases: []string{"e"}, Usage: "use EPSV/EPRT even over IPv4"},
			&cli.BoolFlag{Name: "feat", Aliases: []string{"f"}, Usage: "issue FEAT (remote, if given, names a capability to check)"},
			&cli.BoolFlag{Name: "hidden", Aliases: []string{"H"}, Usage: "include hidden files (applies to --list and --nlst)"},
			&cli.DurationFlag{Name: "keepalive", Aliases: []string{"k"}, Usage: "send control-channel NOOPs when idle longer than `DUR` during transfers"},
			&cli.DurationFlag{Name: "reply-timeout", Aliases: []string{"w"}, Usage: "wait at most `DUR` for each keep-alive reply"},
			&cli.BoolFlag{Name: "list", Aliases: []string{"l"}, Usage: "list files with LIST (remote is the pathname if given)"},
			&cli.BoolFlag{Name: "nlst", Aliases: []string{"n"}, Usage: "list file names with NLST (remote is the pathname if given)"},
			&cli.BoolFlag{Name: "tls", Aliases: []string{"p"}, Usage: "connect with explicit FTPS (AUTH TLS)"},
			&cli.BoolFlag{Name: "store", Aliases: []string{"s"}, Usage: "store the local file on the server (upload)"},
			&cli.BoolFlag{Name: "mlst", Aliases: []string{"t"}, Usage: "list file details with MLST (remote is the pathname if given)"},
			&cli.Int64Flag{Name: "limit", Usage: "cap transfer throughput at `BYTES` per second"},
			&cli.BoolFlag{Name: "progress", Usage: "print a hash mark per transferred megabyte"},
			&cli.BoolFlag{Name: "debug", Usage: "enable debug logging"},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx *cli.Context) error {
	args := ctx.Args().Slice()

	// Listings, FEAT and arbitrary commands work without file
	// arguments; transfers need both a remote and a local path.
	listingOp := ctx.Bool("list") || ctx.Bool("nlst") || ctx.Bool("mlsd") || ctx.Bool("mlst") ||
		ctx.Bool("feat") || ctx.String("command") != ""
	minArgs := 5
	if listingOp {
		minArgs = 3
	}
	if len(args) < minArgs {
		cli.ShowAppHelp(ctx)
		return cli.Exit("", 1)
	}

	addr := args[0]
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, "21")
	}
	user, pass := args[1], args[2]

	var remote, local string
	if len(args) > 3 {
		remote = args[3]
	}
	if len(args) > 4 {
		local = args[4]
	}

	opts := []ftpc.Option{ftpc.WithTimeout(30 * time.Second)}
	if ctx.Bool("tls") {
		host, _, _ := net.SplitHostPort(addr)
		opts = append(opts, ftpc.WithExplicitTLS(&tls.Config{ServerName: host}))
	}
	if ctx.Bool("debug") {
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
		opts = append(opts, ftpc.WithLogger(logger))
	}

	client, err := ftpc.Dial(addr, opts...)
	if err != nil {
		return fmt.Errorf("could not connect to %s: %w", addr, err)
	}
	defer client.Close()
	fmt.Printf("Connected to %s\n", addr)

	// Echo every command and reply, with the password masked.
	client.SetCommandListener(ftpc.ReplyPrinter(os.Stdout))

	if err := client.Login(user, pass); err != nil {
		return err
	}

	if syst, err := client.Syst(); err == nil {
		fmt.Printf("Remote system is %s\n", syst)
	}

	if ctx.Bool("binary") {
		client.SetTransferType(ftpc.TypeBinary)
	}
	if ctx.Bool("active") {
		client.SetConnectionMode(ftpc.ModeActive)
	}
	client.SetUseEPSVWithIPv4(ctx.Bool("epsv4"))
	client.SetListHidden(ctx.Bool("hidden"))
	if d := ctx.Duration("keepalive"); d > 0 {
		client.SetControlKeepAlive(d, ctx.Duration("reply-timeout"))
	}
	if n := ctx.Int64("limit"); n > 0 {
		client.SetBandwidthLimit(n)
	}
	if ctx.Bool("progress") {
		client.SetTransferListener(hashMarks(os.Stderr))
	}

	if err := dispatch(ctx, client, remote, local); err != nil {
		return err
	}

	// Confirm the control connection survived the operation, then
	// sign off.
	if err := client.Noop(); err != nil {
		return err
	}
	return client.Logout()
}

func dispatch(ctx *cli.Context, client *ftpc.Client, remote, local string) error {
	switch {
	case ctx.Bool("store"):
		return client.Upload(local, remote)

	case ctx.Bool("list"):
		entries, err := client.List(remote)
		if err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Println(formatEntry(e))
		}
		return nil

	case ctx.Bool("mlsd"):
		entries, err := client.MListDir(remote)
		if err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Println(e.Raw)
			fmt.Println(formatEntry(e))
		}
		return nil

	case ctx.Bool("mlst"):
		entry, err := client.MListFile(remote)
		if err != nil {
			return err
		}
		fmt.Println(formatEntry(entry))
		return nil

	case ctx.Bool("nlst"):
		names, err := client.NameList(remote)
		if err != nil {
			return err
		}
		for _, name := range names {
			fmt.Println(name)
		}
		return nil

	case ctx.Bool("feat"):
		feats, err := client.Features()
		if err != nil {
			return err
		}
		if feats == nil {
			fmt.Println("FEAT not supported by this server")
			return nil
		}
		if remote != "" {
			if params, ok := feats[strings.ToUpper(remote)]; ok {
				fmt.Printf("FEAT supports %s %s\n", strings.ToUpper(remote), params)
			} else {
				fmt.Printf("FEAT does not list %s\n", remote)
			}
		}
		return nil

	case ctx.String("command") != "":
		var reply *ftpc.Reply
		var err error
		if remote != "" {
			reply, err = client.DoCommand(ctx.String("command"), remote)
		} else {
			reply, err = client.DoCommand(ctx.String("command"))
		}
		if err != nil {
			return err
		}
		if !reply.Positive() {
			return fmt.Errorf("command failed: %d %s", reply.Code, reply.Text)
		}
		return nil

	default:
		return client.Download(remote, local)
	}
}

// formatEntry renders an entry in a stable one-line form.
func formatEntry(e *ftpc.Entry) string {
	mod := ""
	if !e.ModTime.IsZero() {
		mod = e.ModTime.Format("2006-01-02 15:04")
	}
	return fmt.Sprintf("%-7s %12d  %-16s %s", e.Type, e.Size, mod, e.Name)
}

// hashMarks prints one '#' per transferred megabyte, the classic FTP
// progress display.
func hashMarks(w *os.File) ftpc.TransferListener {
	var printed int64
	return ftpc.ListenerFunc(func(total, _ int64) {
		for megs := total / 1_000_000; printed < megs; printed++ {
			fmt.Fprint(w, "#")
		}
	})
}
