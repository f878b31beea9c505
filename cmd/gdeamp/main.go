package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	flag "github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/drunlade/go-flamp/amp"
	"github.com/drunlade/go-flamp/internal/config"
	"github.com/drunlade/go-flamp/internal/remote"
)

var (
	dir         = flag.StringP("dir", "d", "", "directory for received files (default: .)")
	overwrite   = flag.BoolP("overwrite", "y", false, "overwrite existing files")
	protect     = flag.BoolP("protect", "p", false, "protect existing files")
	maxFiles    = flag.Int("max", 0, "stop after N files (0 = until input ends)")
	idleTimeout = flag.Duration("idle-timeout", 0, "stop after this long without input")
	missing     = flag.Bool("missing", false, "report incomplete transfers on exit")
	configFile  = flag.String("config", "", "configuration file (default: $"+config.EnvVar+")")
	timezone    = flag.String("tz", "", "zone FILE timestamps are read in (default: local)")
	logFile     = flag.String("log", "", "protocol log file (for debugging)")
	logLevel    = flag.String("log-level", "", "debug, info or error (default: info)")
	trace       = flag.Bool("trace", false, "log every channel line at debug level")
	sshHost     = flag.String("ssh", "", "listen through a modem program on this SSH host")
	sshUser     = flag.String("ssh-user", "", "SSH username")
	sshKey      = flag.String("ssh-key", "", "SSH private key file")
	sshCommand  = flag.String("ssh-command", "", "modem receive command on the SSH host")
	insecure    = flag.Bool("insecure", false, "skip SSH host key verification")
	verbose     = flag.BoolP("verbose", "v", false, "verbose mode")
	quiet       = flag.BoolP("quiet", "q", false, "quiet mode")
	help        = flag.BoolP("help", "h", false, "show help")
	version     = flag.Bool("version", false, "show version")
)

const versionString = "gdeamp version " + amp.ProgramVersion

func main() {
	flag.Parse()

	if *help {
		showUsage(0)
	}

	if *version {
		fmt.Println(versionString)
		os.Exit(0)
	}

	station, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	sessionConfig, err := station.SessionConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	ctx, cancel := signalContext(sigChan)
	defer cancel()

	logger, closeLog, err := station.OpenLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	// Progress lines rewrite themselves, which only works on a terminal
	interactive := term.IsTerminal(int(os.Stderr.Fd()))
	outDir := station.Receive.OutputDir

	callbacks := &amp.Callbacks{
		OnNewFile: func(e amp.NewFileEvent) {
			if *verbose && !*quiet {
				fmt.Fprintf(os.Stderr, "New transfer: %s\n", e.Hash)
			}
		},
		OnProgress: func(hash, filename string, held, total int, rate float64) {
			if *quiet || !interactive {
				return
			}
			if filename == "" {
				filename = hash
			}
			if total > 0 {
				fmt.Fprintf(os.Stderr, "\r%s: %d/%d blocks (%.1f blocks/s)", filename, held, total, rate)
			} else {
				fmt.Fprintf(os.Stderr, "\r%s: %d blocks", filename, held)
			}
		},
		OnFileReceived: func(f *amp.File, content []byte) error {
			path, ok := outputPath(outDir, f.Name, station.Receive.Overwrite, *protect)
			if !ok {
				if !*quiet {
					fmt.Fprintf(os.Stderr, "\nSkipping %s (protected)\n", f.Name)
				}
				return nil
			}
			if err := writeFile(path, content, f.Modified); err != nil {
				return err
			}
			if !*quiet {
				if *verbose {
					fmt.Fprintf(os.Stderr, "\nReceived: %s (%d bytes, hash %s) -> %s\n", f.Name, len(content), f.Hash, path)
				} else {
					fmt.Fprintf(os.Stderr, "\n%s\n", path)
				}
			}
			return nil
		},
		OnError: func(err error, context string) bool {
			fmt.Fprintf(os.Stderr, "\nError in %s: %v\n", context, err)
			// A file that fails to decode should not end reception
			return !amp.IsCancelled(err)
		},
		OnEvent: func(e amp.Event) {
			if *verbose && e.Type == amp.EventBlockRejected {
				fmt.Fprintf(os.Stderr, "\nRejected block: %s\n", e.Message)
			}
		},
	}

	opts := []amp.Option{
		amp.WithConfig(sessionConfig),
		amp.WithCallbacks(callbacks),
		amp.WithContext(ctx),
		amp.WithSessionLogger(logger),
	}

	var decoder *amp.Deamp
	if station.SSH.Host != "" {
		decoder, err = receiveRemote(ctx, station, opts)
	} else {
		decoder, err = receiveLocal(ctx, flag.Args(), opts)
	}

	if *missing && decoder != nil {
		reportMissing(decoder)
	}
	if err != nil && !amp.IsTimeout(err) {
		if !*quiet {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// loadConfig reads the configuration file and applies flags that were set
// explicitly on the command line.
func loadConfig() (*config.Config, error) {
	var station *config.Config
	var err error
	if *configFile != "" {
		station, err = config.LoadFile(*configFile)
	} else {
		station, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	set := func(name string) bool { return flag.CommandLine.Changed(name) }
	if set("dir") {
		station.Receive.OutputDir = *dir
	}
	if set("overwrite") {
		station.Receive.Overwrite = *overwrite
	}
	if set("idle-timeout") {
		station.Receive.IdleTimeout = *idleTimeout
	}
	if set("tz") {
		station.Timezone = *timezone
	}
	if set("log") {
		station.LogFile = *logFile
	}
	if set("log-level") {
		station.LogLevel = *logLevel
	}
	if set("trace") {
		station.TraceChannel = *trace
	}
	if set("ssh") {
		station.SSH.Host = *sshHost
	}
	if set("ssh-user") {
		station.SSH.User = *sshUser
	}
	if set("ssh-key") {
		station.SSH.KeyFile = *sshKey
	}
	if set("ssh-command") {
		station.SSH.ReceiveCommand = *sshCommand
	}
	return station, station.Validate()
}

// receiveLocal decodes the named capture files in order, or stdin when none
// are given.
func receiveLocal(ctx context.Context, files []string, opts []amp.Option) (*amp.Deamp, error) {
	var input io.Reader = os.Stdin
	if len(files) > 0 {
		readers := make([]io.Reader, 0, len(files))
		for _, name := range files {
			f, err := os.Open(name)
			if err != nil {
				return nil, err
			}
			defer f.Close()
			readers = append(readers, f)
		}
		input = io.MultiReader(readers...)
	}

	session := amp.NewSession(input, nil, opts...)
	err := session.ReceiveFiles(ctx, *maxFiles)
	return session.Decoder(), err
}

// receiveRemote runs the modem receive command over SSH and decodes its
// output.
func receiveRemote(ctx context.Context, station *config.Config, opts []amp.Option) (*amp.Deamp, error) {
	ro := remote.FromConfig(station.SSH)
	ro.Insecure = *insecure
	client, err := remote.Dial(ro)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", ro.Host, err)
	}
	defer client.Close()

	sshSession, err := client.NewSession()
	if err != nil {
		return nil, err
	}
	s, err := amp.NewSSHSession(sshSession, opts...)
	if err != nil {
		sshSession.Close()
		return nil, err
	}
	defer s.Close()

	// The modem's diagnostics are useful while tuning in
	if *verbose {
		go io.Copy(os.Stderr, s.Stderr())
	} else {
		go io.Copy(io.Discard, s.Stderr())
	}

	if !*quiet {
		fmt.Fprintf(os.Stderr, "Listening on %s: %s\n", ro.Host, station.SSH.ReceiveCommand)
	}
	err = s.ReceiveFiles(ctx, station.SSH.ReceiveCommand, *maxFiles)
	return s.Decoder(), err
}

// reportMissing prints the transfers still incomplete and the blocks to ask
// the sender for.
func reportMissing(d *amp.Deamp) {
	for _, hash := range d.Files() {
		f, ok := d.GetFile(hash)
		if !ok {
			continue
		}
		name := f.Name
		if name == "" {
			name = "(no FILE block)"
		}
		needed := f.BlocksNeeded()
		switch {
		case needed == nil:
			fmt.Fprintf(os.Stderr, "%s %s: no SIZE block, %d blocks held\n", hash, name, len(f.BlocksSeen()))
		case len(needed) == 0:
			fmt.Fprintf(os.Stderr, "%s %s: all blocks held\n", hash, name)
		default:
			fmt.Fprintf(os.Stderr, "%s %s: missing %s\n", hash, name, formatBlockList(needed))
		}
	}
}

func signalContext(sigChan chan os.Signal) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-sigChan
		cancel()
	}()
	return ctx, cancel
}

func showUsage(exitcode int) {
	fmt.Fprintf(os.Stderr, `%s - receive files broadcast with the AMP-2 protocol

Usage: %s [options] [capture...]

Reads stdin, the named capture files, or a modem program over SSH.

Options:
  -d, --dir DIR          directory for received files (default: .)
  -y, --overwrite        overwrite existing files
  -p, --protect          protect existing files
      --max N            stop after N files
      --idle-timeout D   stop after this long without input
      --missing          report incomplete transfers on exit
      --config FILE      configuration file (default: $%s)
      --tz ZONE          zone FILE timestamps are read in (default: local)
      --log FILE         protocol log file, - for stderr (for debugging)
      --log-level LEVEL  debug, info or error (default: info)
      --trace            log every channel line at debug level
      --ssh HOST         listen through a modem program on HOST
      --ssh-user USER    SSH username
      --ssh-key FILE     SSH private key (password from $%s)
      --ssh-command CMD  modem receive command (default: minimodem --rx 300)
      --insecure         skip SSH host key verification
  -h, --help             show this help message
  -q, --quiet            quiet mode, minimal output
  -v, --verbose          verbose mode
      --version          show version

Examples:
  minimodem --rx 300 | %s -d inbox      # Receive from a local modem
  %s --missing capture.txt              # Decode a saved capture
  %s --ssh radio.local --max 1          # Receive one file remotely

`, versionString, os.Args[0], config.EnvVar, remote.PasswordEnv, os.Args[0], os.Args[0], os.Args[0])
	os.Exit(exitcode)
}
