package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/drunlade/go-flamp/amp"
	"github.com/drunlade/go-flamp/internal/config"
	"github.com/drunlade/go-flamp/internal/remote"
)

var (
	blockSize     = flag.IntP("block-size", "b", amp.DefaultBlockSize, "DATA block size")
	compress      = flag.StringP("compress", "c", "", "compress with lzma, zstd or lz4")
	forceCompress = flag.Bool("force-compress", false, "keep compression even when it does not pay off")
	base          = flag.String("base", "", "base encoding: base64, base91 or none")
	from          = flag.String("from", "", "sending station call sign")
	to            = flag.String("to", "", "recipient call sign")
	desc          = flag.String("desc", "", "file description")
	blocks        = flag.String("blocks", "", "send only these DATA blocks, e.g. 1,3,5-7")
	noHeaders     = flag.Bool("no-headers", false, "with --blocks, omit header blocks and preamble")
	noProg        = flag.Bool("no-prog", false, "omit the PROG block")
	noEOF         = flag.Bool("no-eof", false, "omit the EOF control block")
	noEOT         = flag.Bool("no-eot", false, "omit the EOT control block")
	lineDelay     = flag.Duration("line-delay", 0, "pause between lines")
	configFile    = flag.String("config", "", "configuration file (default: $"+config.EnvVar+")")
	timezone      = flag.String("tz", "", "zone for FILE timestamps (default: local)")
	logFile       = flag.String("log", "", "protocol log file (for debugging)")
	logLevel      = flag.String("log-level", "", "debug, info or error (default: info)")
	trace         = flag.Bool("trace", false, "log every channel line at debug level")
	sshHost       = flag.String("ssh", "", "broadcast through a modem program on this SSH host")
	sshUser       = flag.String("ssh-user", "", "SSH username")
	sshKey        = flag.String("ssh-key", "", "SSH private key file")
	sshCommand    = flag.String("ssh-command", "", "modem transmit command on the SSH host")
	insecure      = flag.Bool("insecure", false, "skip SSH host key verification")
	verbose       = flag.BoolP("verbose", "v", false, "verbose mode")
	quiet         = flag.BoolP("quiet", "q", false, "quiet mode")
	help          = flag.BoolP("help", "h", false, "show help")
	version       = flag.Bool("version", false, "show version")
)

const versionString = "gamp version " + amp.ProgramVersion

func main() {
	flag.CommandLine.Lookup("compress").NoOptDefVal = amp.CompressionLZMA
	flag.Parse()

	if *help {
		showUsage(0)
	}

	if *version {
		fmt.Println(versionString)
		os.Exit(0)
	}

	// Get files from command line
	files := flag.Args()
	if len(files) == 0 {
		fmt.Fprintf(os.Stderr, "%s: no files specified\n", os.Args[0])
		showUsage(1)
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
	sessionConfig.ForceCompress = *forceCompress
	sessionConfig.SkipProgram = *noProg
	sessionConfig.SkipEOF = *noEOF
	sessionConfig.SkipEOT = *noEOT

	var selection []int
	if *blocks != "" {
		if selection, err = parseBlockList(*blocks); err != nil {
			fmt.Fprintf(os.Stderr, "Error: --blocks: %v\n", err)
			os.Exit(1)
		}
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

	// Status goes to stderr; only decorate it on a terminal
	interactive := term.IsTerminal(int(os.Stderr.Fd()))

	callbacks := &amp.Callbacks{
		OnFileStart: func(filename string, size int, blocks int) {
			if *verbose && !*quiet {
				fmt.Fprintf(os.Stderr, "Sending: %s (%d bytes, %d blocks)\n", filename, size, blocks)
			}
		},
		OnFileSent: func(filename string, bytesWritten int64, duration time.Duration) {
			if *quiet {
				return
			}
			if *verbose {
				fmt.Fprintf(os.Stderr, "Completed: %s (%d bytes in %v)\n", filename, bytesWritten, duration)
			} else if interactive {
				fmt.Fprintf(os.Stderr, "%s\n", filename)
			}
		},
		OnError: func(err error, context string) bool {
			fmt.Fprintf(os.Stderr, "Error in %s: %v\n", context, err)
			return false
		},
	}

	opts := []amp.Option{
		amp.WithConfig(sessionConfig),
		amp.WithCallbacks(callbacks),
		amp.WithContext(ctx),
		amp.WithSessionLogger(logger),
	}

	if *sshHost != "" || station.SSH.Host != "" {
		err = sendRemote(ctx, station, files, selection, opts)
	} else {
		err = sendLocal(ctx, files, selection, amp.NewSession(nil, os.Stdout, opts...))
	}
	if err != nil {
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
	if set("block-size") {
		station.Send.BlockSize = *blockSize
	}
	if set("compress") {
		station.Send.Compression = *compress
	}
	if set("base") {
		station.Send.Base = *base
	}
	if set("from") {
		station.Callsign = *from
	}
	if set("to") {
		station.To = *to
	}
	if set("desc") {
		station.Send.Description = *desc
	}
	if set("line-delay") {
		station.Send.LineDelay = *lineDelay
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
		station.SSH.SendCommand = *sshCommand
	}
	return station, station.Validate()
}

// collectFiles resolves paths and drops what cannot be sent.
func collectFiles(files []string) []amp.FileInfo {
	fileInfos := make([]amp.FileInfo, 0, len(files))
	for _, filename := range files {
		absPath, err := filepath.Abs(filename)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error resolving path %s: %v\n", filename, err)
			continue
		}

		info, err := os.Stat(absPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error accessing %s: %v\n", filename, err)
			continue
		}

		if info.IsDir() {
			fmt.Fprintf(os.Stderr, "Skipping directory: %s\n", filename)
			continue
		}

		fileInfos = append(fileInfos, amp.FileInfo{
			Filename: absPath,
			Info:     info,
		})
	}
	return fileInfos
}

// sendLocal writes the transfers to the session writer.
func sendLocal(ctx context.Context, files []string, selection []int, session *amp.Session) error {
	fileInfos := collectFiles(files)
	if len(fileInfos) == 0 {
		return fmt.Errorf("no valid files to send")
	}
	if selection == nil {
		return session.SendFiles(ctx, fileInfos)
	}

	for _, fi := range fileInfos {
		content, err := os.ReadFile(fi.Filename)
		if err != nil {
			return err
		}
		a, err := session.NewAmp(filepath.Base(fi.Filename), content, fi.Info.ModTime())
		if err != nil {
			return err
		}
		if *verbose {
			fmt.Fprintf(os.Stderr, "%s: resending %v of %d blocks\n", a.Filename(), selection, a.DataBlockCount())
		}
		if err := session.SendBlocks(ctx, a, selection, *noHeaders); err != nil {
			return err
		}
	}
	return nil
}

// sendRemote runs the modem transmit command over SSH, once per file, and
// writes each transfer into its stdin.
func sendRemote(ctx context.Context, station *config.Config, files []string, selection []int, opts []amp.Option) error {
	ro := remote.FromConfig(station.SSH)
	ro.Insecure = *insecure
	client, err := remote.Dial(ro)
	if err != nil {
		return fmt.Errorf("connect %s: %w", ro.Host, err)
	}
	defer client.Close()
	if *verbose {
		fmt.Fprintf(os.Stderr, "Connected to %s\n", ro.Host)
	}

	fileInfos := collectFiles(files)
	if len(fileInfos) == 0 {
		return fmt.Errorf("no valid files to send")
	}
	for _, fi := range fileInfos {
		sshSession, err := client.NewSession()
		if err != nil {
			return err
		}
		s, err := amp.NewSSHSession(sshSession, opts...)
		if err != nil {
			sshSession.Close()
			return err
		}

		content, err := os.ReadFile(fi.Filename)
		if err != nil {
			s.Close()
			return err
		}
		a, err := s.NewAmp(filepath.Base(fi.Filename), content, fi.Info.ModTime())
		if err != nil {
			s.Close()
			return err
		}
		render := amp.RenderOptions{}
		if selection != nil {
			render = amp.RenderOptions{Blocks: selection, OmitHeaders: *noHeaders}
		}
		err = s.SendAmp(ctx, station.SSH.SendCommand, a, render)
		s.Close()
		if err != nil {
			return err
		}
	}
	return nil
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
	fmt.Fprintf(os.Stderr, `%s - broadcast files with the AMP-2 protocol

Usage: %s [options] file...

Options:
  -b, --block-size N     DATA block size (default: 64)
  -c, --compress[=NAME]  compress with lzma (default), zstd or lz4
      --force-compress   keep compression even when it does not pay off
      --base NAME        base64, base91 or none
      --from CALL        sending station call sign
      --to CALL          recipient call sign
      --desc TEXT        file description
      --blocks LIST      send only these DATA blocks, e.g. 1,3,5-7
      --no-headers       with --blocks, omit header blocks and preamble
      --no-prog          omit the PROG block
      --no-eof           omit the EOF control block
      --no-eot           omit the EOT control block
      --line-delay D     pause between lines, e.g. 200ms
      --config FILE      configuration file (default: $%s)
      --tz ZONE          zone for FILE timestamps (default: local)
      --log FILE         protocol log file, - for stderr (for debugging)
      --log-level LEVEL  debug, info or error (default: info)
      --trace            log every channel line at debug level
      --ssh HOST         broadcast through a modem program on HOST
      --ssh-user USER    SSH username
      --ssh-key FILE     SSH private key (password from $%s)
      --ssh-command CMD  modem transmit command (default: minimodem --tx 300)
      --insecure         skip SSH host key verification
  -h, --help             show this help message
  -q, --quiet            quiet mode, minimal output
  -v, --verbose          verbose mode
      --version          show version

Examples:
  %s report.txt                  # Broadcast to stdout
  %s -c --base base91 log.csv    # Compress and encode
  %s --blocks 3,7-9 report.txt   # Resend missing blocks

`, versionString, os.Args[0], config.EnvVar, remote.PasswordEnv, os.Args[0], os.Args[0], os.Args[0])
	os.Exit(exitcode)
}
