package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"fwinfo/internal/logging"
	"fwinfo/internal/network"
	"fwinfo/internal/platform"
	"fwinfo/internal/progress"
	"fwinfo/internal/repair"
	"fwinfo/internal/report"
	"fwinfo/internal/scan"
	"fwinfo/internal/watcher"
	"fwinfo/pkg/config"
	"fwinfo/pkg/firmware"
	"fwinfo/pkg/utils"
)

// localConfigName is looked up in the working directory before the
// platform default path.
const localConfigName = "fwinfo.yaml"

var errBadCommandLine = errors.New("bad command line")

func printUsage(w io.Writer, name string) {
	fmt.Fprintf(w, `Usage: %[1]s <firmware file> [-f]

Inspect a Mi walkie-talkie firmware file block by block and report header,
length and CRC errors. With -f (or -F) broken block headers are rewritten.

Commands:
  %[1]s <firmware file> [-f]
         Inspect a local file, repairing headers with -f

  %[1]s watch [-config file] <firmware file>
         Inspect the file again every time it changes

  %[1]s remote [-config file] <remote path> [-f]
         Inspect a file on the SFTP host from the config "remote" section

  %[1]s init-config [-force] [path]
         Write the default configuration (default: %[2]s)

A firmware file named like a command (watch, remote, init-config, help) must
be given with a path, for example ./watch.

With -f the original file is copied to <file>.bak right before the first
header is rewritten. An existing .bak is never overwritten.

Configuration is read from -config, ./%[3]s or %[2]s, in that order.
`, name, platform.GetDefaultConfigPath(), localConfigName)
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	name := platform.ProgramName()

	if len(args) == 0 {
		printUsage(stdout, name)
		return 1
	}

	// Check for help flags
	if args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printUsage(stdout, name)
		return 0
	}

	switch args[0] {
	case "watch":
		return runWatch(args[1:], stdout, stderr)
	case "remote":
		return runRemote(args[1:], stdout, stderr)
	case "init-config":
		return runInitConfig(args[1:], stdout, stderr)
	}

	path, repairMode, err := parseTarget(args)
	if err != nil {
		fmt.Fprintf(stdout, "\n%s: %v.", name, err)
		fmt.Fprintln(stdout)
		printUsage(stdout, name)
		return 1
	}

	cfg, logger, err := setup("", stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading config: %v\n", err)
		return 1
	}
	return inspectLocal(path, repairMode, cfg, stdout, logger)
}

// parseTarget accepts "<file>" or "<file> -f", the flag in either case.
func parseTarget(args []string) (string, bool, error) {
	switch len(args) {
	case 1:
		return args[0], false, nil
	case 2:
		if strings.EqualFold(args[1], "-f") {
			return args[0], true, nil
		}
	}
	return "", false, errBadCommandLine
}

// setup loads the configuration and builds the diagnostic logger.
func setup(configPath string, stderr io.Writer) (*config.Config, *slog.Logger, error) {
	cfg, source, err := loadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger := logging.New(cfg.Log.Level, stderr)
	logger.Debug("configuration loaded", "source", source)
	return cfg, logger, nil
}

func loadConfig(configPath string) (*config.Config, string, error) {
	if configPath != "" {
		cfg, err := config.LoadConfig(configPath)
		return cfg, configPath, err
	}

	// Try current directory first
	if utils.FileExists(localConfigName) {
		cfg, err := config.LoadConfig(localConfigName)
		return cfg, localConfigName, err
	}

	// Try default system config location
	defaultPath := platform.GetDefaultConfigPath()
	if utils.FileExists(defaultPath) {
		cfg, err := config.LoadConfig(defaultPath)
		return cfg, defaultPath, err
	}

	return config.DefaultConfig(), "built-in defaults", nil
}

func scanOptions(cfg *config.Config, repairMode bool) scan.Options {
	return scan.Options{
		Repair:     repairMode,
		Policy:     repair.Policy{PersistObservedLength: cfg.Repair.PersistObservedLength},
		BufferSize: cfg.Scan.BufferSize,
	}
}

func inspectLocal(path string, repairMode bool, cfg *config.Config, stdout io.Writer, logger *slog.Logger) int {
	fmt.Fprintln(stdout)

	var (
		f   *os.File
		err error
	)
	if repairMode {
		f, err = os.OpenFile(path, os.O_RDWR, 0)
	} else {
		f, err = os.Open(path)
	}
	if err != nil {
		fmt.Fprintf(stdout, "Error opening file %q\n\n", path)
		logger.Debug("open failed", "path", path, "error", err)
		return 1
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		fmt.Fprintf(stdout, "Error opening file %q\n\n", path)
		return 1
	}

	options := []scan.Option{scan.WithLogger(logger)}
	if repairMode && cfg.Repair.Backup {
		options = append(options, scan.WithBeforeWrite(func() error {
			backup, created, err := utils.BackupFile(path)
			logBackup(logger, backup, created, err)
			return err
		}))
	}

	tracker := progress.NewTracker(info.Size())
	options = append(options, scan.WithProgress(tracker))
	walker := scan.New(report.NewText(stdout), scanOptions(cfg, repairMode), options...)

	res, err := walker.Walk(f)
	return finish(path, res, err, tracker, stdout, logger)
}

func logBackup(logger *slog.Logger, backup string, created bool, err error) {
	switch {
	case err != nil:
	case created:
		logger.Info("backup written", "path", backup)
	default:
		logger.Info("backup already exists, keeping it", "path", backup)
	}
}

// finish maps a scan outcome to the process exit code.
func finish(name string, res *scan.Result, err error, tracker *progress.Tracker, stdout io.Writer, logger *slog.Logger) int {
	var repairErr *repair.Error
	switch {
	case err == nil:
	case errors.Is(err, scan.ErrBackupFailed):
		fmt.Fprintf(stdout, "No changes were made: %v\n\n", err)
		return 1
	case errors.As(err, &repairErr):
		report.RepairFailed(stdout, err)
		return 1
	case errors.Is(err, firmware.ErrNoHeader), firmware.IsUnknownSignature(err):
		report.NotFirmware(stdout, name, err)
		return 1
	default:
		fmt.Fprintf(stdout, "Error reading %q: %v\n\n", name, err)
		return 1
	}

	logger.Info("scan complete",
		"file", name,
		"format", res.Format.String(),
		"state", res.State.String(),
		"blocks", res.Blocks,
		"mismatches", res.Mismatches,
		"repaired", res.Repaired,
		"scanned", tracker.String())

	if !res.OK() {
		return 1
	}
	return 0
}

func runWatch(args []string, stdout, stderr io.Writer) int {
	watchCmd := flag.NewFlagSet("watch", flag.ContinueOnError)
	watchCmd.SetOutput(stderr)
	configPath := watchCmd.String("config", "", "Path to the YAML config file")
	if err := watchCmd.Parse(args); err != nil {
		return 1
	}
	if watchCmd.NArg() != 1 {
		fmt.Fprintln(stdout, "Error: watch requires a firmware file path")
		fmt.Fprintln(stdout, "\nUsage: fwinfo watch [options] <firmware file>")
		watchCmd.PrintDefaults()
		return 1
	}
	path := watchCmd.Arg(0)

	cfg, logger, err := setup(*configPath, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading config: %v\n", err)
		return 1
	}

	w, err := watcher.NewWatcher(cfg.Watch.DebounceMs)
	if err != nil {
		log.Printf("Error creating watcher: %v", err)
		return 1
	}
	defer w.Close()

	if err := w.Watch(path); err != nil {
		log.Printf("Error starting watcher: %v", err)
		return 1
	}

	code := inspectLocal(path, false, cfg, stdout, logger)
	logger.Info("watching for changes, press Ctrl+C to stop", "path", path)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	for {
		select {
		case event := <-w.Events():
			logger.Info("firmware file changed", "path", event.Path, "op", event.Operation)
			code = inspectLocal(path, false, cfg, stdout, logger)
		case err := <-w.Errors():
			logger.Warn("watch error", "error", err)
		case <-stop:
			return code
		}
	}
}

func runRemote(args []string, stdout, stderr io.Writer) int {
	remoteCmd := flag.NewFlagSet("remote", flag.ContinueOnError)
	remoteCmd.SetOutput(stderr)
	configPath := remoteCmd.String("config", "", "Path to the YAML config file")
	if err := remoteCmd.Parse(args); err != nil {
		return 1
	}

	path, repairMode, err := parseTarget(remoteCmd.Args())
	if err != nil {
		fmt.Fprintln(stdout, "Error: remote requires a remote firmware path")
		fmt.Fprintln(stdout, "\nUsage: fwinfo remote [options] <remote path> [-f]")
		remoteCmd.PrintDefaults()
		return 1
	}

	cfg, logger, err := setup(*configPath, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading config: %v\n", err)
		return 1
	}

	remote, err := network.Dial(network.RemoteConfig{
		Host:       cfg.Remote.Host,
		Port:       cfg.Remote.Port,
		Username:   cfg.Remote.Username,
		Password:   cfg.Remote.Password,
		KeyFile:    cfg.Remote.KeyFile,
		KnownHosts: cfg.Remote.KnownHosts,
	})
	if err != nil {
		fmt.Fprintf(stdout, "Error initializing remote access: %v\n", err)
		return 1
	}
	defer remote.Close()
	if cfg.Remote.KnownHosts == "" {
		logger.Warn("remote host key is not verified, set remote.known_hosts")
	}

	return inspectRemote(remote, path, repairMode, cfg, stdout, logger)
}

func inspectRemote(remote *network.Remote, path string, repairMode bool, cfg *config.Config, stdout io.Writer, logger *slog.Logger) int {
	fmt.Fprintln(stdout)

	size, err := remote.Size(path)
	if err != nil {
		fmt.Fprintf(stdout, "Error opening file %q\n\n", path)
		logger.Debug("stat failed", "path", path, "error", err)
		return 1
	}

	f, err := remote.Open(path, repairMode)
	if err != nil {
		fmt.Fprintf(stdout, "Error opening file %q\n\n", path)
		logger.Debug("open failed", "path", path, "error", err)
		return 1
	}
	defer f.Close()

	options := []scan.Option{scan.WithLogger(logger)}
	if repairMode && cfg.Repair.Backup {
		options = append(options, scan.WithBeforeWrite(func() error {
			backup, created, err := remote.Backup(path, utils.BackupSuffix)
			logBackup(logger, backup, created, err)
			return err
		}))
	}

	tracker := progress.NewTracker(size)
	options = append(options, scan.WithProgress(tracker))
	walker := scan.New(report.NewText(stdout), scanOptions(cfg, repairMode), options...)

	res, err := walker.Walk(f)
	return finish(path, res, err, tracker, stdout, logger)
}

func runInitConfig(args []string, stdout, stderr io.Writer) int {
	initCmd := flag.NewFlagSet("init-config", flag.ContinueOnError)
	initCmd.SetOutput(stderr)
	force := initCmd.Bool("force", false, "Overwrite an existing file")
	if err := initCmd.Parse(args); err != nil {
		return 1
	}
	if initCmd.NArg() > 1 {
		fmt.Fprintln(stdout, "Usage: fwinfo init-config [-force] [path]")
		return 1
	}

	path := platform.GetDefaultConfigPath()
	if initCmd.NArg() == 1 {
		path = initCmd.Arg(0)
	}

	if utils.FileExists(path) && !*force {
		fmt.Fprintf(stdout, "%s already exists, use -force to overwrite\n", path)
		return 1
	}

	if err := config.SaveConfig(config.DefaultConfig(), path); err != nil {
		fmt.Fprintf(stdout, "Error writing config: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "Configuration written to %s\n", path)
	return 0
}
