package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"

	"github.com/brettbedarf/seamfs"
	"github.com/brettbedarf/seamfs/backends"
	"github.com/brettbedarf/seamfs/config"
	"github.com/brettbedarf/seamfs/filesystem"
	"github.com/brettbedarf/seamfs/internal/util"
	"github.com/brettbedarf/seamfs/server"
	"github.com/brettbedarf/seamfs/transfer"
	"github.com/spf13/pflag"
)

const usage = `seamfs browses directory trees where archives open like directories.

Usage:
  seamfs [flags] ls [-r] <root> <path>
  seamfs [flags] cat <root> <path>
  seamfs [flags] cp <root> <src> <dst>
  seamfs [flags] mount [-u] <root> <mountpoint>

Paths are relative to <root>. Append the marker and a slash to an archive name
to enter it, e.g. /backup.zip#/etc/hosts.

Flags:
`

func main() {
	var (
		verbose    int
		configPath string
		marker     string
		readOnly   bool
		umount     bool
		recursive  bool
	)
	flagSet := pflag.NewFlagSet("seamfs", pflag.ContinueOnError)
	flagSet.IntVarP(&verbose, "verbose", "v", config.InfoVerbose, "Log verbosity between 1 (error) and 5 (trace)")
	flagSet.StringVarP(&configPath, "config", "c", "", "Path to a YAML or JSON config file")
	flagSet.StringVar(&marker, "marker", config.DefaultMarker, "Character that mounts an archive when followed by '/'")
	flagSet.BoolVar(&readOnly, "read-only", false, "Reject writes to the root directory")
	flagSet.BoolVarP(&umount, "umount", "u", false,
		"Unmount the mountpoint first if needed. Useful for debuggers that don't exit properly.")
	flagSet.BoolVarP(&recursive, "recursive", "r", false, "List recursively (ls)")
	flagSet.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flagSet.PrintDefaults()
	}
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			os.Exit(0)
		}
		os.Exit(2)
	}

	cfg := config.NewDefaultConfig()
	if configPath != "" {
		fileCfg, err := config.NewConfigFromFile(configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: load config %s: %v\n", configPath, err)
			os.Exit(1)
		}
		cfg = fileCfg
	}
	override := &config.ConfigOverride{}
	if flagSet.Changed("verbose") || configPath == "" {
		override.LogLvl = &verbose
	}
	if flagSet.Changed("marker") {
		override.Marker = &marker
	}
	if flagSet.Changed("read-only") {
		override.ReadOnly = &readOnly
	}
	cfg.Merge(override)

	util.InitializeLogger(cfg.LogLvl)
	logger := util.GetLogger("main")

	args := flagSet.Args()
	if len(args) == 0 {
		flagSet.Usage()
		os.Exit(2)
	}
	cmd, args := args[0], args[1:]
	want := map[string]int{"ls": 2, "cat": 2, "cp": 3, "mount": 2}
	n, ok := want[cmd]
	if !ok {
		logger.Fatal().Str("command", cmd).Msg("Unknown command")
	}
	if len(args) != n {
		logger.Fatal().Str("command", cmd).Int("want", n).Int("got", len(args)).Msg("Wrong number of arguments")
	}

	fs, err := openFS(cfg, args[0])
	if err != nil {
		logger.Fatal().Err(err).Str("root", args[0]).Msg("Failed to open root")
	}

	if cmd == "mount" {
		runMount(cfg, fs, args[1], umount)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	switch cmd {
	case "ls":
		err = runList(ctx, fs, args[1], recursive)
	case "cat":
		err = runCat(ctx, fs, args[1], cfg.CopyBufferSize)
	case "cp":
		err = runCopy(ctx, cfg, fs, args[1], args[2])
	}
	stop()
	if cerr := fs.Close(); cerr != nil {
		logger.Warn().Err(cerr).Msg("Failed to close filesystem")
	}
	if err != nil {
		logger.Fatal().Err(err).Str("command", cmd).Msg("Command failed")
	}
}

func openFS(cfg *config.Config, root string) (*filesystem.FS, error) {
	base, err := backends.NewPhysical(root)
	if err != nil {
		return nil, err
	}
	reg, err := backends.NewDefaultRegistry(cfg)
	if err != nil {
		return nil, err
	}
	return filesystem.New(base, reg, cfg)
}

// userPath parses a command line path. A path without a trailing slash names a
// directory when one exists there, so `ls /a.zip#` and `ls /docs` work.
func userPath(ctx context.Context, fs *filesystem.FS, s string) (seamfs.Path, error) {
	if !strings.HasPrefix(s, "/") {
		s = "/" + s
	}
	if !strings.HasSuffix(s, "/") {
		if dir, err := seamfs.ParsePath(s + "/"); err == nil {
			if ok, _ := fs.Exists(ctx, dir); ok {
				return dir, nil
			}
		}
	}
	return seamfs.ParsePath(s)
}

func runList(ctx context.Context, fs *filesystem.FS, arg string, recursive bool) error {
	dir, err := userPath(ctx, fs, arg)
	if err != nil {
		return err
	}
	var paths []seamfs.Path
	if recursive {
		paths, err = seamfs.ListRecursive(ctx, fs, dir)
	} else {
		paths, err = fs.List(ctx, dir)
	}
	if err != nil {
		return err
	}
	for _, p := range paths {
		fmt.Println(p)
	}
	return nil
}

func runCat(ctx context.Context, fs *filesystem.FS, arg string, bufSize int) error {
	p, err := userPath(ctx, fs, arg)
	if err != nil {
		return err
	}
	f, err := fs.Open(ctx, p, seamfs.Read)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.CopyBuffer(os.Stdout, f, make([]byte, bufSize))
	return err
}

func runCopy(ctx context.Context, cfg *config.Config, fs *filesystem.FS, from, to string) error {
	src, err := userPath(ctx, fs, from)
	if err != nil {
		return err
	}
	if src.IsDirectory() && !strings.HasSuffix(to, "/") {
		to += "/"
	}
	dst, err := userPath(ctx, fs, to)
	if err != nil {
		return err
	}
	return transfer.DefaultStrategies(cfg).Copy(ctx,
		seamfs.Entity{Backend: fs, Path: src},
		seamfs.Entity{Backend: fs, Path: dst})
}

func runMount(cfg *config.Config, fs *filesystem.FS, mnt string, umount bool) {
	logger := util.GetLogger("main")
	if umount {
		cmd := exec.Command("fusermount", "-u", mnt)
		// not being mounted is fine
		cmd.Run() // nolint:errcheck
	}

	srv := server.New(cfg, fs)
	if err := srv.Serve(mnt); err != nil {
		logger.Fatal().Err(err).Msg("Failed to mount filesystem")
	}

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	logger.Info().Str("mountpoint", mnt).Str("marker", cfg.Marker).Msg("Filesystem mounted successfully")

	sig := <-signalChan
	logger.Info().Str("signal", sig.String()).Msg("Received signal, unmounting filesystem")

	if err := srv.Unmount(); err != nil {
		logger.Error().Err(err).Msg("Failed to unmount filesystem")
	} else {
		logger.Info().Msg("Filesystem unmounted successfully")
	}
}
