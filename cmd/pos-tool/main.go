// Command pos-tool performs offline maintenance on a point-of-sale store:
// seeding, product import and export, history export, backups and printing
// payment codes in the terminal.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	var (
		dataFile string
		location string
		logFile  string
		verbose  bool
	)

	flag.StringVar(&dataFile, "data", "data/quickpay.db", "path to the store file (or POS_DATAFILE env)")
	flag.StringVar(&location, "location", "Europe/Prague", "time zone for dates and export timestamps")
	flag.StringVar(&logFile, "log-file", "", "also write JSON logs to this file, rotated")
	flag.BoolVar(&verbose, "v", false, "debug logging")
	flag.Usage = usage
	flag.Parse()

	if v := os.Getenv("POS_DATAFILE"); v != "" && !flagSet("data") {
		dataFile = v
	}

	lg := newLogger(verbose, logFile)
	defer func() { _ = lg.Sync() }()

	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}
	cmd, ok := lookup(flag.Arg(0))
	if !ok {
		lg.Error("Unknown command", zap.String("command", flag.Arg(0)))
		usage()
		os.Exit(2)
	}

	loc, err := time.LoadLocation(location)
	if err != nil {
		lg.Fatal("Invalid location", zap.String("location", location), zap.Error(err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	ctx = zctx.Base(ctx, lg)

	env := &env{dataFile: dataFile, loc: loc, out: os.Stdout}
	if err := run(ctx, env, cmd, flag.Args()[1:]); err != nil {
		lg.Error("Command failed", zap.String("command", cmd.name), zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, env *env, cmd command, args []string) error {
	if !cmd.store {
		return cmd.run(ctx, env, args)
	}
	if err := env.open(ctx); err != nil {
		return err
	}
	defer func() {
		if err := env.close(); err != nil {
			zctx.From(ctx).Warn("Close store", zap.Error(err))
		}
	}()
	return cmd.run(ctx, env, args)
}

func flagSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

// newLogger logs human-readable lines to stderr and, with logFile, JSON
// lines to a rotated file.
func newLogger(verbose bool, logFile string) *zap.Logger {
	level := zap.NewAtomicLevelAt(zap.InfoLevel)
	if verbose {
		level.SetLevel(zap.DebugLevel)
	}

	consoleCfg := zap.NewDevelopmentEncoderConfig()
	consoleCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleCfg), zapcore.Lock(os.Stderr), level),
	}
	if logFile != "" {
		rotated := &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    10, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		}
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(rotated),
			level,
		))
	}
	return zap.New(zapcore.NewTee(cores...))
}

func usage() {
	out := flag.CommandLine.Output()
	_, _ = fmt.Fprintf(out, "Usage: %s [flags] <command> [args]\n\nCommands:\n", os.Args[0])
	for _, c := range commands {
		_, _ = fmt.Fprintf(out, "  %-16s %s\n", c.name, c.usage)
	}
	_, _ = fmt.Fprintln(out, "\nFlags:")
	flag.PrintDefaults()
}

var errUsage = errors.New("invalid arguments")
