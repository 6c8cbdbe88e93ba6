// Command rasterman runs raster grid operations from the command line and,
// with the serve subcommand, answers raster queries over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/mohammed-shakir/rasterman/internal/core/config"
	"github.com/mohammed-shakir/rasterman/internal/errcode"
	"github.com/mohammed-shakir/rasterman/internal/logger"
)

var Version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "help" {
		usage(stderr)
		if len(args) == 0 {
			return fail(stderr, errcode.New(errcode.NoOperationSpecified, "no subcommand given"))
		}
		return 0
	}
	name, rest := args[0], args[1:]
	cmd, ok := commands[name]
	if !ok {
		usage(stderr)
		return fail(stderr, errcode.New(errcode.NoOperationSpecified, "unknown subcommand %q", name))
	}

	cfg, err := config.Load()
	if err != nil {
		return fail(stderr, errcode.Wrap(errcode.MissingArgument, err, "configuration"))
	}
	mode := "cli"
	if name == "serve" {
		mode = "serve"
	}
	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   cfg.LogConsole,
		Mode:      mode,
		Component: "rasterman",
	}, stderr)
	appLog := logger.NewSlog(&zl)

	a, err := newApp(ctx, cfg, appLog)
	if err != nil {
		return fail(stderr, err)
	}
	defer a.close()

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "usage: rasterman %s %s\n", name, cmd.args)
		fs.PrintDefaults()
	}
	err = cmd.run(ctx, a, fs, rest, stdout)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		return fail(stderr, err)
	}
	return 0
}

func fail(stderr io.Writer, err error) int {
	code := errcode.CodeOf(err)
	fmt.Fprintf(stderr, "%s %v\n", code.String(), err)
	return code.ExitCode()
}

func usage(w io.Writer) {
	names := make([]string, 0, len(commands))
	for n := range commands {
		names = append(names, n)
	}
	sort.Strings(names)
	fmt.Fprintf(w, "rasterman %s\n\nusage: rasterman <subcommand> [flags]\n\n", Version)
	for _, n := range names {
		fmt.Fprintf(w, "  %-15s %s\n", n, commands[n].help)
	}
	fmt.Fprintln(w, "\nrun 'rasterman <subcommand> -h' for the flags of a subcommand")
	fmt.Fprintf(w, "drivers by extension: %s\n", strings.Join(driverExtensions(), " "))
}
