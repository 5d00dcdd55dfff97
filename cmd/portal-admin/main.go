package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"

	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/config"
	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/bootstrap"
)

type commandContext struct {
	Ctx    context.Context
	Logger *slog.Logger
	Config *config.AppConfig
	Out    io.Writer
}

type commandFn func(*commandContext, []string) error

type command struct {
	name        string
	description string
	run         commandFn
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr)) //nolint:forbidigo // CLI exit status
}

// run executes one admin command and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	cmds := commands()
	if len(args) == 0 {
		printUsage(stderr, cmds)
		return 2
	}

	name := args[0]
	if name == "-h" || name == "--help" || name == "help" {
		printUsage(stdout, cmds)
		return 0
	}
	cmd, ok := cmds[name]
	if !ok {
		writef(stderr, "unknown command %q\n\n", name)
		printUsage(stderr, cmds)
		return 2
	}

	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		writef(stderr, "load config: %v\n", err)
		return 1
	}

	logger := bootstrap.NewLogger(stderr, cfg.Observability.SlogLevel())
	cc := &commandContext{
		Ctx:    context.Background(),
		Logger: logger,
		Config: &cfg,
		Out:    stdout,
	}

	if err := cmd.run(cc, args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		writef(stderr, "%s: %v\n", cmd.name, err)
		return 1
	}
	return 0
}

func commands() map[string]command {
	return map[string]command{
		"check-config": {
			name:        "check-config",
			description: "Report missing or invalid configuration variables (names only)",
			run:         runCheckConfig,
		},
		"permissions": {
			name:        "permissions",
			description: "Print the effective role to action table",
			run:         runPermissions,
		},
		"sign-request": {
			name:        "sign-request",
			description: "Build a signed backend envelope, optionally sending it",
			run:         runSignRequest,
		},
		"revoke-session": {
			name:        "revoke-session",
			description: "Add a session id to the Redis deny-list",
			run:         runRevokeSession,
		},
	}
}

func printUsage(w io.Writer, cmds map[string]command) {
	writef(w, "Usage: portal-admin <command> [flags]\n\nCommands:\n")
	names := make([]string, 0, len(cmds))
	for name := range cmds {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		writef(w, "  %-16s %s\n", name, cmds[name].description)
	}
}

func writef(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}

func writeln(w io.Writer, args ...any) {
	_, _ = fmt.Fprintln(w, args...)
}

// newFlagSet returns a flag set that reports errors instead of exiting.
func newFlagSet(cc *commandContext, name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(cc.Out)
	return fs
}
