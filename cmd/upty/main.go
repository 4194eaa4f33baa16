// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// upty is the command-line companion to upty-manager.
//
// Usage:
//
//	upty [--config path] [--socket path] <command> [flags]
//
// Commands:
//
//	probe     allocate a virtual PTY and exercise it end to end
//	attach    allocate a virtual PTY and connect this terminal to it
//	status    query the manager's admin socket
//	version   print version information
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/upty/lib/config"
	"github.com/bureau-foundation/upty/lib/dial"
	"github.com/bureau-foundation/upty/lib/facility"
	"github.com/bureau-foundation/upty/lib/process"
	"github.com/bureau-foundation/upty/upty"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		process.Fatal(err)
	}
}

// globals are the flags accepted before the command name.
type globals struct {
	configPath string
	socket     string
	debug      bool
}

// command is one upty subcommand.
type command struct {
	summary string
	run     func(g globals, args []string, stdout io.Writer) error
}

var commands = map[string]command{
	"probe":   {"allocate a virtual PTY and exercise it end to end", runProbe},
	"attach":  {"allocate a virtual PTY and connect this terminal to it", runAttach},
	"status":  {"query the manager's admin socket", runStatus},
	"version": {"print version information", runVersion},
}

var commandOrder = []string{"probe", "attach", "status", "version"}

func run(args []string, stdout io.Writer) error {
	var g globals
	flagSet := pflag.NewFlagSet("upty", pflag.ContinueOnError)
	flagSet.StringVar(&g.configPath, "config", os.Getenv(config.EnvironmentVariable), "YAML configuration file")
	flagSet.StringVar(&g.socket, "socket", "", "rendezvous socket (default ~/.upty/upty.sock)")
	flagSet.BoolVar(&g.debug, "debug", false, "enable debug logging")
	flagSet.SetInterspersed(false)
	flagSet.Usage = func() { printUsage(flagSet) }

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if flagSet.NArg() == 0 {
		printUsage(flagSet)
		return errors.New("no command given")
	}

	name := flagSet.Arg(0)
	cmd, ok := commands[name]
	if !ok {
		return fmt.Errorf("unknown command %q (run upty --help)", name)
	}
	return cmd.run(g, flagSet.Args()[1:], stdout)
}

func printUsage(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, "Usage: upty [flags] <command> [command flags]\n\nCommands:\n")
	for _, name := range commandOrder {
		fmt.Fprintf(os.Stderr, "  %-8s  %s\n", name, commands[name].summary)
	}
	fmt.Fprintf(os.Stderr, "\nFlags:\n%s", flagSet.FlagUsages())
}

// loadConfig resolves the configuration for g.
func loadConfig(g globals) (*config.Config, error) {
	cfg, err := config.LoadFile(g.configPath)
	if err != nil {
		return nil, err
	}
	if g.socket != "" {
		cfg.Socket = g.socket
	}
	if g.debug {
		cfg.Debug = true
	}
	cfg.Socket = dial.ResolveEndpoint(cfg.Socket)
	return cfg, nil
}

// newClient builds a client whose handshake failures are returned
// instead of terminating the process.
func newClient(cfg *config.Config) (*upty.Client, error) {
	options := upty.Options{
		Config:   cfg,
		Facility: facility.System{},
		Fatal:    func(error) {},
	}
	if cfg.Debug {
		options.Logger = process.NewLogger(true)
	}
	return upty.New(options)
}
