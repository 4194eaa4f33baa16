// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/upty/lib/process"
	"github.com/bureau-foundation/upty/lib/version"
	"github.com/bureau-foundation/upty/lib/wire"
	"github.com/bureau-foundation/upty/manager"
)

// statusReport is the --json form of the status command.
type statusReport struct {
	Status    manager.Status          `json:"status"`
	Instances []manager.InstanceInfo `json:"instances"`
}

func runStatus(g globals, args []string, stdout io.Writer) error {
	flagSet := pflag.NewFlagSet("upty status", pflag.ContinueOnError)
	adminSocket := flagSet.String("admin-socket", "", "admin socket (default admin.sock next to the rendezvous socket)")
	asJSON := flagSet.Bool("json", false, "print JSON")
	timeout := flagSet.Duration("timeout", 5*time.Second, "query timeout")
	noColor := flagSet.Bool("no-color", false, "disable styling")
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(g)
	if err != nil {
		return err
	}
	socketPath := *adminSocket
	if socketPath == "" {
		socketPath = cfg.Manager.AdminSocket
	}
	if socketPath == "" {
		socketPath = manager.AdminSocketFor(cfg.Socket)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	client := manager.NewAdminClient(socketPath)
	if cfg.Debug {
		client.WithLogger(process.NewLogger(true))
	}
	var report statusReport
	if report.Status, err = client.Status(ctx); err != nil {
		return err
	}
	if report.Instances, err = client.ListInstances(ctx); err != nil {
		return err
	}

	if *asJSON {
		encoder := json.NewEncoder(stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(report)
	}
	renderer := lipgloss.NewRenderer(stdout)
	if *noColor {
		renderer.SetColorProfile(termenv.Ascii)
	}
	printStatus(stdout, newStatusStyles(renderer), report)
	return nil
}

// statusStyles styles the human-readable status output. A renderer on
// a non-terminal writer produces plain text.
type statusStyles struct {
	label  lipgloss.Style
	header lipgloss.Style
}

func newStatusStyles(renderer *lipgloss.Renderer) statusStyles {
	return statusStyles{
		label:  renderer.NewStyle().Faint(true),
		header: renderer.NewStyle().Bold(true),
	}
}

func printStatus(stdout io.Writer, styles statusStyles, report statusReport) {
	status := report.Status
	fmt.Fprintf(stdout, "%s   %s (protocol %s)\n", styles.label.Render("manager"), status.Version, status.Protocol)
	fmt.Fprintf(stdout, "%s    %s\n", styles.label.Render("socket"), status.Socket)
	fmt.Fprintf(stdout, "%s   %s\n", styles.label.Render("started"), status.Started.Format(time.RFC3339))
	fmt.Fprintf(stdout, "%s %d, connections %d\n", styles.label.Render("instances"), status.Instances, status.Connections)
	if len(report.Instances) == 0 {
		return
	}
	fmt.Fprintln(stdout)
	var table bytes.Buffer
	writer := tabwriter.NewWriter(&table, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "INSTANCE\tHOST SLAVE\tFRONTS\tSHELL\tCREATED")
	for _, instance := range report.Instances {
		shell := "-"
		if instance.ShellPID != 0 {
			shell = fmt.Sprint(instance.ShellPID)
		}
		fmt.Fprintf(writer, "%d\t%s\t%d\t%s\t%s\n",
			instance.InstanceNumber, instance.SlavePath, instance.Fronts, shell,
			instance.Created.Format(time.RFC3339))
	}
	writer.Flush()

	header, rows, _ := strings.Cut(table.String(), "\n")
	fmt.Fprintln(stdout, styles.header.Render(header))
	fmt.Fprint(stdout, rows)
}

func runVersion(g globals, args []string, stdout io.Writer) error {
	fmt.Fprintf(stdout, "upty %s\n", version.Full(string(wire.Version[:])))
	return nil
}
