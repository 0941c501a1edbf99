// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/spf13/pflag"
)

func TestCommand_Execute_DispatchesToSubcommand(t *testing.T) {
	var called string

	root := &Command{
		Name: "spool",
		Subcommands: []*Command{
			{
				Name: "send",
				Run: func(ctx context.Context, args []string) error {
					called = "send"
					return nil
				},
			},
			{
				Name: "inspect",
				Run: func(ctx context.Context, args []string) error {
					called = "inspect"
					return nil
				},
			},
		},
	}

	if err := root.Execute(context.Background(), []string{"inspect"}); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if called != "inspect" {
		t.Errorf("dispatched to %q, want %q", called, "inspect")
	}
}

func TestCommand_Execute_FlagParsing(t *testing.T) {
	var folder string
	var received []string

	command := &Command{
		Name: "inspect",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("inspect", pflag.ContinueOnError)
			flagSet.StringVar(&folder, "folder", "/default", "queue folder")
			return flagSet
		},
		Run: func(ctx context.Context, args []string) error {
			received = args
			return nil
		},
	}

	if err := command.Execute(context.Background(), []string{"--folder", "/custom", "extra"}); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if folder != "/custom" {
		t.Errorf("folder = %q, want %q", folder, "/custom")
	}
	if len(received) != 1 || received[0] != "extra" {
		t.Errorf("args = %v, want [extra]", received)
	}
}

func TestCommand_Execute_PassesContext(t *testing.T) {
	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "value")

	var got any
	root := &Command{
		Name: "spool",
		Subcommands: []*Command{{
			Name: "run",
			Run: func(ctx context.Context, args []string) error {
				got = ctx.Value(key{})
				return nil
			},
		}},
	}
	if err := root.Execute(ctx, []string{"run"}); err != nil {
		t.Fatal(err)
	}
	if got != "value" {
		t.Errorf("context value = %v", got)
	}
}

func TestCommand_Execute_UnknownFlagSuggestion(t *testing.T) {
	command := &Command{
		Name: "inspect",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("inspect", pflag.ContinueOnError)
			flagSet.Bool("decode", false, "decode payloads")
			flagSet.String("folder", "", "queue folder")
			return flagSet
		},
		Run: func(ctx context.Context, args []string) error { return nil },
	}

	err := command.Execute(context.Background(), []string{"--decdoe"})
	if err == nil {
		t.Fatal("Execute() = nil, want error for unknown flag")
	}
	message := err.Error()
	if !strings.Contains(message, "did you mean --decode") {
		t.Errorf("error = %q, want suggestion for '--decode'", message)
	}
	if !strings.Contains(message, "--help") {
		t.Errorf("error = %q, should point to --help", message)
	}
}

func TestCommand_Execute_UnknownFlagNoSuggestion(t *testing.T) {
	command := &Command{
		Name: "inspect",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("inspect", pflag.ContinueOnError)
			flagSet.Bool("decode", false, "decode payloads")
			return flagSet
		},
		Run: func(ctx context.Context, args []string) error { return nil },
	}

	err := command.Execute(context.Background(), []string{"--zzzzzzzzz"})
	if err == nil {
		t.Fatal("Execute() = nil, want error for unknown flag")
	}
	if strings.Contains(err.Error(), "did you mean") {
		t.Errorf("error = %q, should not suggest for distant flag", err.Error())
	}
}

func TestCommand_Execute_UnknownSubcommandSuggestion(t *testing.T) {
	root := &Command{
		Name: "spool",
		Subcommands: []*Command{
			{Name: "send"},
			{Name: "inspect"},
			{Name: "purge"},
		},
	}

	err := root.Execute(context.Background(), []string{"inspct"})
	if err == nil {
		t.Fatal("Execute() = nil, want error for unknown subcommand")
	}
	if !strings.Contains(err.Error(), `did you mean "inspect"`) {
		t.Errorf("error = %q, want suggestion for 'inspect'", err.Error())
	}

	err = root.Execute(context.Background(), []string{"zzzzzzzzz"})
	if err == nil || strings.Contains(err.Error(), "did you mean") {
		t.Errorf("error = %v, want no suggestion for distant input", err)
	}
}

func TestCommand_Execute_HelpFlag(t *testing.T) {
	for _, helpArg := range []string{"-h", "--help", "help"} {
		t.Run(helpArg, func(t *testing.T) {
			var output bytes.Buffer
			root := &Command{
				Name:    "spool",
				Summary: "Durable telemetry delivery",
				Subcommands: []*Command{
					{Name: "send", Summary: "Send JSON lines"},
				},
				Output: &output,
			}

			if err := root.Execute(context.Background(), []string{helpArg}); err != nil {
				t.Errorf("Execute(%q) error: %v", helpArg, err)
			}
			if !strings.Contains(output.String(), "Send JSON lines") {
				t.Errorf("help output = %q", output.String())
			}
		})
	}
}

func TestCommand_Execute_LeafHelpFlag(t *testing.T) {
	var output bytes.Buffer
	root := &Command{
		Name:   "spool",
		Output: &output,
		Subcommands: []*Command{{
			Name: "purge",
			Flags: func() *pflag.FlagSet {
				flagSet := pflag.NewFlagSet("purge", pflag.ContinueOnError)
				flagSet.String("folder", "", "queue folder")
				return flagSet
			},
			Run: func(ctx context.Context, args []string) error {
				t.Error("Run called for --help")
				return nil
			},
		}},
	}

	if err := root.Execute(context.Background(), []string{"purge", "--folder", "x", "--help"}); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if !strings.Contains(output.String(), "spool purge [flags]") {
		t.Errorf("help output = %q, want the inherited writer to be used", output.String())
	}
}

func TestCommand_Execute_NoArgsShowsHelp(t *testing.T) {
	root := &Command{
		Name:        "spool",
		Subcommands: []*Command{{Name: "send"}},
		Output:      &bytes.Buffer{},
	}

	err := root.Execute(context.Background(), nil)
	if err == nil || !strings.Contains(err.Error(), "subcommand required") {
		t.Errorf("error = %v, want 'subcommand required'", err)
	}
}

func TestCommand_PrintHelp(t *testing.T) {
	command := &Command{
		Name:        "spool",
		Description: "Durable telemetry delivery.",
		Subcommands: []*Command{
			{Name: "send", Summary: "Send JSON lines through the queue"},
			{Name: "inspect", Summary: "List queued transmissions"},
		},
		Examples: []Example{
			{
				Description: "Inspect the default queue",
				Command:     "spool inspect --decode",
			},
		},
	}

	var buffer bytes.Buffer
	command.PrintHelp(&buffer)
	output := buffer.String()

	for _, want := range []string{
		"Durable telemetry delivery.",
		"Usage:",
		"spool <command> [flags]",
		"Commands:",
		"send",
		"List queued transmissions",
		"Examples:",
		"# Inspect the default queue",
		"spool inspect --decode",
		"Run 'spool <command> --help'",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("help output missing %q\n\nFull output:\n%s", want, output)
		}
	}
}

func TestCommand_FullName(t *testing.T) {
	root := &Command{Name: "spool"}
	inspect := &Command{Name: "inspect", parent: root}

	if got := root.fullName(); got != "spool" {
		t.Errorf("root.fullName() = %q, want %q", got, "spool")
	}
	if got := inspect.fullName(); got != "spool inspect" {
		t.Errorf("inspect.fullName() = %q, want %q", got, "spool inspect")
	}
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"", "abc", 3},
		{"send", "send", 0},
		{"inspct", "inspect", 1},
		{"purge", "purges", 1},
		{"kitten", "sitting", 3},
	}
	for _, tt := range tests {
		if got := levenshtein(tt.a, tt.b); got != tt.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestNewLogger(t *testing.T) {
	var output bytes.Buffer
	logger, err := NewLogger(&output, "warn")
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	logger.Info("hidden")
	logger.Warn("shown", "file", "a.trn")

	if strings.Contains(output.String(), "hidden") {
		t.Error("info record written at warn level")
	}
	if !strings.Contains(output.String(), `"msg":"shown"`) || !strings.Contains(output.String(), `"file":"a.trn"`) {
		t.Errorf("expected a JSON record, got %q", output.String())
	}

	if _, err := NewLogger(&output, "loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}
