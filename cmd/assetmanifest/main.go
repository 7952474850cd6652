package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/assetmanifest/cmd/assetmanifest/commands"
	"git.home.luguber.info/inful/assetmanifest/internal/foundation/errors"
	"git.home.luguber.info/inful/assetmanifest/internal/version"
)

func main() {
	cli := &commands.CLI{}
	parser := kong.Parse(cli,
		kong.Name("assetmanifest"),
		kong.Description("Generate asset manifests for multi-configuration builds"),
		kong.Vars{"version": version.String()},
		kong.UsageOnError(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	global := &commands.Global{Ctx: ctx, Logger: slog.Default(), Out: os.Stdout}
	err := parser.Run(global, cli)
	stop()

	adapter := errors.NewCLIErrorAdapter(cli.Verbose, slog.Default())
	os.Exit(adapter.Report(os.Stderr, err))
}
