package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/reportctl/cmd/reportctl/internal/commands"
	"github.com/wolfeidau/reportctl/internal/logger"
	"github.com/wolfeidau/reportctl/internal/telemetry"
)

var (
	version = "dev"
	cli     struct {
		Login    commands.LoginCmd    `cmd:"" help:"Log in with email and password"`
		Logout   commands.LogoutCmd   `cmd:"" help:"Log out and forget tracked analyses"`
		Whoami   commands.WhoamiCmd   `cmd:"" help:"Show the signed in user"`
		Status   commands.StatusCmd   `cmd:"" help:"Show session state and tracked analyses"`
		Analysis commands.AnalysisCmd `cmd:"" help:"Manage analyses"`

		Server   string `help:"Server URL, overrides the config file" env:"REPORTCTL_SERVER"`
		StateDir string `help:"State directory, defaults to ~/.reportctl" env:"REPORTCTL_STATE_DIR"`
		Config   string `help:"Config file, defaults to config.yaml in the state directory" env:"REPORTCTL_CONFIG"`
		Tracing  bool   `help:"Export traces and metrics over OTLP" env:"REPORTCTL_TRACING"`
		Debug    bool   `help:"Enable debug mode."`
		Version  kong.VersionFlag
	}
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := kong.Parse(&cli,
		kong.Name("reportctl"),
		kong.Description("Command line client for the portfolio reporting service."),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))

	log.Logger = logger.Setup(cli.Debug)

	shutdown := telemetry.ShutdownFunc(telemetry.Noop)
	if cli.Tracing {
		var err error
		shutdown, err = telemetry.InitTelemetry(ctx, "reportctl", version)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize telemetry, continuing without it")
			shutdown = telemetry.Noop
		}
	}

	err := cmd.Run(&commands.Globals{
		Debug:    cli.Debug,
		Version:  version,
		Server:   cli.Server,
		StateDir: cli.StateDir,
		Config:   cli.Config,
	})

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if shutdownErr := shutdown(shutdownCtx); shutdownErr != nil {
		log.Error().Err(shutdownErr).Msg("Failed to shutdown telemetry")
	}

	cmd.FatalIfErrorf(err)
}
