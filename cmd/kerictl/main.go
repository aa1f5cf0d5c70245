package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benk79tb/keripy/internal/auth"
	"github.com/benk79tb/keripy/internal/config"
	"github.com/benk79tb/keripy/internal/db"
	"github.com/benk79tb/keripy/internal/eventing"
	"github.com/benk79tb/keripy/internal/logging"
	"github.com/benk79tb/keripy/internal/observability"
	"github.com/benk79tb/keripy/internal/protocol"
	"github.com/benk79tb/keripy/internal/server"
	"github.com/benk79tb/keripy/kering"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	logging.ConfigureRuntime()
	if err := run(os.Args[1:]); err != nil {
		logging.Error(log.Logger, err)
		os.Exit(1)
	}
}

type options struct {
	configPath     string
	initRole       string
	issueRole      string
	force          bool
	escrowInterval time.Duration
}

func parseFlags(args []string) (options, error) {
	var opts options
	fs := flag.NewFlagSet("kerictl", flag.ContinueOnError)
	fs.StringVar(&opts.configPath, "config", "node.toml", "path to node config")
	fs.StringVar(&opts.initRole, "init", "", "write a starter config for `role` to -config and exit")
	fs.StringVar(&opts.issueRole, "issue", "", "print a bearer token sealed for `role` with the config's seal_key and exit")
	fs.BoolVar(&opts.force, "force", false, "overwrite an existing config with -init")
	fs.DurationVar(&opts.escrowInterval, "escrow-interval", 2*time.Second, "how often escrowed messages are retried")
	if err := fs.Parse(args); err != nil {
		return options{}, kering.Wrap(kering.ErrConfiguration, err, "flags")
	}
	if opts.initRole != "" && opts.issueRole != "" {
		return options{}, kering.New(kering.ErrConfiguration, "-init and -issue are exclusive")
	}
	if opts.escrowInterval <= 0 {
		return options{}, kering.New(kering.ErrConfiguration, "escrow-interval must be positive")
	}
	return opts, nil
}

func run(args []string) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}
	if opts.initRole != "" {
		if err := config.WriteTemplate(opts.configPath, opts.initRole, opts.force); err != nil {
			return err
		}
		log.Info().Str("path", opts.configPath).Str("role", opts.initRole).Msg("wrote config template")
		return nil
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if opts.issueRole != "" {
		return issue(cfg, opts.issueRole, os.Stdout)
	}
	logger := observability.InitLogger(cfg.Alias, cfg.Role, zerolog.GlobalLevel())
	logger.Info().Str("path", opts.configPath).Msg("loaded node config")

	baser, err := db.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := baser.Close(); err != nil {
			logging.Error(logger, err)
		}
	}()

	exchanger := eventing.NewExchanger()
	exchanger.Register("/log", func(msg *protocol.Message) error {
		logger.Info().Str("from", msg.I).Str("said", msg.D).Msg("exchange_received")
		return nil
	})
	validator := eventing.NewValidator()
	replayed, err := validator.Restore(baser)
	if err != nil {
		return err
	}
	logger.Info().Int("events", replayed).Msg("key state restored")

	kevery := eventing.NewKevery(eventing.DefaultKeveryConfig(), validator, exchanger, baser, logger)
	srv, err := server.New(cfg, baser, kevery, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go srv.RunEscrows(ctx, opts.escrowInterval)

	for _, e := range cfg.Endpoints {
		logger.Info().Str("endpoint", e.URL()).Msg("advertised endpoint")
	}
	return srv.Serve(ctx)
}

// issue writes a sealed bearer token for role to out.
func issue(cfg config.NodeConfig, role string, out io.Writer) error {
	if len(cfg.SealKey) == 0 {
		return kering.New(kering.ErrConfiguration, "seal_key is not set")
	}
	if !kering.IsRole(role) {
		return kering.Newf(kering.ErrConfiguration, "unknown role %q", role)
	}
	sealer, err := auth.NewSealer(cfg.SealKey)
	if err != nil {
		return err
	}
	token, err := sealer.Seal(kering.Role(role))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, token)
	return err
}
