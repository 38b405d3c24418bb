package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Flowerbox-Finance/Flowerbox-Finance/internal/config"
	httpservice "github.com/Flowerbox-Finance/Flowerbox-Finance/internal/interface/http"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

// Version will be set during build time
var Version string

func mainAction(ctx *cli.Context) error {
	cfg, err := config.LoadConfig(ctx)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	log.SetLevel(log.Level(cfg.LogLevel))

	svcConfig := httpservice.Config{
		Port:           cfg.Port,
		AdminPort:      cfg.AdminPort,
		NoLedgerFaucet: cfg.NoLedgerFaucet,
	}

	svc, err := httpservice.NewService(Version, svcConfig, cfg)
	if err != nil {
		return err
	}

	log.Infof("flowerboxd config: %s", cfg)

	log.Info("starting service...")
	if err := svc.Start(); err != nil {
		return err
	}

	log.RegisterExitHandler(svc.Stop)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(
		sigChan, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGHUP, os.Interrupt,
	)
	<-sigChan

	log.Info("shutting down service...")
	log.Exit(0)

	return nil
}

func main() {
	app := cli.NewApp()
	app.Version = Version
	app.Name = "flowerboxd"
	app.Usage = "run or manage the flowerbox vault service"
	app.UsageText = "Run the flowerbox vault service or manage it via cli"
	app.Flags = config.Flags
	app.Action = mainAction
	app.Commands = append(app.Commands, infoCmd, vaultCmd, ledgerCmd, adminCmd)

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
