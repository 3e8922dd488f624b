package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"parami-backend/internal/config"
	"parami-backend/internal/database"
	"parami-backend/internal/logging"
	"parami-backend/internal/server"
)

func main() {
	app := &cli.App{
		Name:  "parami",
		Usage: "pharmacy inventory backend",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API",
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "create or update the database schema",
				Action: migrate,
			},
			{
				Name:   "seed",
				Usage:  "insert demo branches, users and products",
				Action: seed,
			},
		},
		DefaultCommand: "serve",
	}

	if err := app.Run(os.Args); err != nil {
		log.WithError(err).Fatal("parami exited")
	}
}

func setup() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logging.Setup(cfg)
	return cfg, nil
}

func serve(c *cli.Context) error {
	cfg, err := setup()
	if err != nil {
		return err
	}
	db, err := database.Open(cfg)
	if err != nil {
		return err
	}

	svc := server.NewServices(cfg, db)
	app := server.New(cfg, db, svc)

	var scheduler *cron.Cron
	if cfg.ReconcileSchedule != "" {
		scheduler = cron.New()
		if _, err := svc.Reconciler.Schedule(scheduler, cfg.ReconcileSchedule); err != nil {
			return err
		}
		scheduler.Start()
		log.WithField("schedule", cfg.ReconcileSchedule).Info("reconciliation scheduled")
	}

	errc := make(chan error, 1)
	go func() {
		log.WithField("port", cfg.HTTPPort).Info("listening")
		errc <- app.Listen(":" + cfg.HTTPPort)
	}()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	if scheduler != nil {
		<-scheduler.Stop().Done()
	}
	return app.ShutdownWithTimeout(10 * time.Second)
}

func migrate(c *cli.Context) error {
	cfg, err := setup()
	if err != nil {
		return err
	}
	// Open migrates on connect.
	if _, err := database.Open(cfg); err != nil {
		return err
	}
	log.Info("schema up to date")
	return nil
}

func seed(c *cli.Context) error {
	cfg, err := setup()
	if err != nil {
		return err
	}
	db, err := database.Open(cfg)
	if err != nil {
		return err
	}
	return database.Seed(db)
}

