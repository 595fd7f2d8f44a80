package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/louisf098/Otternet-Team-Otter-sub000/directory"
	"github.com/louisf098/Otternet-Team-Otter-sub000/proxy"
	"github.com/louisf098/Otternet-Team-Otter-sub000/retrieval"
	"github.com/louisf098/Otternet-Team-Otter-sub000/transfer"
	"github.com/louisf098/Otternet-Team-Otter-sub000/wallet"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
	"github.com/ziflex/lecho/v3"
	"gorm.io/gorm"
)

func run(ctx context.Context, configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		return errors.Wrap(err, "cannot parse log level")
	}

	zerolog.SetGlobalLevel(level)

	if cfg.Log.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	db, err := gorm.Open(sqlite.Open(cfg.Database.Path), &gorm.Config{})
	if err != nil {
		return errors.Wrap(err, "cannot open database")
	}

	ledger, err := retrieval.NewLedger(db)
	if err != nil {
		return errors.Wrap(err, "cannot create retrieval ledger")
	}

	walletClient := wallet.NewClient(wallet.Config{
		BaseURL:  cfg.Wallet.URL,
		Timeout:  cfg.Wallet.Timeout,
		Username: cfg.Wallet.Username,
		Password: cfg.Wallet.Password,
	})

	orchestrator, err := retrieval.NewOrchestrator(retrieval.Config{
		Directory:   directory.NewClient(cfg.Directory.URL, cfg.Directory.Timeout),
		Cache:       directory.NewCacheClient(cfg.Directory.URL, cfg.Directory.Timeout),
		Wallet:      walletClient,
		Transfer:    transfer.NewClient(cfg.Transfer.URL, cfg.Transfer.Timeout),
		Ledger:      ledger,
		WarmTimeout: cfg.Retrieval.WarmTimeout,
		MaxJobs:     cfg.Retrieval.MaxJobs,
	})
	if err != nil {
		return errors.Wrap(err, "cannot create retrieval orchestrator")
	}

	sessionStore, err := proxy.NewSessionStore(db)
	if err != nil {
		return errors.Wrap(err, "cannot create proxy session store")
	}

	manager := proxy.NewManager(proxy.Config{
		Handshaker:    proxy.NewHandshakeClient(cfg.Proxy.HandshakeTimeout),
		Store:         sessionStore,
		FlushInterval: cfg.Proxy.FlushInterval,
	})

	resumed, err := manager.Reconcile(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("cannot reconcile persisted proxy session")
	} else if resumed != nil {
		log.Info().Str("node", resumed.Node.ID).Int64("elapsedSeconds", resumed.ElapsedSeconds).
			Msg("resumed proxy session from previous run")
	}

	api := echo.New()
	api.HideBanner = true
	api.Logger = lecho.From(log.Logger)
	api.Use(middleware.Recover())

	api.GET(providersRoute, func(c echo.Context) error {
		return searchProvidersHandler(c, orchestrator)
	})
	api.POST(downloadRoute, func(c echo.Context) error {
		return downloadHandler(c, orchestrator)
	})
	api.GET(downloadHistoryRoute, func(c echo.Context) error {
		return downloadHistoryHandler(c, orchestrator)
	})
	api.GET(balanceRoute, func(c echo.Context) error {
		return balanceHandler(c, walletClient)
	})
	api.POST(proxyConnectRoute, func(c echo.Context) error {
		return proxyConnectHandler(c, manager)
	})
	api.POST(proxyDisconnectRoute, func(c echo.Context) error {
		return proxyDisconnectHandler(c, manager)
	})
	api.GET(proxySessionRoute, func(c echo.Context) error {
		return proxySessionHandler(c, manager)
	})
	api.GET(proxyHistoryRoute, func(c echo.Context) error {
		return proxyHistoryHandler(c, sessionStore)
	})

	apiErrorChannel := make(chan error, 1)

	go func() {
		log.Info().Str("listen_addr", cfg.API.ListenAddr).Msg("starting api")
		apiErrorChannel <- api.Start(cfg.API.ListenAddr)
	}()

	select {
	case err := <-apiErrorChannel:
		return errors.Wrap(err, "api error")
	case <-ctx.Done():
		log.Info().Msg("shutting down")

		err := api.Shutdown(context.Background())
		if err != nil {
			return errors.Wrap(err, "cannot shut down api")
		}

		return nil
	}
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	var configPath string
	app := &cli.App{
		Name: "otternet",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "start the otternet client daemon",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:        "config",
						Aliases:     []string{"c"},
						Usage:       "path to the config file",
						Value:       "./config.toml",
						Destination: &configPath,
					},
				},
				Action: func(c *cli.Context) error {
					ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
					defer stop()

					return run(ctx, configPath)
				},
			},
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot run otternet")
	}
}
