package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"polaris/internal/auth"
	"polaris/internal/collection"
	"polaris/internal/config"
	"polaris/internal/metadata"
	"polaris/internal/orchestrator"
	"polaris/internal/scan"
	"polaris/internal/server"
	"polaris/internal/store"
	"polaris/internal/thumbnail"
	"polaris/pkg/polaris"
)

func main() {
	configPath := flag.String("c", envOr("POLARIS_CONFIG_DIR", "./config")+"/polaris.toml", "path to config.toml")
	dataDir := flag.String("data", envOr("POLARIS_DATA_DIR", "./data"), "path to data directory")
	webDir := flag.String("w", "./web", "path to the web UI directory")
	swaggerDir := flag.String("s", "", "path to the swagger/OpenAPI directory")
	port := flag.Int("p", 5050, "port to listen on")
	foreground := flag.Bool("f", false, "run in the foreground (POSIX)")
	logPath := flag.String("log", "", "path to the log file; empty logs to stderr")
	flag.Parse()

	_ = foreground
	_ = swaggerDir
	_ = webDir

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if *logPath != "" {
		f, err := os.OpenFile(*logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			logger.WithError(err).Fatal("could not open log file")
		}
		logger.SetOutput(f)
	}

	if err := run(*configPath, *dataDir, *port, logger); err != nil {
		logger.WithError(err).Fatal("polaris exited with error")
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func run(configPath, dataDir string, port int, logger *logrus.Logger) error {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	st, err := store.Open(filepath.Join(dataDir, "polaris.db"), logger)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	secret, err := auth.LoadOrGenerateSecret(filepath.Join(dataDir, "auth_secret"))
	if err != nil {
		return fmt.Errorf("loading auth secret: %w", err)
	}
	authSvc := auth.NewService(secret, st)

	settings, _ := cfg.Current()
	if err := bootstrapUsers(st, settings, logger); err != nil {
		return fmt.Errorf("bootstrapping declared users: %w", err)
	}
	if err := st.SaveSettings(settings); err != nil {
		logger.WithError(err).Warn("could not persist initial settings mirror")
	}

	thumbs, err := thumbnail.New(filepath.Join(dataDir, "thumbnails"))
	if err != nil {
		return fmt.Errorf("opening thumbnail cache: %w", err)
	}

	extractor := metadata.NewExtractor(logger)
	scanner := scan.New(extractor, logger, settings.AlbumArtPattern)
	index := collection.NewIndex()

	interval := time.Duration(settings.IndexSleepDurationSeconds) * time.Second
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	orch := orchestrator.New(scanner, index, logger, func() orchestrator.MountSource {
		return orchestrator.MountSource(cfg.Mounts())
	}, interval)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	orch.Start(ctx)
	defer orch.Stop()

	go config.RunDDNSLoop(ctx, cfg, logger, 60*time.Second)

	srv := server.New(server.Dependencies{
		Config:       cfg,
		Store:        st,
		Auth:         authSvc,
		Index:        index,
		Thumbnails:   thumbs,
		Orchestrator: orch,
		Logger:       logger,
		Addr:         fmt.Sprintf(":%d", port),
	})

	serverErr := make(chan error, 1)
	go func() { serverErr <- srv.Start() }()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return err
	case <-sig:
		logger.Info("received shutdown signal")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return srv.Shutdown(shutdownCtx)
}

// bootstrapUsers creates any declared [[users]] config entry that
// doesn't already have a persisted user record, hashing initial
// passwords on first load per the config file's documented contract.
func bootstrapUsers(st *store.Store, settings config.Settings, logger *logrus.Logger) error {
	for _, declared := range settings.Users {
		if _, err := st.GetUser(declared.Name); err == nil {
			continue
		}
		hash := declared.HashedPassword
		if hash == "" {
			h, err := auth.HashPassword(declared.InitialPassword)
			if err != nil {
				return fmt.Errorf("hashing password for declared user %q: %w", declared.Name, err)
			}
			hash = h
		}
		if err := st.PutUser(storeUser(declared, hash)); err != nil {
			return fmt.Errorf("creating declared user %q: %w", declared.Name, err)
		}
		logger.WithField("user", declared.Name).Info("created declared user")
	}
	return nil
}

func storeUser(declared config.DeclaredUser, hash string) *polaris.User {
	return &polaris.User{Name: declared.Name, PasswordHash: hash, Admin: declared.Admin}
}
