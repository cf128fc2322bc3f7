// Command rihigo-notify is a terminal client for Rihigo notifications.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rihigo/notify/internal/api"
	"github.com/rihigo/notify/internal/app"
	"github.com/rihigo/notify/internal/credential"
	"github.com/rihigo/notify/internal/logging"
	"github.com/rihigo/notify/internal/metrics"
	"github.com/rihigo/notify/internal/model"
	"github.com/rihigo/notify/internal/notify"
	"github.com/rihigo/notify/internal/push"
	"github.com/rihigo/notify/internal/realtime"
	"github.com/rihigo/notify/internal/server"
	"github.com/rihigo/notify/internal/store"
	appsync "github.com/rihigo/notify/internal/sync"
	"github.com/rihigo/notify/internal/toast"
	"github.com/rihigo/notify/internal/ui/setup"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "rihigo-notify:", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	configPath := model.DefaultConfigPath()
	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	vault, err := credential.Open(model.ConfigDir())
	if err != nil {
		return err
	}

	session, err := signIn(cfg, configPath, vault)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.CachePath), 0o755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}
	cache, err := store.NewSQLiteStore(cfg.CachePath)
	if err != nil {
		return err
	}
	defer cache.Close()

	client := api.NewClient(cfg.API.BaseURL, session.Token,
		api.WithHTTPClient(&http.Client{Timeout: cfg.API.Timeout}),
	)

	toasts := toast.NewStore(cfg.Toast.Capacity)
	defer toasts.Close()

	feed := notify.NewStore(client, logger,
		notify.WithCache(cache),
		notify.WithPageSize(cfg.API.PageSize),
	)
	defer feed.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := feed.LoadCached(ctx); err != nil {
		logger.Warn("loading cached notifications failed", zap.Error(err))
	}

	rtOpts := []realtime.Option{realtime.WithBackoff(realtime.BackoffFromConfig(cfg.Realtime))}
	var collectors *metrics.Collectors
	if cfg.MetricsEnabled {
		collectors = metrics.New()
		rtOpts = append(rtOpts, realtime.WithObserver(collectors))
	}

	socketURL, err := client.WebSocketURL()
	if err != nil {
		return err
	}
	conn := realtime.New(socketURL, feed, toasts, logger, rtOpts...)

	bridge := app.NewBridge(cfg.API.BaseURL)

	listenerURL := ""
	if cfg.Push.ListenAddr != "" {
		listenerURL = "http://" + cfg.Push.ListenAddr
	}
	platform := push.NewLocalPlatform(cache, bridge, toasts, listenerURL)
	pushes := push.NewManager(platform, logger, push.WithSink(client))
	worker, err := push.NewWorker(cfg.API.BaseURL, platform, bridge, logger)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	if cfg.Push.ListenAddr != "" {
		srv := server.New(cfg.Push.ListenAddr, server.Options{
			BaseURL:   listenerURL,
			Endpoints: platform,
			Push:      worker,
			Metrics:   collectors,
			Logger:    logger,
		})
		g.Go(func() error {
			if err := srv.Serve(gctx); err != nil {
				// The UI keeps working without the listener.
				logger.Error("local listener stopped", zap.Error(err))
			}
			return nil
		})
	}

	root := app.New(app.Deps{
		Session:   session,
		Origin:    cfg.API.BaseURL,
		VAPIDKey:  cfg.Push.VAPIDPublicKey,
		Feed:      feed,
		Toasts:    toasts,
		Realtime:  conn,
		Poller:    appsync.New(feed, appsync.DefaultInterval, logger),
		Bridge:    bridge,
		Push:      pushes,
		Clicker:   worker,
		Displayed: platform,
		Logger:    logger,
	})

	_, runErr := tea.NewProgram(root, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if errors.Is(runErr, tea.ErrProgramKilled) {
		runErr = nil
	}

	// Interrupts bypass the model's own teardown.
	conn.Stop()
	cancel()

	return errors.Join(runErr, g.Wait())
}

// signIn returns the stored session, running the setup form when there is
// no usable token.
func signIn(cfg *model.AppConfig, configPath string, vault *credential.Vault) (credential.Session, error) {
	token, err := vault.Token()
	if err != nil && !errors.Is(err, credential.ErrNoToken) {
		return credential.Session{}, err
	}

	if err == nil {
		session := credential.NewSession(token)
		if !session.Expired(time.Now()) {
			return session, nil
		}
	}

	res, err := runSetup(cfg.API.BaseURL)
	if err != nil {
		return credential.Session{}, err
	}

	cfg.API.BaseURL = res.BaseURL
	if err := model.SaveConfig(configPath, cfg); err != nil {
		return credential.Session{}, err
	}
	if err := vault.SaveToken(res.Token); err != nil {
		return credential.Session{}, err
	}

	return credential.NewSession(res.Token), nil
}

func runSetup(baseURL string) (setup.Result, error) {
	final, err := tea.NewProgram(setup.New(baseURL, 0)).Run()
	if err != nil {
		return setup.Result{}, fmt.Errorf("running setup: %w", err)
	}

	m, ok := final.(setup.Model)
	if !ok {
		return setup.Result{}, errors.New("setup ended unexpectedly")
	}
	res, ok := m.Result()
	if !ok {
		return setup.Result{}, errors.New("setup cancelled")
	}
	return res, nil
}
