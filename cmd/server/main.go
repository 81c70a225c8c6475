// cmd/server/main.go
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/fusionlobby/flb/internal/config"
	"github.com/fusionlobby/flb/internal/httpapi"
	"github.com/fusionlobby/flb/internal/inbox"
	"github.com/fusionlobby/flb/internal/lobby"
	"github.com/fusionlobby/flb/internal/platform"
	"github.com/fusionlobby/flb/internal/session"
	"github.com/fusionlobby/flb/internal/thumbnail"
)

const appID = 250820

func main() {
	logger := logrus.New()

	settingsPath := config.Path()
	settings, err := config.Load(settingsPath)
	if errors.Is(err, config.ErrCreated) {
		logger.Warnf("wrote default settings to %s; fill it in and restart", settingsPath)
		return
	}
	if err != nil {
		logger.Fatalf("failed to load settings: %v", err)
	}

	prefs := settings.Preferences
	if prefs != nil && prefs.Use {
		logger.Info("using saved preferences")
	} else {
		prefs = choosePreferences(logger)
		if prefs.Use {
			settings.Preferences = prefs
			if err := config.Save(settingsPath, settings); err != nil {
				logger.WithError(err).Warn("failed to save preferences")
			}
		}
	}

	driver := "steam"
	if prefs.AuthHandler != "" {
		driver = prefs.AuthHandler
	}
	if lvl, err := logrus.ParseLevel(prefs.LogLevel); err == nil {
		logger.SetLevel(lvl)
	}

	transport, err := platform.OpenTransport(driver, platform.Config{
		AppID: appID,
		Game:  lobby.GameTitle,
	})
	if err != nil {
		logger.Fatalf("failed to open platform transport: %v", err)
	}

	handler, err := buildHandler(logger, settings, driver, transport)
	if err != nil {
		logger.Fatalf("failed to build session: %v", err)
	}

	logger.Info("establishing platform session...")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := handler.Connect(ctx); err != nil {
		logger.Fatalf("failed to establish session: %v", err)
	}
	uptime := time.Now().UTC()
	logger.Info("platform session ready")

	directory := lobby.NewDirectory(logger, handler, settings.RefreshInterval(), lobby.Options{
		IncludeSelf: true,
		IncludeFull: true,
	})
	go directory.Run(ctx)

	var fetcher thumbnail.Fetcher
	if token := settings.Token(settingsPath); token != "" {
		fetcher = &thumbnail.ModClient{Token: token}
	} else {
		logger.Warn("no mod.io token configured, thumbnails disabled")
	}
	cacheDir := os.Getenv("FLB_CACHE_DIR")
	if cacheDir == "" {
		cacheDir = "cache"
	}
	thumbs := thumbnail.NewCache(logger, cacheDir, fetcher)

	api := httpapi.NewServer(logger, handler, directory, thumbs, uptime)

	addr := ":8080"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	server := &http.Server{
		Addr:         addr,
		Handler:      api.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Infof("running on %s", addr)
		errc <- server.ListenAndServe()
	}()

	select {
	case err := <-errc:
		logger.Errorf("server exited: %v", err)
	case <-ctx.Done():
		logger.Info("terminating")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}
}

// choosePreferences walks the operator through the launch choices,
// optionally saving them so later boots skip the prompts. Empty or
// failed input keeps the defaults, so non-interactive runs still work.
func choosePreferences(logger *logrus.Logger) *config.Preferences {
	prefs := &config.Preferences{LogLevel: "info", AuthHandler: "steam"}

	logger.Warn("auth handler [steam/local] (default steam):")
	if line, err := promptLine(context.Background()); err == nil && line != "" {
		prefs.AuthHandler = strings.ToLower(line)
	}
	logger.Warn("log level [trace/debug/info/warning/error] (default info):")
	if line, err := promptLine(context.Background()); err == nil && line != "" {
		prefs.LogLevel = strings.ToLower(line)
	}
	logger.Warn("save these choices for future launches? [y/N]:")
	if line, err := promptLine(context.Background()); err == nil {
		prefs.Use = strings.EqualFold(line, "y") || strings.EqualFold(line, "yes")
	}
	return prefs
}

// buildHandler picks the session backend for the chosen transport
// driver: "local" rides an ambient client, everything else runs the
// full credential handshake.
func buildHandler(logger *logrus.Logger, settings *config.Settings, driver string, transport platform.Transport) (platform.Handler, error) {
	if driver == "local" {
		return session.NewLocalSession(logger, transport), nil
	}

	resolver := session.NewResolver(logger,
		confirmDevice(logger),
		promptAuthenticatorCode(logger),
		emailCode(logger, settings),
	)
	return session.New(logger, transport, resolver, settings.Auth.Username, settings.Auth.Password)
}

// confirmDevice waits for the operator to acknowledge an out-of-band
// device confirmation.
func confirmDevice(logger *logrus.Logger) session.ConfirmFunc {
	return func(ctx context.Context) error {
		logger.Warn("awaiting device confirmation; press enter once accepted...")
		_, err := promptLine(ctx)
		return err
	}
}

// promptAuthenticatorCode reads a one-time code from the console.
func promptAuthenticatorCode(logger *logrus.Logger) session.CodeFunc {
	return func(ctx context.Context, previousFailed bool) (string, error) {
		logger.Warn("enter the code from your authenticator:")
		return promptLine(ctx)
	}
}

// emailCode resolves emailed codes through the configured mailbox,
// falling back to manual console entry when the mailbox is not
// configured or never yields a code.
func emailCode(logger *logrus.Logger, settings *config.Settings) session.EmailCodeFunc {
	manual := func(ctx context.Context, email string) (string, error) {
		logger.Warnf("enter the code sent to your email (%s):", email)
		return promptLine(ctx)
	}

	return func(ctx context.Context, email string, previousFailed bool) (string, error) {
		if !settings.HasIMAP() {
			logger.Warn("empty IMAP configuration, falling back to manual input")
			return manual(ctx, email)
		}

		logger.Info("using IMAP to fetch the login code...")
		resolver := inbox.New(logger, settings.IMAP.Host, settings.IMAP.Port)
		resolver.MaxTries = 24
		if err := resolver.LogIn(settings.IMAP.Username, settings.IMAP.Password); err != nil {
			logger.WithError(err).Error("failed to log in to the mailbox, falling back to manual input")
			return manual(ctx, email)
		}
		defer resolver.Close()

		code, err := resolver.Code(ctx)
		if err != nil {
			logger.WithError(err).Error("failed to retrieve the code from email, falling back to manual input")
			return manual(ctx, email)
		}
		return code, nil
	}
}

// promptLine reads one trimmed line from stdin, honoring ctx
// cancellation: a cancelled prompt's late answer is discarded.
func promptLine(ctx context.Context) (string, error) {
	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		ch <- result{strings.TrimSpace(line), err}
	}()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.err != nil {
			return "", fmt.Errorf("reading input: %w", res.err)
		}
		return res.line, nil
	}
}
