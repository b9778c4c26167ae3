package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"
	"github.com/valentinerf/valentine-rf/internal/app"
	"github.com/valentinerf/valentine-rf/internal/config"
	"github.com/valentinerf/valentine-rf/internal/logging"
)

// NewCommand builds the root cobra command.
func NewCommand(version, commit string) *cobra.Command {
	var openBrowser bool

	cmd := &cobra.Command{
		Use:     "valentine-rf",
		Version: fmt.Sprintf("%s - %s", version, commit),
		Annotations: map[string]string{
			"version": version,
			"commit":  commit,
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRoot(cmd, openBrowser)
		},
		SilenceErrors:     true,
		DisableAutoGenTag: true,
	}

	cmd.Flags().BoolVar(&openBrowser, "open-browser", false, "open the dashboard in a browser once the HTTP listener is up")

	return cmd
}

func runRoot(cmd *cobra.Command, openBrowser bool) error {
	ctx := cmd.Context()
	fmt.Printf("valentine-rf - %s (%s)\n", cmd.Annotations["version"], cmd.Annotations["commit"])

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logging.New(cfg)

	a, err := app.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to build app: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if openBrowser {
		go openDashboard(cfg, log)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGHUP)
	go func() {
		sig := <-sigCh
		log.Warn("shutting down due to signal", "signal", sig)
		cancel()
	}()

	return a.Run(runCtx)
}

// openDashboard waits briefly for the listener to come up, then opens the
// dashboard URL in the operator's default browser. Best-effort: a headless
// or browserless host just logs the failure and carries on.
func openDashboard(cfg *config.Config, log *slog.Logger) {
	time.Sleep(500 * time.Millisecond)
	url := fmt.Sprintf("http://localhost:%d/", cfg.HTTP.Port)
	if err := browser.OpenURL(url); err != nil {
		log.Warn("failed to open browser, open the dashboard manually", "url", url, "error", err)
	}
}
