package commands

import (
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/ndx-io/NDX/config"
	"github.com/ndx-io/NDX/errors"
	"github.com/ndx-io/NDX/logger"
	"github.com/ndx-io/NDX/server"
	"github.com/ndx-io/NDX/sym"
)

// ServeCmd starts the sync graph visualization server.
var ServeCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"server"},
	Short:   sym.Feed + " Start the sync graph visualization server",
	Long: sym.Feed + ` serve - Live sync graph

Serves the session's synchronization graph over HTTP and websocket.
Connected clients receive the full graph on connect and again whenever it
changes; timestamps convert through POST /api/convert or over the
websocket.

Examples:
  ndx serve                  # Serve the nearest session
  ndx serve --port 9000      # Explicit port
  ndx serve --open           # Also open the graph in a browser`,
	RunE: runServe,
}

var (
	servePortFlag int
	serveOpenFlag bool
)

func init() {
	ServeCmd.Flags().IntVar(&servePortFlag, "port", 0, "Port to listen on (default from config)")
	ServeCmd.Flags().BoolVar(&serveOpenFlag, "open", false, "Open the graph in a browser once the server is up")
}

func runServe(cmd *cobra.Command, args []string) error {
	// A silent server is useless; lift the floor to Info so the ready line
	// with the resolved URL is visible.
	verbosity, _ := cmd.Flags().GetCount("verbose")
	if verbosity == 0 {
		verbosity = 1
		if err := logger.InitializeWithLevel(false, logger.VerbosityToLevel(verbosity)); err != nil {
			return errors.Wrap(err, "initialize logger")
		}
	}

	port := servePortFlag
	if port == 0 {
		port = config.GetServerPort()
	}

	sess, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer sess.Close()

	if err := sess.LoadSyncGraph(cmd.Context()); err != nil {
		return err
	}

	srv, err := server.NewServer(sess, verbosity)
	if err != nil {
		return errors.Wrap(err, "create server")
	}

	// Epoch invalidations and other graph edits push a fresh graph to every
	// connected client.
	sess.OnGraphChange(srv.Refresh)

	stopWatcher := setupConfigWatcher(srv)
	defer stopWatcher()

	printStartupBanner(verbosity, sess.Ref(), sess.Dir())

	var browserFunc func(string) error
	if serveOpenFlag {
		browserFunc = openBrowser
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start(port, browserFunc)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return errors.Wrap(err, "server failed")
	case <-sigChan:
		// First Ctrl+C drains gracefully; a second one forces exit.
		pterm.Info.Println("\nShutting down gracefully (press Ctrl+C again to force)...")

		shutdownDone := make(chan error, 1)
		go func() {
			shutdownDone <- srv.Stop()
		}()

		select {
		case err := <-shutdownDone:
			if err != nil {
				return errors.Wrap(err, "shutdown")
			}
			pterm.Success.Println("Server stopped cleanly")
			return nil
		case <-sigChan:
			pterm.Warning.Println("\nForce shutdown - exiting immediately")
			os.Exit(1)
			return nil // unreachable
		}
	}
}

// setupConfigWatcher pushes a fresh graph to clients when a config file
// changes; the reload itself refreshes cached settings such as allowed
// origins. Returns a stop function. Watching is disabled when no config
// file exists.
func setupConfigWatcher(srv *server.Server) func() {
	log := cliLogger()
	configPath := config.ActiveConfigFile()
	if configPath == "" {
		log.Debugw("No config file found, config watching disabled", "symbol", sym.Config)
		return func() {}
	}

	watcher, err := config.NewWatcher(configPath)
	if err != nil {
		log.Warnw("Config watching disabled",
			"symbol", sym.Config,
			"path", configPath,
			"error", err,
		)
		return func() {}
	}
	config.SetGlobalWatcher(watcher)
	watcher.OnReload(func(cfg *config.Config) error {
		log.Infow("Configuration reloaded",
			"symbol", sym.Config,
			"path", configPath,
		)
		srv.Refresh()
		return nil
	})
	watcher.Start()
	return func() { watcher.Stop() }
}

// openBrowser opens url in the platform's default browser. Failures are
// returned so the server can log a hint; the URL is always printed anyway.
func openBrowser(url string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url).Start()
	case "linux":
		return exec.Command("xdg-open", url).Start()
	case "windows":
		return exec.Command("cmd", "/c", "start", url).Start()
	default:
		return errors.Newf("no browser launcher for %s", runtime.GOOS)
	}
}
