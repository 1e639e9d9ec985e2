package commands

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ndx-io/NDX/cloud"
	"github.com/ndx-io/NDX/config"
	"github.com/ndx-io/NDX/errors"
	"github.com/ndx-io/NDX/logger"
	"github.com/ndx-io/NDX/session"
)

func cliLogger() *zap.SugaredLogger {
	return logger.ComponentLogger("cli")
}

// openSession resolves which session a command operates on. An explicit
// --session reference is looked up in the session table; otherwise the
// nearest initialized session walking up from the working directory wins.
func openSession(cmd *cobra.Command) (*session.Session, error) {
	log := cliLogger()
	if ref, _ := cmd.Flags().GetString("session"); ref != "" {
		table, err := session.NewTable(session.DefaultTablePath())
		if err != nil {
			return nil, err
		}
		dir, err := table.Lookup(ref)
		if err != nil {
			return nil, err
		}
		return session.Open(dir, log)
	}
	dir, err := findSessionDir()
	if err != nil {
		return nil, err
	}
	return session.Open(dir, log)
}

// findSessionDir walks up from the working directory to the nearest
// initialized session.
func findSessionDir() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", errors.Wrap(err, "resolve working directory")
	}
	for {
		if session.IsSessionDir(dir) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.WithHint(
				errors.Wrap(errors.ErrNotFound, "no session in this directory or any parent"),
				"run 'ndx init <ref>' to create one, or pass --session <ref>")
		}
		dir = parent
	}
}

// cloudClient builds a cloud API client from the effective configuration.
func cloudClient() (*cloud.Client, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return cloud.NewClient(cloud.Config{
		BaseURL:           cfg.Cloud.APIURL,
		Token:             cfg.Cloud.Token,
		OrgID:             cfg.Cloud.Organization,
		Timeout:           time.Duration(cfg.Cloud.TimeoutSeconds) * time.Second,
		MaxRetries:        cfg.Cloud.MaxRetries,
		RequestsPerSecond: cfg.Cloud.RequestsPerSecond,
		Logger:            logger.ComponentLogger("cloud"),
	}), nil
}

// requireCloudAuth fails fast when no usable token is configured.
func requireCloudAuth(client *cloud.Client) error {
	if !client.IsConfigured() || !cloud.TokenValid(client.Token()) {
		return errors.WithHint(
			errors.Wrap(errors.ErrUnauthorized, "cloud token missing or expired"),
			"run 'ndx cloud login' first")
	}
	return nil
}
