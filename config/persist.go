package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/ndx-io/NDX/errors"
	"github.com/ndx-io/NDX/logger"
)

// createBackup creates rotating backups (.back1, .back2, .back3) before modifying config
func createBackup(configPath string) error {
	// Check if file exists before backing up
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil // No file to backup
	}

	// Rotate backups: .back3 -> delete, .back2 -> .back3, .back1 -> .back2, current -> .back1
	back3 := configPath + ".back3"
	back2 := configPath + ".back2"
	back1 := configPath + ".back1"

	// Delete oldest backup if exists
	if err := os.Remove(back3); err != nil && !os.IsNotExist(err) {
		logger.Warnw("Failed to delete old config backup", "path", back3, "error", err)
	}

	// Rotate .back2 to .back3
	if _, err := os.Stat(back2); err == nil {
		if err := os.Rename(back2, back3); err != nil {
			return errors.Wrap(err, "failed to rotate .back2 to .back3")
		}
	}

	// Rotate .back1 to .back2
	if _, err := os.Stat(back1); err == nil {
		if err := os.Rename(back1, back2); err != nil {
			return errors.Wrap(err, "failed to rotate .back1 to .back2")
		}
	}

	// Copy current to .back1
	content, err := os.ReadFile(configPath)
	if err != nil {
		return errors.Wrap(err, "failed to read config for backup")
	}

	if err := os.WriteFile(back1, content, DefaultFilePermissions); err != nil {
		return errors.Wrap(err, "failed to create .back1")
	}

	return nil
}

// CredentialsPath returns the path to the CLI-managed credentials file in ~/.ndx/credentials.toml
func CredentialsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".ndx", "credentials.toml")
}

// loadOrInitializeCredentials loads the credentials file, or starts an empty one if it doesn't exist
func loadOrInitializeCredentials() (map[string]interface{}, string, error) {
	configPath := CredentialsPath()
	if configPath == "" {
		return nil, "", errors.New("could not determine home directory")
	}

	// Ensure ~/.ndx directory exists
	ndxDir := filepath.Dir(configPath)
	if err := os.MkdirAll(ndxDir, 0750); err != nil {
		return nil, "", errors.Wrap(err, "failed to create .ndx directory")
	}

	var config map[string]interface{}
	if data, err := os.ReadFile(configPath); err == nil {
		if err := toml.Unmarshal(data, &config); err != nil {
			return nil, "", errors.Wrap(err, "failed to parse credentials file")
		}
	} else {
		config = make(map[string]interface{})
	}

	return config, configPath, nil
}

// saveCredentials writes the credentials file with backup. Written 0600:
// the file carries the cloud token.
func saveCredentials(config map[string]interface{}, configPath string) error {
	if err := createBackup(configPath); err != nil {
		return errors.Wrap(err, "failed to create backup")
	}

	data, err := toml.Marshal(config)
	if err != nil {
		return errors.Wrap(err, "failed to marshal credentials")
	}

	// Mark this as our own write to prevent reload loops
	globalWatcherMu.Lock()
	if globalWatcher != nil {
		globalWatcher.MarkOwnWrite()
	}
	globalWatcherMu.Unlock()

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return errors.Wrap(err, "failed to write credentials file")
	}

	return nil
}

// cloudSection returns the cloud table from a credentials map, creating it if absent.
func cloudSection(config map[string]interface{}) map[string]interface{} {
	if c, ok := config["cloud"].(map[string]interface{}); ok {
		return c
	}
	c := make(map[string]interface{})
	config["cloud"] = c
	return c
}

// UpdateCloudToken persists the bearer token after ndx cloud login
func UpdateCloudToken(token string) error {
	config, configPath, err := loadOrInitializeCredentials()
	if err != nil {
		return errors.Wrap(err, "failed to load credentials")
	}

	cloud := cloudSection(config)
	cloud["token"] = token
	config["cloud"] = cloud

	return saveCredentials(config, configPath)
}

// UpdateCloudOrganization persists the selected organization ID
func UpdateCloudOrganization(org string) error {
	config, configPath, err := loadOrInitializeCredentials()
	if err != nil {
		return errors.Wrap(err, "failed to load credentials")
	}

	cloud := cloudSection(config)
	cloud["organization"] = org
	config["cloud"] = cloud

	return saveCredentials(config, configPath)
}

// ClearCloudCredentials removes the stored token and organization on logout
func ClearCloudCredentials() error {
	config, configPath, err := loadOrInitializeCredentials()
	if err != nil {
		return errors.Wrap(err, "failed to load credentials")
	}

	cloud := cloudSection(config)
	delete(cloud, "token")
	delete(cloud, "organization")
	config["cloud"] = cloud

	return saveCredentials(config, configPath)
}
