package navigator

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ndx-io/NDX/errors"
)

// sidecarClock declares one clock the epoch recorded on, with its [t0, t1]
// range in that clock's seconds.
type sidecarClock struct {
	Type string  `yaml:"type"`
	T0   float64 `yaml:"t0"`
	T1   float64 `yaml:"t1"`
}

// sidecarFile carries per-file metadata keyed by file name; Origin is the
// file's start time on the device's native clock.
type sidecarFile struct {
	Origin *float64 `yaml:"origin"`
}

// sidecar is the on-disk shape of epoch.yaml.
type sidecar struct {
	ID     string                 `yaml:"id"`
	Clocks []sidecarClock         `yaml:"clocks"`
	Files  map[string]sidecarFile `yaml:"files"`
}

// loadSidecar reads an epoch.yaml. A missing file is not an error; the
// epoch simply has no declared clocks.
func loadSidecar(path string) (*sidecar, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "read sidecar")
	}
	var side sidecar
	if err := yaml.Unmarshal(data, &side); err != nil {
		return nil, errors.Wrap(err, "parse sidecar")
	}
	return &side, nil
}
