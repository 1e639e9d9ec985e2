// Package navigator discovers recording epochs on disk. A session directory
// holds one subdirectory per epoch (t0001, t0002, ...); each contains the
// recorded files plus two optional metadata sidecars: epoch.yaml (clocks,
// time ranges, per-file origins) and probemap.yaml (probe wiring). The
// navigator turns that layout into epoch.Epoch values without touching raw
// data formats.
package navigator

import (
	"context"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/ndx-io/NDX/epoch"
	"github.com/ndx-io/NDX/errors"
	"github.com/ndx-io/NDX/sym"
	"github.com/ndx-io/NDX/timesync"
)

// DefaultPattern matches the conventional epoch directory names.
const DefaultPattern = "t*"

// Names of the metadata sidecars inside an epoch directory.
const (
	SidecarName  = "epoch.yaml"
	ProbeMapName = "probemap.yaml"
)

// Options configures a Navigator.
type Options struct {
	// Root is the directory holding epoch subdirectories.
	Root string
	// Pattern is the glob epoch directory names must match. Empty means
	// DefaultPattern.
	Pattern string
	// DeviceID is stamped onto every discovered epoch.
	DeviceID string
	// SessionID is stamped onto every discovered epoch.
	SessionID string
	Logger    *zap.SugaredLogger
}

// Navigator scans a directory tree for epochs.
type Navigator struct {
	root      string
	pattern   string
	deviceID  string
	sessionID string
	logger    *zap.SugaredLogger
}

// New validates the options and returns a Navigator.
func New(opts Options) (*Navigator, error) {
	if opts.Root == "" {
		return nil, errors.NewInvalidRequestError("navigator needs a root directory")
	}
	if opts.DeviceID == "" {
		return nil, errors.NewInvalidRequestError("navigator needs a device id")
	}
	pattern := opts.Pattern
	if pattern == "" {
		pattern = DefaultPattern
	}
	if _, err := filepath.Match(pattern, "probe"); err != nil {
		return nil, errors.Wrapf(err, "epoch pattern %q", pattern)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Navigator{
		root:      opts.Root,
		pattern:   pattern,
		deviceID:  opts.DeviceID,
		sessionID: opts.SessionID,
		logger:    logger,
	}, nil
}

// Root returns the watched directory.
func (n *Navigator) Root() string { return n.root }

// DeviceID returns the device the navigator discovers epochs for.
func (n *Navigator) DeviceID() string { return n.deviceID }

// Matches reports whether a directory name is an epoch directory name.
func (n *Navigator) Matches(name string) bool {
	ok, err := filepath.Match(n.pattern, name)
	return err == nil && ok
}

// Scan walks the root and builds the epoch table, ordered by directory
// name. Directory order assigns epoch numbers starting at 1.
func (n *Navigator) Scan(ctx context.Context) ([]epoch.Epoch, error) {
	entries, err := os.ReadDir(n.root)
	if err != nil {
		return nil, errors.Wrapf(err, "scan %s", n.root)
	}

	var epochs []epoch.Epoch
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !entry.IsDir() || !n.Matches(entry.Name()) {
			continue
		}
		ep, err := n.buildEpoch(entry.Name(), len(epochs)+1)
		if err != nil {
			return nil, err
		}
		epochs = append(epochs, ep)
	}

	n.logger.Debugw("Epoch scan complete",
		"symbol", sym.Epoch,
		"device_id", n.deviceID,
		"root", n.root,
		"epochs", len(epochs),
	)
	return epochs, nil
}

func (n *Navigator) buildEpoch(dirName string, number int) (epoch.Epoch, error) {
	dir := filepath.Join(n.root, dirName)

	side, err := loadSidecar(filepath.Join(dir, SidecarName))
	if err != nil {
		return epoch.Epoch{}, errors.Wrapf(err, "epoch %s", dirName)
	}

	ep := epoch.Epoch{
		Number:    number,
		ID:        dirName,
		SessionID: n.sessionID,
		DeviceID:  n.deviceID,
	}
	if side != nil {
		if side.ID != "" {
			ep.ID = side.ID
		}
		for _, c := range side.Clocks {
			ct, err := timesync.ParseClockType(c.Type)
			if err != nil {
				return epoch.Epoch{}, errors.Wrapf(err, "epoch %s sidecar", dirName)
			}
			ep.Clocks = append(ep.Clocks, ct)
			ep.Ranges = append(ep.Ranges, [2]float64{c.T0, c.T1})
		}
	}
	if len(ep.Clocks) == 0 {
		// No sidecar means the device declared nothing about time.
		ep.Clocks = []timesync.ClockType{timesync.NoTime}
		ep.Ranges = [][2]float64{{0, 0}}
	}

	files, err := n.listFiles(dir, side)
	if err != nil {
		return epoch.Epoch{}, errors.Wrapf(err, "epoch %s", dirName)
	}
	ep.Files = files

	probePath := filepath.Join(dir, ProbeMapName)
	if _, err := os.Stat(probePath); err == nil {
		probes, err := epoch.LoadProbeMap(probePath)
		if err != nil {
			return epoch.Epoch{}, errors.Wrapf(err, "epoch %s", dirName)
		}
		ep.ProbeMap = probes
	}

	if err := ep.Validate(); err != nil {
		return epoch.Epoch{}, err
	}
	return ep, nil
}

// listFiles stats the data files of an epoch directory, skipping the
// sidecars and nested directories, and merges per-file origins from the
// sidecar.
func (n *Navigator) listFiles(dir string, side *sidecar) ([]epoch.FileDescriptor, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []epoch.FileDescriptor
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || name == SidecarName || name == ProbeMapName {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, errors.Wrapf(err, "stat %s", name)
		}
		fd := epoch.FileDescriptor{
			Name:      name,
			ByteSize:  info.Size(),
			CreatedAt: info.ModTime().UTC(),
		}
		if side != nil {
			if sf, ok := side.Files[name]; ok && sf.Origin != nil {
				origin := *sf.Origin
				fd.Origin = &origin
			}
		}
		files = append(files, fd)
	}
	return files, nil
}
