package epoch

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ndx-io/NDX/errors"
)

// ProbeMapEntry maps a logical probe (an electrode, a camera, a stimulus
// monitor) to the physical acquisition channels that recorded it during an
// epoch. DeviceString follows the "devicename:class:details" convention.
type ProbeMapEntry struct {
	Name          string `json:"name" yaml:"name"`
	Reference     int    `json:"reference" yaml:"reference"`
	Type          string `json:"type" yaml:"type"`
	DeviceString  string `json:"devicestring" yaml:"devicestring"`
	SubjectString string `json:"subjectstring,omitempty" yaml:"subjectstring,omitempty"`
}

// Validate enforces the probe naming rules: no whitespace in name or type,
// non-negative reference.
func (p ProbeMapEntry) Validate() error {
	if p.Name == "" {
		return errors.NewInvalidRequestError("probe map entry has no name")
	}
	if strings.ContainsAny(p.Name, " \t") {
		return errors.NewInvalidRequestError("probe name %q contains whitespace", p.Name)
	}
	if strings.ContainsAny(p.Type, " \t") {
		return errors.NewInvalidRequestError("probe type %q contains whitespace", p.Type)
	}
	if p.Reference < 0 {
		return errors.NewInvalidRequestError("probe %s reference %d is negative", p.Name, p.Reference)
	}
	return nil
}

// DeviceName returns the device component of DeviceString.
func (p ProbeMapEntry) DeviceName() string {
	name, _, _ := strings.Cut(p.DeviceString, ":")
	return name
}

// DeviceClass returns the class component of DeviceString, if present.
func (p ProbeMapEntry) DeviceClass() string {
	_, rest, ok := strings.Cut(p.DeviceString, ":")
	if !ok {
		return ""
	}
	class, _, _ := strings.Cut(rest, ":")
	return class
}

// Matches reports whether the entry satisfies the given criteria. Empty
// name/type and a negative reference match anything.
func (p ProbeMapEntry) Matches(name string, reference int, probeType string) bool {
	if name != "" && p.Name != name {
		return false
	}
	if reference >= 0 && p.Reference != reference {
		return false
	}
	if probeType != "" && p.Type != probeType {
		return false
	}
	return true
}

// probeMapFile is the on-disk shape of probemap.yaml.
type probeMapFile struct {
	Probes []ProbeMapEntry `yaml:"probes"`
}

// LoadProbeMap reads a probe-map YAML file and validates every entry.
func LoadProbeMap(path string) ([]ProbeMapEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read probe map %s", path)
	}
	return ParseProbeMap(data)
}

// ParseProbeMap decodes probe-map YAML. Both the wrapped form
// ("probes:" list) and a bare list are accepted.
func ParseProbeMap(data []byte) ([]ProbeMapEntry, error) {
	var file probeMapFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		var bare []ProbeMapEntry
		if bareErr := yaml.Unmarshal(data, &bare); bareErr != nil {
			return nil, errors.Wrap(err, "parse probe map")
		}
		file.Probes = bare
	}
	for _, p := range file.Probes {
		if err := p.Validate(); err != nil {
			return nil, err
		}
	}
	return file.Probes, nil
}
