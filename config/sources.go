package config

import (
	"sort"

	"github.com/spf13/viper"
)

// SettingSource names the configuration layer a value came from.
type SettingSource string

const (
	SourceDefault     SettingSource = "default"
	SourceSystem      SettingSource = "system"      // /etc/ndx/config.toml
	SourceUser        SettingSource = "user"        // ~/.ndx/config.toml
	SourceCredentials SettingSource = "credentials" // ~/.ndx/credentials.toml
	SourceProject     SettingSource = "project"     // ndx.toml found walking up from cwd
)

// SettingInfo is one effective configuration value with its provenance.
type SettingInfo struct {
	Key        string        `json:"key"`
	Value      interface{}   `json:"value"`
	Source     SettingSource `json:"source"`
	SourcePath string        `json:"source_path,omitempty"`
}

// Sources records, per dotted key, the last configuration layer that set it.
// Keys absent from the map came from defaults or the environment.
var Sources = map[string]SettingSource{}

var sourcePaths = map[string]string{}

// trackSources flattens the settings a just-merged layer contributed and
// records the layer as their source. Later layers overwrite earlier ones,
// matching merge precedence.
func trackSources(v *viper.Viper, source SettingSource, path string) {
	for _, key := range flattenKeys(v.AllSettings(), "") {
		Sources[key] = source
		sourcePaths[key] = path
	}
}

func flattenKeys(settings map[string]interface{}, prefix string) []string {
	var keys []string
	for k, val := range settings {
		full := k
		if prefix != "" {
			full = prefix + "." + k
		}
		if nested, ok := val.(map[string]interface{}); ok {
			keys = append(keys, flattenKeys(nested, full)...)
			continue
		}
		keys = append(keys, full)
	}
	return keys
}

// Introspect returns every effective setting with its value and source,
// sorted by key. Settings no layer touched report SourceDefault.
func Introspect() []SettingInfo {
	v := GetViper()

	var out []SettingInfo
	for _, key := range flattenKeys(v.AllSettings(), "") {
		info := SettingInfo{
			Key:    key,
			Value:  v.Get(key),
			Source: SourceDefault,
		}
		if src, ok := Sources[key]; ok {
			info.Source = src
			info.SourcePath = sourcePaths[key]
		}
		out = append(out, info)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
