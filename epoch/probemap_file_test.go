package epoch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadProbeMap(t *testing.T) {
	t.Run("wrapped form", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "probemap.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
probes:
  - name: electrode1
    reference: 1
    type: n-trode
    devicestring: "intan1:ai:1-4"
    subjectstring: mouse001
  - name: camera1
    reference: 0
    type: camera
    devicestring: "cam1:frame:"
`), 0o644))

		probes, err := LoadProbeMap(path)
		require.NoError(t, err)
		require.Len(t, probes, 2)
		assert.Equal(t, "electrode1", probes[0].Name)
		assert.Equal(t, 1, probes[0].Reference)
		assert.Equal(t, "mouse001", probes[0].SubjectString)
		assert.Equal(t, "cam1", probes[1].DeviceName())
	})

	t.Run("bare list form", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "probemap.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
- name: electrode1
  reference: 1
  type: n-trode
`), 0o644))

		probes, err := LoadProbeMap(path)
		require.NoError(t, err)
		require.Len(t, probes, 1)
		assert.Equal(t, "n-trode", probes[0].Type)
	})

	t.Run("invalid entry rejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "probemap.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
probes:
  - name: "bad name"
    reference: 1
    type: n-trode
`), 0o644))

		_, err := LoadProbeMap(path)
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadProbeMap(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("garbage yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "probemap.yaml")
		require.NoError(t, os.WriteFile(path, []byte("probes: [unclosed"), 0o644))

		_, err := LoadProbeMap(path)
		assert.Error(t, err)
	})
}
