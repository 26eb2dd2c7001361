package detect

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "odoo.conf")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseOdooPortsExplicit(t *testing.T) {
	path := writeConfig(t, `[options]
admin_passwd = secret
http_port = 8169
longpolling_port = 8172
`)
	httpPort, lpPort, err := ParseOdooPorts(path)
	require.NoError(t, err)
	assert.Equal(t, 8169, httpPort)
	assert.Equal(t, 8172, lpPort)
}

func TestParseOdooPortsDefaults(t *testing.T) {
	path := writeConfig(t, `[options]
admin_passwd = secret
`)
	httpPort, lpPort, err := ParseOdooPorts(path)
	require.NoError(t, err)
	assert.Equal(t, 8069, httpPort)
	assert.Equal(t, 8070, lpPort)
}

func TestParseOdooPortsGeventFallback(t *testing.T) {
	// Odoo 18 renamed longpolling_port to gevent_port.
	path := writeConfig(t, `[options]
http_port = 8069
gevent_port = 8072
`)
	httpPort, lpPort, err := ParseOdooPorts(path)
	require.NoError(t, err)
	assert.Equal(t, 8069, httpPort)
	assert.Equal(t, 8072, lpPort)
}

func TestParseOdooPortsLongpollingWinsOverGevent(t *testing.T) {
	path := writeConfig(t, `[options]
longpolling_port = 8172
gevent_port = 8072
`)
	_, lpPort, err := ParseOdooPorts(path)
	require.NoError(t, err)
	assert.Equal(t, 8172, lpPort)
}

func TestParseOdooPortsIgnoresOtherSections(t *testing.T) {
	path := writeConfig(t, `[queue_job]
http_port = 9999

[options]
http_port = 8069

; comment line
# another comment
`)
	httpPort, _, err := ParseOdooPorts(path)
	require.NoError(t, err)
	assert.Equal(t, 8069, httpPort)
}

func TestParseOdooPortsInvalidValueFallsBack(t *testing.T) {
	path := writeConfig(t, `[options]
http_port = not-a-number
`)
	httpPort, _, err := ParseOdooPorts(path)
	require.NoError(t, err)
	assert.Equal(t, 8069, httpPort)
}

func TestConfigFromService(t *testing.T) {
	dir := t.TempDir()
	confPath := filepath.Join(dir, "odoo.conf")
	require.NoError(t, os.WriteFile(confPath, []byte("[options]\n"), 0o644))

	unit := filepath.Join(dir, "odoo.service")
	require.NoError(t, os.WriteFile(unit, []byte(`[Service]
ExecStart=/usr/bin/odoo -c `+confPath+` --workers=4
`), 0o644))

	got, err := ConfigFromService(unit)
	require.NoError(t, err)
	assert.Equal(t, confPath, got)
}

func TestConfigFromServiceMissingFlag(t *testing.T) {
	unit := filepath.Join(t.TempDir(), "odoo.service")
	require.NoError(t, os.WriteFile(unit, []byte("[Service]\nExecStart=/usr/bin/odoo\n"), 0o644))

	_, err := ConfigFromService(unit)
	assert.Error(t, err)
}

func TestBuildRuntimeFromConfigOnly(t *testing.T) {
	path := writeConfig(t, `[options]
http_port = 8069
gevent_port = 8072
`)
	runtime, err := BuildRuntime("", path)
	require.NoError(t, err)
	assert.Equal(t, path, runtime.ConfigFile)
	assert.Equal(t, 8069, runtime.HTTPPort)
	assert.Equal(t, 8072, runtime.LongpollingPort)
}

func TestBuildRuntimeRequiresSomething(t *testing.T) {
	_, err := BuildRuntime("", "")
	assert.Error(t, err)
}
