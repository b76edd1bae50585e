package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintLevels(t *testing.T) {
	var out bytes.Buffer
	printLevels(&out)
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 7)
	assert.Equal(t, "0 Trace", strings.TrimSpace(lines[0]))
	assert.Equal(t, "3 Note     urgent", lines[3])
	assert.Equal(t, "6 Fatal    urgent", lines[6])
}

func TestValidateCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "acqlog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`prog_name: daq
host_name: node7
logger:
  no_syslog: true
monitor:
  sinks:
    - name: prometheus::9100
      level: Debug
`), 0o644))

	var out bytes.Buffer
	require.NoError(t, validateCommand([]string{"-config", path}, &out))
	assert.Equal(t, "config "+path+" looks good\n"+
		"  log sink     Warning  file:cout\n"+
		"  monitor sink Debug    prometheus::9100\n", out.String())

	assert.Error(t, validateCommand(nil, &out))
	require.NoError(t, os.WriteFile(path, []byte("logger:\n  capacity: -3\n"), 0o644))
	assert.ErrorContains(t, validateCommand([]string{"-config", path}, &out), "logger.capacity")
}
