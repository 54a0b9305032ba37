package config

import (
	"flag"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "calcdesk.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("calcdesk", nil, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:5000", cfg.BaseURL)
	assert.Equal(t, 25*time.Second, cfg.Timeout)
	assert.Equal(t, 4, cfg.BatchLimit)
	assert.Equal(t, []string{"add", "subtract", "multiply", "transpose", "determinant", "inverse"}, cfg.Ops)
	assert.Equal(t, "calcdesk.log", cfg.Logging.Output)
	assert.Empty(t, cfg.Args)
}

func TestLoad_Precedence(t *testing.T) {
	path := writeConfig(t, `
base_url: http://file.example:5000
timeout: 3s
username: from-file
ops: [multiply, " ", inverse]
hooks:
  evaluate: "r => r"
logging:
  level: warn
  format: json
  output: stderr
`)
	t.Setenv("CALCDESK_USERNAME", "from-env")
	t.Setenv("CALCDESK_PASSWORD", "secret")
	t.Setenv("CALCDESK_LOG_LEVEL", "debug")
	t.Setenv("CALCDESK_HISTORY_LABEL", "env label")

	cfg, err := Load("eval", []string{"-config", path, "-base-url", "https://flag.example", "-history-label", "flag-label", "1+1", "2+2"}, io.Discard)
	require.NoError(t, err)

	assert.Equal(t, "https://flag.example", cfg.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.Timeout)
	assert.Equal(t, "from-env", cfg.Username)
	assert.Equal(t, "secret", cfg.Password)
	assert.Equal(t, []string{"multiply", "inverse"}, cfg.Ops)
	assert.Equal(t, "r => r", cfg.Hooks.Evaluate)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "flag-label", cfg.HistoryLabel)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "stderr", cfg.Logging.Output)
	assert.Equal(t, []string{"1+1", "2+2"}, cfg.Args)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		file string
		args []string
	}{
		{name: "explicit missing file", args: []string{"-config", filepath.Join(os.TempDir(), "does-not-exist.yaml")}},
		{name: "bad yaml", file: "base_url: [", args: nil},
		{name: "relative base url", args: []string{"-base-url", "/api"}},
		{name: "ftp base url", args: []string{"-base-url", "ftp://calc"}},
		{name: "no ops", file: "ops: []"},
		{name: "unknown flag", args: []string{"-nope"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			args := tt.args
			if tt.file != "" {
				args = append([]string{"-config", writeConfig(t, tt.file)}, args...)
			}
			_, err := Load("calcdesk", args, io.Discard)
			assert.Error(t, err)
		})
	}
}

func TestValidate_Timeout(t *testing.T) {
	cfg := Default()
	cfg.Timeout = 0
	assert.Error(t, cfg.Validate())
}

func TestLoadWith_SubcommandFlags(t *testing.T) {
	t.Chdir(t.TempDir())

	var op, a string
	cfg, err := LoadWith("matrix", []string{"-op", "transpose", "-timeout", "2s", "-a", "[[1,2]]"}, io.Discard, func(fs *flag.FlagSet) {
		fs.StringVar(&op, "op", "", "")
		fs.StringVar(&a, "a", "", "")
	})
	require.NoError(t, err)
	assert.Equal(t, "transpose", op)
	assert.Equal(t, "[[1,2]]", a)
	assert.Equal(t, 2*time.Second, cfg.Timeout)
}
