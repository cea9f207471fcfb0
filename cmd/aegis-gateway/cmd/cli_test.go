package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func executeCommand(root *cobra.Command, args ...string) (string, error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func TestCheck_Defaults(t *testing.T) {
	configFile = ""

	output, err := executeCommand(rootCmd, "check")
	require.NoError(t, err)
	assert.Contains(t, output, "configuration ok")
	assert.Contains(t, output, "8080")
	assert.Contains(t, output, "memory")
}

func TestCheck_ConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "aegis.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: \"9090\"\naudit_store: sqlite\n"), 0o600))

	configFile = path
	defer func() { configFile = "" }()

	output, err := executeCommand(rootCmd, "check")
	require.NoError(t, err)
	assert.Contains(t, output, "9090")
	assert.Contains(t, output, "sqlite")
}

func TestCheck_RejectsBadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "aegis.yaml")
	require.NoError(t, os.WriteFile(path, []byte("limit_store: dynamo\n"), 0o600))

	configFile = path
	defer func() { configFile = "" }()

	_, err := executeCommand(rootCmd, "check")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "limit_store")
}

func TestCheck_RejectsMissingRulesFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "aegis.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rules_file: /does/not/exist.yaml\n"), 0o600))

	configFile = path
	defer func() { configFile = "" }()

	_, err := executeCommand(rootCmd, "check")
	require.Error(t, err)
}
