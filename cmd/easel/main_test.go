package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/dixieflatline76/Easel/config"
	"github.com/dixieflatline76/Easel/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestSetUnsplashKey(t *testing.T) {
	keyring.MockInit()

	out, err := execute(t, "set-unsplash-key", "  abc123  ")
	require.NoError(t, err)
	assert.Contains(t, out, "saved")

	key, err := config.GetSecret(config.UnsplashKeyName, "")
	require.NoError(t, err)
	assert.Equal(t, "abc123", key)

	_, err = execute(t, "set-unsplash-key")
	assert.Error(t, err)
	_, err = execute(t, "set-unsplash-key", "   ")
	assert.Error(t, err)
}

func TestSourcesCommand(t *testing.T) {
	out, err := execute(t, "sources")
	require.NoError(t, err)
	assert.Contains(t, out, "MetMuseum")
	assert.Contains(t, out, "Unsplash")
}

func TestRunRefusesSecondInstance(t *testing.T) {
	dir := t.TempDir()
	lockPath := filepath.Join(dir, config.LockFile)
	require.NoError(t, os.WriteFile(lockPath, []byte(strconv.Itoa(os.Getpid())), 0644))

	_, err := execute(t, "--data-dir", dir)
	assert.ErrorIs(t, err, util.ErrAlreadyRunning)
	assert.FileExists(t, lockPath, "foreign lock is left alone")
}

func TestRejectsUnknownFlag(t *testing.T) {
	_, err := execute(t, "--no-such-flag")
	assert.Error(t, err)
}
