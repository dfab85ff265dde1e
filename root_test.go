package main

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CS-5/apalto-bot/config"
	apperr "github.com/CS-5/apalto-bot/errors"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, env := range []string{
		"DISCORD_TOKEN", "CLIENT_ID", "GUILD_IDS", "TRANSMISSAO_CATEGORY_ID",
		"DEFAULT_CATEGORY_IDS", "STAFF_ROLE_IDS", "CALL_GUEST_ROLE_ID",
		"EMPTY_MINUTES", "STATE_FILE", "DEBUG_LOG",
	} {
		t.Setenv(env, "")
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(append([]string{"--env-file", filepath.Join(t.TempDir(), "none.env")}, args...))
	err := root.Execute()
	return buf.String(), err
}

func TestRootCommand_Help(t *testing.T) {
	out, err := execute(t, "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "apalto-bot")
	assert.Contains(t, out, "run")
	assert.Contains(t, out, "commands")
	assert.Contains(t, out, "config")
}

func TestRootCommand_GlobalFlags(t *testing.T) {
	out, err := execute(t, "--debug", "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "--config")
	assert.Contains(t, out, "--debug")
	assert.Contains(t, out, "--env-file")
}

func TestCommandsCommand_Help(t *testing.T) {
	out, err := execute(t, "commands", "--help")
	require.NoError(t, err)
	for _, sub := range []string{"deploy", "list", "clear", "redeploy"} {
		assert.Contains(t, out, sub)
	}
}

func TestConfigCommand_MissingFile(t *testing.T) {
	clearEnv(t)
	_, err := execute(t, "config", "--config", "/nonexistent/apalto.yaml")
	require.Error(t, err)
	assert.True(t, apperr.HasCode(err, apperr.CodeConfigLoadReadFailure))
}

func TestConfigCommand_FromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("DISCORD_TOKEN", "secret-token-abcd")
	t.Setenv("GUILD_IDS", "100000000000000001, bad")
	t.Setenv("EMPTY_MINUTES", "7")

	out, err := execute(t, "config")
	require.NoError(t, err)
	assert.Contains(t, out, "********abcd")
	assert.NotContains(t, out, "secret-token")
	assert.Contains(t, out, "100000000000000001")
	assert.Contains(t, out, "7m0s")
	assert.Contains(t, out, `ignoring "bad"`)
	assert.Contains(t, out, "(environment only)")
}

func TestConfigCommand_FromFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "apalto.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"token: file-token-wxyz\n"+
			"client_id: \"400000000000000001\"\n"+
			"empty_minutes: 0\n"+
			"state_file: /tmp/pairs.json\n"), 0o600))

	out, err := execute(t, "config", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)
	assert.Contains(t, out, "********wxyz")
	assert.Contains(t, out, "400000000000000001")
	assert.Contains(t, out, "1m0s")
	assert.Contains(t, out, "/tmp/pairs.json")
}

func TestConfigCommand_ReportsInvalid(t *testing.T) {
	clearEnv(t)
	out, err := execute(t, "config")
	require.NoError(t, err)
	assert.Contains(t, out, "token (DISCORD_TOKEN) must not be empty")
}

func TestCommandsDeploy_RequiresToken(t *testing.T) {
	clearEnv(t)
	_, err := execute(t, "commands", "deploy")
	require.Error(t, err)
	assert.True(t, apperr.HasCode(err, apperr.CodeConfigValidateInvalidValue))
}

func TestCommandsList_RejectsBadGuild(t *testing.T) {
	clearEnv(t)
	t.Setenv("DISCORD_TOKEN", "token")
	t.Setenv("CLIENT_ID", "400000000000000001")

	_, err := execute(t, "commands", "list", "not-a-guild")
	require.Error(t, err)
	assert.True(t, apperr.HasCode(err, apperr.CodeCLIInputInvalid))
}

func TestCommandsRedeploy_RequiresGuilds(t *testing.T) {
	clearEnv(t)
	t.Setenv("DISCORD_TOKEN", "token")
	t.Setenv("CLIENT_ID", "400000000000000001")

	_, err := execute(t, "commands", "redeploy")
	require.Error(t, err)
	assert.True(t, apperr.HasCode(err, apperr.CodeCLIInputInvalid))
}

func TestCommandsClear_NothingToClear(t *testing.T) {
	clearEnv(t)
	t.Setenv("DISCORD_TOKEN", "token")
	t.Setenv("CLIENT_ID", "400000000000000001")

	_, err := execute(t, "commands", "clear")
	require.Error(t, err)
	assert.True(t, apperr.HasCode(err, apperr.CodeCLIInputInvalid))
}

func TestGuildTargets(t *testing.T) {
	clearEnv(t)
	t.Setenv("GUILD_IDS", "100000000000000001,100000000000000002")
	cfg, err := config.Load("")
	require.NoError(t, err)

	got, err := guildTargets(nil, cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"100000000000000001", "100000000000000002"}, got)

	got, err = guildTargets([]string{"100000000000000009"}, cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"100000000000000009"}, got)

	_, err = guildTargets([]string{"100000000000000009", "x"}, cfg)
	assert.True(t, apperr.IsInvalidInput(err))
}

func TestFanOutRunsEveryTarget(t *testing.T) {
	var calls atomic.Int32
	boom := errors.New("boom")

	err := fanOut(context.Background(), []string{"a", "b", "", "c"}, func(_ context.Context, _ int, guildID string) error {
		calls.Add(1)
		if guildID == "b" {
			return boom
		}
		return nil
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int32(4), calls.Load())
}

func TestScopeName(t *testing.T) {
	assert.Equal(t, "global", scopeName(""))
	assert.Equal(t, "guild 1", scopeName("1"))
}

func TestNewLogger(t *testing.T) {
	buf := new(bytes.Buffer)
	assert.False(t, newLogger(buf, false).Enabled(context.Background(), slog.LevelDebug))
	assert.True(t, newLogger(buf, true).Enabled(context.Background(), slog.LevelDebug))
}
