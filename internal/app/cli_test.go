package app

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sleepstars/yuanbao2api/internal/mocks"
	"github.com/sleepstars/yuanbao2api/internal/models"
	"github.com/sleepstars/yuanbao2api/internal/orchestrator"
)

func TestPrintEvents(t *testing.T) {
	var out, thinking bytes.Buffer
	reason, err := printEvents(context.Background(), mocks.Events(
		models.NewMessageEvent(models.Think, "hm"),
		models.NewMessageEvent(models.Msg, "Hello"),
		models.NewMessageEvent(models.Msg, " there"),
		models.NewFinishEvent("stop"),
	), &out, &thinking)

	require.NoError(t, err)
	assert.Equal(t, "stop", reason)
	assert.Equal(t, "Hello there\n", out.String())
	assert.Equal(t, "hm", thinking.String())
}

func TestPrintEventsAbnormal(t *testing.T) {
	var out bytes.Buffer

	_, err := printEvents(context.Background(), mocks.Events(models.NewMessageEvent(models.Think, "x")), &out, nil)
	assert.ErrorIs(t, err, orchestrator.ErrTruncated)
	assert.Empty(t, out.String())

	boom := errors.New("boom")
	_, err = printEvents(context.Background(), mocks.Events(models.NewErrorEvent(boom)), &out, nil)
	assert.ErrorIs(t, err, boom)
}

func TestModelsCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"models"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "deepseek-v3\tdeep_seek_v3\ndeepseek-r1\tdeep_seek\n", out.String())
}

func TestChatCommandRejectsUnknownModel(t *testing.T) {
	cmd := NewRootCmd()
	cmd.SetArgs([]string{"chat", "--model", "gpt-4", "hello"})
	err := cmd.Execute()
	assert.ErrorIs(t, err, models.ErrInvalidModel)
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
agent_id: naQivTmsDa
hy_user: user
port: 3000
conversation_id: conv
log_level: debug
`), 0o600))
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("YUANBAO_HY_TOKEN=from-dotenv\n"), 0o600))
	os.Unsetenv("YUANBAO_HY_TOKEN")
	t.Cleanup(func() { os.Unsetenv("YUANBAO_HY_TOKEN") })

	cfg, err := loadConfig(&globalFlags{configPath: path, envFile: envFile, logLevel: "warn"})
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.HyToken)

	os.Unsetenv("YUANBAO_HY_TOKEN")
	_, err = loadConfig(&globalFlags{configPath: path, envFile: filepath.Join(dir, "missing.env")})
	assert.Error(t, err, "token is required once the dotenv file is gone")
}
