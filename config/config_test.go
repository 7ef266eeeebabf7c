package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	for _, path := range []string{"", filepath.Join(t.TempDir(), "missing.yaml")} {
		cfg, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, "127.0.0.1:5000", cfg.Server.Listen)
		assert.False(t, cfg.Server.ResetOnIngest)
		assert.Equal(t, ProviderGmail, cfg.Mail.Provider)
		assert.Equal(t, TokenStoreFile, cfg.Gmail.TokenStore)
		assert.Equal(t, 993, cfg.IMAP.Port)
		assert.True(t, cfg.IMAP.TLS)
		assert.Equal(t, "INBOX", cfg.IMAP.Mailbox)
		assert.Equal(t, "files-attachments", cfg.Staging.Dir)
		assert.Equal(t, []string{".pdf", ".docx", ".doc"}, cfg.Staging.Extensions)
		assert.Equal(t, 1000, cfg.Normalize.ChunkSize)
		assert.Equal(t, 100, cfg.Normalize.ChunkOverlap)
		assert.Equal(t, "", cfg.Store.Path)
		assert.Equal(t, "qwen2.5:3b", cfg.AI.Model)
		assert.Equal(t, 5, cfg.QA.TopK)
		assert.Equal(t, 6000, cfg.QA.MaxContextChars)
		assert.Equal(t, 0.75, cfg.QA.Temperature)
		assert.Equal(t, 1000, cfg.QA.MaxTokens)
		assert.Equal(t, 60*time.Second, cfg.QA.Timeout)
		assert.Equal(t, 1, cfg.Ingestion.MessageConcurrency)
		assert.Equal(t, time.Duration(0), cfg.Ingestion.Timeout)
	}
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
server:
  listen: ":8080"
  reset_on_ingest: true
mail:
  provider: imap
imap:
  host: imap.example.com
  username: alice
staging:
  extensions: [".pdf", ".txt"]
qa:
  top_k: 8
  timeout: 15s
ingestion:
  message_concurrency: 4
  timeout: 2m
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Listen)
	assert.True(t, cfg.Server.ResetOnIngest)
	assert.Equal(t, ProviderIMAP, cfg.Mail.Provider)
	assert.Equal(t, "imap.example.com", cfg.IMAP.Host)
	assert.Equal(t, "alice", cfg.IMAP.Username)
	assert.Equal(t, 993, cfg.IMAP.Port)
	assert.Equal(t, []string{".pdf", ".txt"}, cfg.Staging.Extensions)
	assert.Equal(t, 8, cfg.QA.TopK)
	assert.Equal(t, 15*time.Second, cfg.QA.Timeout)
	assert.Equal(t, 4, cfg.Ingestion.MessageConcurrency)
	assert.Equal(t, 2*time.Minute, cfg.Ingestion.Timeout)
	assert.Equal(t, 0.75, cfg.QA.Temperature)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "ai:\n  model: from-file\n")
	t.Setenv("MAILQA_AI_MODEL", "from-env")
	t.Setenv("MAILQA_QA_TOP_K", "3")
	t.Setenv("MAILQA_GMAIL_TOKEN_STORE", "keyring")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.AI.Model)
	assert.Equal(t, 3, cfg.QA.TopK)
	assert.Equal(t, TokenStoreKeyring, cfg.Gmail.TokenStore)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "server: [unclosed\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "unknown provider", content: "mail:\n  provider: pop3\n"},
		{name: "unknown token store", content: "gmail:\n  token_store: vault\n"},
		{name: "overlap too large", content: "normalize:\n  chunk_size: 100\n  chunk_overlap: 100\n"},
		{name: "zero top k", content: "qa:\n  top_k: 0\n"},
		{name: "zero qa timeout", content: "qa:\n  timeout: 0s\n"},
		{name: "empty staging dir", content: "staging:\n  dir: \"\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestDefaultPath(t *testing.T) {
	assert.Equal(t, "config.yaml", filepath.Base(DefaultPath()))
}
