package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. MAILQA_AI_MODEL.
const EnvPrefix = "MAILQA"

// Mail providers.
const (
	ProviderGmail = "gmail"
	ProviderIMAP  = "imap"
)

// Token stores for Gmail OAuth tokens.
const (
	TokenStoreFile    = "file"
	TokenStoreKeyring = "keyring"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid configuration")

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Listen        string `mapstructure:"listen" yaml:"listen"`
	ResetOnIngest bool   `mapstructure:"reset_on_ingest" yaml:"reset_on_ingest"`
}

// MailConfig selects the mail provider.
type MailConfig struct {
	Provider string `mapstructure:"provider" yaml:"provider"`

	// PoolSize is the number of concurrent attachment fetches. Zero picks
	// a size from the CPU count.
	PoolSize int `mapstructure:"pool_size" yaml:"pool_size"`
}

// GmailConfig holds Gmail OAuth settings.
type GmailConfig struct {
	CredentialsFile string `mapstructure:"credentials_file" yaml:"credentials_file"`
	TokenStore      string `mapstructure:"token_store" yaml:"token_store"`
	TokenFile       string `mapstructure:"token_file" yaml:"token_file"`
	KeyringDir      string `mapstructure:"keyring_dir" yaml:"keyring_dir"`
}

// IMAPConfig holds IMAP connection settings.
type IMAPConfig struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`
	TLS      bool   `mapstructure:"tls" yaml:"tls"`
	Mailbox  string `mapstructure:"mailbox" yaml:"mailbox"`
}

// StagingConfig holds attachment staging settings.
type StagingConfig struct {
	Dir        string   `mapstructure:"dir" yaml:"dir"`
	Extensions []string `mapstructure:"extensions" yaml:"extensions"`
}

// NormalizeConfig holds passage splitting settings, in runes.
type NormalizeConfig struct {
	ChunkSize    int `mapstructure:"chunk_size" yaml:"chunk_size"`
	ChunkOverlap int `mapstructure:"chunk_overlap" yaml:"chunk_overlap"`
}

// StoreConfig holds document store settings. An empty Path keeps the
// store in memory.
type StoreConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// AIConfig holds generative endpoint settings.
type AIConfig struct {
	Host   string `mapstructure:"host" yaml:"host"`
	Model  string `mapstructure:"model" yaml:"model"`
	APIKey string `mapstructure:"api_key" yaml:"api_key"`
}

// QAConfig holds question answering settings.
type QAConfig struct {
	TopK            int           `mapstructure:"top_k" yaml:"top_k"`
	MaxContextChars int           `mapstructure:"max_context_chars" yaml:"max_context_chars"`
	Temperature     float64       `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens       int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	Timeout         time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// IngestionConfig holds ingestion run settings.
type IngestionConfig struct {
	MessageConcurrency int           `mapstructure:"message_concurrency" yaml:"message_concurrency"`
	Timeout            time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Mail      MailConfig      `mapstructure:"mail" yaml:"mail"`
	Gmail     GmailConfig     `mapstructure:"gmail" yaml:"gmail"`
	IMAP      IMAPConfig      `mapstructure:"imap" yaml:"imap"`
	Staging   StagingConfig   `mapstructure:"staging" yaml:"staging"`
	Normalize NormalizeConfig `mapstructure:"normalize" yaml:"normalize"`
	Store     StoreConfig     `mapstructure:"store" yaml:"store"`
	AI        AIConfig        `mapstructure:"ai" yaml:"ai"`
	QA        QAConfig        `mapstructure:"qa" yaml:"qa"`
	Ingestion IngestionConfig `mapstructure:"ingestion" yaml:"ingestion"`
}

// DefaultPath returns ~/.config/mailqa/config.yaml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "mailqa", "config.yaml")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.listen", "127.0.0.1:5000")
	v.SetDefault("server.reset_on_ingest", false)

	v.SetDefault("mail.provider", ProviderGmail)
	v.SetDefault("mail.pool_size", 0)

	v.SetDefault("gmail.credentials_file", "credentials.json")
	v.SetDefault("gmail.token_store", TokenStoreFile)
	v.SetDefault("gmail.token_file", "token.json")
	v.SetDefault("gmail.keyring_dir", "")

	v.SetDefault("imap.host", "")
	v.SetDefault("imap.port", 993)
	v.SetDefault("imap.username", "")
	v.SetDefault("imap.password", "")
	v.SetDefault("imap.tls", true)
	v.SetDefault("imap.mailbox", "INBOX")

	v.SetDefault("staging.dir", "files-attachments")
	v.SetDefault("staging.extensions", []string{".pdf", ".docx", ".doc"})

	v.SetDefault("normalize.chunk_size", 1000)
	v.SetDefault("normalize.chunk_overlap", 100)

	v.SetDefault("store.path", "")

	v.SetDefault("ai.host", "http://localhost:11434/v1")
	v.SetDefault("ai.model", "qwen2.5:3b")
	v.SetDefault("ai.api_key", "")

	v.SetDefault("qa.top_k", 5)
	v.SetDefault("qa.max_context_chars", 6000)
	v.SetDefault("qa.temperature", 0.75)
	v.SetDefault("qa.max_tokens", 1000)
	v.SetDefault("qa.timeout", 60*time.Second)

	v.SetDefault("ingestion.message_concurrency", 1)
	v.SetDefault("ingestion.timeout", 0)
}

// Load reads configuration from the YAML file at path, then applies
// MAILQA_* environment overrides. A missing file, or an empty path, yields
// the defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			var pathErr *os.PathError
			if !errors.As(err, &notFound) && !errors.As(err, &pathErr) {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks enumerated settings and numeric ranges.
func (c *Config) Validate() error {
	switch c.Mail.Provider {
	case ProviderGmail, ProviderIMAP:
	default:
		return fmt.Errorf("%w: mail.provider must be %q or %q, got %q", ErrInvalidConfig, ProviderGmail, ProviderIMAP, c.Mail.Provider)
	}
	switch c.Gmail.TokenStore {
	case TokenStoreFile, TokenStoreKeyring:
	default:
		return fmt.Errorf("%w: gmail.token_store must be %q or %q, got %q", ErrInvalidConfig, TokenStoreFile, TokenStoreKeyring, c.Gmail.TokenStore)
	}
	if c.Normalize.ChunkSize < 1 || c.Normalize.ChunkOverlap < 0 || c.Normalize.ChunkOverlap >= c.Normalize.ChunkSize {
		return fmt.Errorf("%w: normalize.chunk_overlap must be smaller than normalize.chunk_size", ErrInvalidConfig)
	}
	if c.QA.TopK < 1 {
		return fmt.Errorf("%w: qa.top_k must be at least 1", ErrInvalidConfig)
	}
	if c.QA.Timeout <= 0 {
		return fmt.Errorf("%w: qa.timeout must be positive", ErrInvalidConfig)
	}
	if c.Staging.Dir == "" {
		return fmt.Errorf("%w: staging.dir is required", ErrInvalidConfig)
	}
	return nil
}
