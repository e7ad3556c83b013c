package conf

import (
	"os"
	"path/filepath"
	"strings"
)

// Config represents application configuration
type Config struct {
	// Feishu configuration
	Feishu FeishuConfig

	// Owner identity configuration
	Owner OwnerConfig

	// LLM configuration (optional)
	LLM LLMConfig

	// Moderation configuration
	Moderation ModerationConfig

	// Data directory for persisted state
	DataDir string

	// Command prefix character set
	CommandPrefixes string

	// Debug mode
	Debug bool
}

// FeishuConfig contains Feishu credentials
type FeishuConfig struct {
	AppID     string
	AppSecret string
	// BotOpenID is this app's own open_id, used to recognise messages the
	// bot sent itself. When empty, sender type is used as a fallback.
	BotOpenID string
}

// OwnerConfig contains the identities granted the owner role
type OwnerConfig struct {
	// SuperOwner is a phone-style identity matched exactly or via the
	// trunk-prefix equivalence rule.
	SuperOwner string
	// OwnerIDs is the additional owner allow-list.
	OwnerIDs []string
}

// LLMConfig contains the chat-completion API configuration
type LLMConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// ModerationConfig contains abuse-pipeline tunables
type ModerationConfig struct {
	// InviteDomain is the platform's group-invite host the antilink
	// filter always blocks.
	InviteDomain string
	// WordsPath points at the profanity word-list YAML.
	WordsPath string
	// BypassPhrase lifts an active mute when sent verbatim.
	BypassPhrase string
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() *Config {
	dataDir := os.Getenv("DATA_DIR")
	if dataDir == "" {
		dataDir = "data"
	}

	prefixes := os.Getenv("COMMAND_PREFIXES")
	if prefixes == "" {
		prefixes = ".!/#"
	}

	inviteDomain := os.Getenv("INVITE_DOMAIN")
	if inviteDomain == "" {
		inviteDomain = "applink.feishu.cn"
	}

	wordsPath := os.Getenv("WORDS_CONFIG_PATH")
	if wordsPath == "" {
		wordsPath = filepath.Join("configs", "words.yaml")
	}

	var ownerIDs []string
	for _, id := range strings.Split(os.Getenv("OWNER_LIST"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			ownerIDs = append(ownerIDs, id)
		}
	}

	return &Config{
		Feishu: FeishuConfig{
			AppID:     os.Getenv("FEISHU_APP_ID"),
			AppSecret: os.Getenv("FEISHU_APP_SECRET"),
			BotOpenID: os.Getenv("FEISHU_BOT_OPEN_ID"),
		},
		Owner: OwnerConfig{
			SuperOwner: os.Getenv("OWNER_NUMBER"),
			OwnerIDs:   ownerIDs,
		},
		LLM: LLMConfig{
			APIKey:  os.Getenv("LLM_API_KEY"),
			Model:   os.Getenv("LLM_MODEL"),
			BaseURL: os.Getenv("LLM_BASE_URL"),
		},
		Moderation: ModerationConfig{
			InviteDomain: inviteDomain,
			WordsPath:    wordsPath,
			BypassPhrase: os.Getenv("MUTE_BYPASS_PHRASE"),
		},
		DataDir:         dataDir,
		CommandPrefixes: prefixes,
		Debug:           os.Getenv("DEBUG") == "true",
	}
}

// UsersPath returns the user directory file path.
func (c *Config) UsersPath() string { return filepath.Join(c.DataDir, "users.json") }

// SettingsPath returns the settings file path.
func (c *Config) SettingsPath() string { return filepath.Join(c.DataDir, "settings.json") }

// MutesPath returns the mute table file path.
func (c *Config) MutesPath() string { return filepath.Join(c.DataDir, "muted.json") }

// ModLogPath returns the moderation log database path.
func (c *Config) ModLogPath() string { return filepath.Join(c.DataDir, "modlog.db") }

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Feishu.AppID == "" || c.Feishu.AppSecret == "" {
		return &ConfigError{Field: "FEISHU_APP_ID/FEISHU_APP_SECRET", Message: "required"}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}
