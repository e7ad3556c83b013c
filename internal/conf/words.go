package conf

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// WordsConfig is the profanity filter configuration loaded from YAML.
type WordsConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Words    []string `yaml:"words"`
	Warnings []string `yaml:"warnings"`
}

// DefaultWordsConfig is used when no word-list file is present. The word
// list itself ships in the config file; the compiled-in default keeps the
// pipeline alive with warnings only.
var DefaultWordsConfig = WordsConfig{
	Enabled: true,
	Warnings: []string{
		"Watch your language.",
		"Profanity detected.",
	},
}

// LoadWordsConfig loads the word-list configuration from path, falling back
// to the defaults when the file is missing. A malformed file is an error so
// a typo can't silently disable the filter.
func LoadWordsConfig(path string) (WordsConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultWordsConfig, nil
		}
		return DefaultWordsConfig, fmt.Errorf("read words config: %w", err)
	}

	cfg := DefaultWordsConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return DefaultWordsConfig, fmt.Errorf("parse words config: %w", err)
	}
	if len(cfg.Warnings) == 0 {
		cfg.Warnings = DefaultWordsConfig.Warnings
	}
	return cfg, nil
}
