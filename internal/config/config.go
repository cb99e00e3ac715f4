// Package config loads the checker's run-time settings — the default
// logical block size, the container superblock address, and a default
// container path — the way the teacher project's DMG device loads
// its own settings: Viper, with built-in defaults, an optional config
// file, and environment variable overrides.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config holds the settings apfsck consults before it knows enough
// about a container to trust its own superblock: the block size to
// assume until the superblock names its own, and a default container
// path. The check command does not read DefaultPath: it always takes
// the container path as its one required argument.
type Config struct {
	BlockSize      uint32 `mapstructure:"block_size"`
	DefaultPath    string `mapstructure:"default_path"`
	FailFast       bool   `mapstructure:"fail_fast"`
	SuperblockAddr int64  `mapstructure:"superblock_addr"`
}

// Load reads apfsck's configuration using Viper: built-in defaults,
// overridden by an apfsck-config.yaml found in the current directory,
// a ./config subdirectory, or $HOME/.apfsck, and finally by any
// APFSCK_-prefixed environment variable.
func Load() (*Config, error) {
	viper.SetConfigName("apfsck-config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("$HOME/.apfsck")

	viper.SetDefault("block_size", 4096)
	viper.SetDefault("default_path", "")
	viper.SetDefault("fail_fast", true)
	viper.SetDefault("superblock_addr", 0)

	viper.SetEnvPrefix("APFSCK")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading apfsck config: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling apfsck config: %w", err)
	}
	return &cfg, nil
}
