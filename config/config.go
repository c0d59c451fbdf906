package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/jaywantadh/gridstore/internal/chunksize"
)

// EnvPrefix is prepended to every key when it is read from the
// environment, e.g. GRIDSTORE_STORAGE_PATH.
const EnvPrefix = "GRIDSTORE"

// AppConfig holds the application-level configuration
type AppConfig struct {
	StoragePath            string   `mapstructure:"storage_path"`
	ChunkSize              string   `mapstructure:"chunk_size"`
	CompressionEnabled     bool     `mapstructure:"compression_enabled"`
	CompressibleMediaTypes []string `mapstructure:"compressible_media_types"`
	Password               string   `mapstructure:"password"`
	ListenAddr             string   `mapstructure:"listen_addr"`
	Debug                  bool     `mapstructure:"debug"`
}

var Config *AppConfig

// LoadConfig reads config.yaml from path, overlays GRIDSTORE_* environment
// variables and stores the result in Config. A missing file is not an
// error; the defaults are used.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(path)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("storage_path", "./data")
	v.SetDefault("chunk_size", chunksize.Default.String())
	v.SetDefault("compression_enabled", true)
	v.SetDefault("compressible_media_types", []string{})
	v.SetDefault("password", "")
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("debug", false)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		logrus.WithField("path", path).Debug("no config file found, using defaults")
	}

	var appConfig AppConfig
	if err := v.Unmarshal(&appConfig); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	if _, err := appConfig.ChunkPreset(); err != nil {
		return nil, err
	}

	Config = &appConfig
	return Config, nil
}

// ChunkPreset resolves the configured chunk size name.
func (c *AppConfig) ChunkPreset() (chunksize.Preset, error) {
	return chunksize.Parse(c.ChunkSize)
}
