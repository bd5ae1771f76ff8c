package ratectl

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is read from <home>/config.yaml and RATECTL_* environment
// variables, environment winning.
type Config struct {
	APIURL       string        `mapstructure:"api_url"`
	APIToken     string        `mapstructure:"api_token"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	HTTPTimeout  time.Duration `mapstructure:"http_timeout"`
}

func defaultConfig() Config {
	return Config{
		APIURL:       "http://localhost:8080/api",
		WriteTimeout: 10 * time.Second,
		HTTPTimeout:  15 * time.Second,
	}
}

// DefaultHome returns ~/.ratectl, or ./.ratectl without a home directory.
func DefaultHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".ratectl"
	}
	return filepath.Join(home, ".ratectl")
}

// LoadConfig merges defaults, the config file under home and the
// environment. A missing config file is not an error.
func LoadConfig(home string) (Config, error) {
	def := defaultConfig()

	v := viper.New()
	v.SetConfigFile(filepath.Join(home, "config.yaml"))
	v.SetConfigType("yaml")
	v.SetEnvPrefix("RATECTL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetDefault("api_url", def.APIURL)
	v.SetDefault("api_token", "")
	v.SetDefault("write_timeout", def.WriteTimeout)
	v.SetDefault("http_timeout", def.HTTPTimeout)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	return cfg, nil
}
