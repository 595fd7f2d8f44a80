package main

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type config struct {
	Log       logConfig
	API       apiConfig
	Database  databaseConfig
	Directory directoryConfig
	Wallet    walletConfig
	Transfer  transferConfig
	Retrieval retrievalConfig
	Proxy     proxyConfig
}

type logConfig struct {
	Pretty bool   `mapstructure:"pretty"`
	Level  string `mapstructure:"level"`
}

type apiConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
}

type databaseConfig struct {
	Path string `mapstructure:"path"`
}

type directoryConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type walletConfig struct {
	URL      string        `mapstructure:"url"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
}

type transferConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type retrievalConfig struct {
	MaxJobs     int64         `mapstructure:"max_jobs"`
	WarmTimeout time.Duration `mapstructure:"warm_timeout"`
}

type proxyConfig struct {
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`
	FlushInterval    time.Duration `mapstructure:"flush_interval"`
}

func loadConfig(configPath string) (*config, error) {
	log.Debug().Msg("setting up config default values")
	viper.SetDefault("log.pretty", true)
	viper.SetDefault("log.level", "info")

	viper.SetDefault("api.listen_addr", ":9378")
	viper.SetDefault("database.path", "./otternet.db")

	viper.SetDefault("directory.url", "http://localhost:9380")
	viper.SetDefault("directory.timeout", 5*time.Second)

	viper.SetDefault("wallet.url", "http://localhost:9381")
	viper.SetDefault("wallet.timeout", time.Minute)

	viper.SetDefault("transfer.url", "http://localhost:9382")
	viper.SetDefault("transfer.timeout", 10*time.Minute)

	viper.SetDefault("retrieval.max_jobs", 4)
	viper.SetDefault("retrieval.warm_timeout", 5*time.Second)

	viper.SetDefault("proxy.handshake_timeout", 30*time.Second)
	viper.SetDefault("proxy.flush_interval", 15*time.Second)

	viper.SetConfigFile(configPath)

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Warn().Str("config_path", configPath).Msg("config file does not exist, using defaults")
	} else {
		log.Debug().Str("config_path", configPath).Msg("reading config file")

		err := viper.ReadInConfig()
		if err != nil {
			return nil, errors.Wrap(err, "cannot read config file")
		}
	}

	envBindingMap := map[string]string{
		"wallet.username": "WALLET_RPC_USER",
		"wallet.password": "WALLET_RPC_PASSWORD",
	}

	for key, env := range envBindingMap {
		log.Debug().Str("key", key).Str("env", env).Msg("binding environment variables to config")

		err := viper.BindEnv(key, env)
		if err != nil {
			return nil, errors.Wrap(err, "cannot bind env variable")
		}
	}

	var cfg config

	err := viper.Unmarshal(&cfg)
	if err != nil {
		return nil, errors.Wrap(err, "cannot unmarshal config")
	}

	return &cfg, nil
}
