package config

import (
	"fmt"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	LogLevel        string `yaml:"log-level" env:"LOG_LEVEL" env-default:"info"`
	HTTPPort        string `yaml:"http-port" env:"HTTP_PORT" env-default:"9090"`
	TCPPort         string `yaml:"tcp-port" env:"TCP_PORT" env-default:"9000"`
	SocketPort      string `yaml:"ws-port" env:"WS_PORT" env-default:"9001"`
	MaxFrameBytes   int    `yaml:"max-frame-bytes" env:"MAX_FRAME_BYTES" env-default:"65536"`
	StrictMoveError bool   `yaml:"strict-move-errors" env:"STRICT_MOVE_ERRORS" env-default:"false"`
	Redis           Redis  `yaml:"redis"`
}

type Redis struct {
	Host string `yaml:"host" env:"REDIS_HOST" env-default:""`
	Port string `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
}

// MustLoad - load all configurations in config.yml file.
func MustLoad(path string) *Config {
	config := &Config{}

	if err := cleanenv.ReadConfig(path, config); err != nil {
		panic(fmt.Errorf("unable to load config file: %w", err))
	}

	return config
}

// GetRedisAddr - returns the redis address, or an empty string when the
// match archive is disabled.
func (that *Redis) GetRedisAddr() string {
	if that.Host == "" {
		return ""
	}

	return fmt.Sprintf("%s:%s", that.Host, that.Port)
}
