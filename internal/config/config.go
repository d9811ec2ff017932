package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode       string `mapstructure:"mode"`
	Port       int    `mapstructure:"port"`
	StaticPath string `mapstructure:"static_path"`
	Secret     string `mapstructure:"secret"`
	LogLevel   string `mapstructure:"log_level"`
	LogFormat  string `mapstructure:"log_format"`

	WS        WSConfig        `mapstructure:"ws"`
	Session   SessionConfig   `mapstructure:"session"`
	Directory DirectoryConfig `mapstructure:"directory"`
	Bridge    BridgeConfig    `mapstructure:"bridge"`
}

type WSConfig struct {
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	PongWait   time.Duration `mapstructure:"pong_wait"`
	WriteWait  time.Duration `mapstructure:"write_wait"`
	SendBuffer int           `mapstructure:"send_buffer"`
}

type SessionConfig struct {
	CallTimeout time.Duration `mapstructure:"call_timeout"`
	MailboxSize int           `mapstructure:"mailbox_size"`
	MaxDeferred int           `mapstructure:"max_deferred"`
	BindFailure string        `mapstructure:"bind_failure"`
	DebugAck    bool          `mapstructure:"debug_ack"`
}

type DirectoryConfig struct {
	CreateRoomLimit    int           `mapstructure:"create_room_limit"`
	CreateRoomInterval time.Duration `mapstructure:"create_room_interval"`
	MaxRoomName        int           `mapstructure:"max_room_name"`
	MaxConnsPerUser    int           `mapstructure:"max_connections_per_user"`
}

type BridgeConfig struct {
	PoolSize int `mapstructure:"pool_size"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("secret", "change-me")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")

	v.SetDefault("ws.read_limit", 32768)
	v.SetDefault("ws.ping_period", "54s")
	v.SetDefault("ws.pong_wait", "60s")
	v.SetDefault("ws.write_wait", "5s")
	v.SetDefault("ws.send_buffer", 32)

	v.SetDefault("session.call_timeout", "5s")
	v.SetDefault("session.mailbox_size", 64)
	v.SetDefault("session.max_deferred", 16)
	v.SetDefault("session.bind_failure", "report")
	v.SetDefault("session.debug_ack", false)

	v.SetDefault("directory.create_room_limit", 5)
	v.SetDefault("directory.create_room_interval", "1m")
	v.SetDefault("directory.max_room_name", 36)
	v.SetDefault("directory.max_connections_per_user", 8)

	v.SetDefault("bridge.pool_size", 1024)
}

// Load reads config/config.<CONFIG_ENV>.yaml over the defaults. Any key can
// be overridden from the environment as SCRUM_<KEY>, with dots as underscores.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("SCRUM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).Str("static", cfg.StaticPath).Msg("config ready")
	return &cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var problems []string
	check := func(ok bool, format string, args ...any) {
		if !ok {
			problems = append(problems, fmt.Sprintf(format, args...))
		}
	}

	check(c.Mode == "release" || c.Mode == "debug" || c.Mode == "test", "mode %q is not release, debug or test", c.Mode)
	check(c.Port > 0 && c.Port < 65536, "port %d out of range", c.Port)
	check(c.LogFormat == "console" || c.LogFormat == "json", "log_format %q is not console or json", c.LogFormat)
	check(c.WS.ReadLimit > 0, "ws.read_limit must be positive")
	check(c.WS.PingPeriod >= 0, "ws.ping_period must not be negative")
	check(c.WS.PingPeriod == 0 || c.WS.PongWait > c.WS.PingPeriod, "ws.pong_wait must exceed ws.ping_period")
	check(c.WS.SendBuffer > 0, "ws.send_buffer must be positive")
	check(c.Session.CallTimeout >= 0, "session.call_timeout must not be negative")
	check(c.Session.MailboxSize > 0, "session.mailbox_size must be positive")
	check(c.Session.MaxDeferred >= 0, "session.max_deferred must not be negative")
	check(c.Session.BindFailure == "report" || c.Session.BindFailure == "close", "session.bind_failure %q is not report or close", c.Session.BindFailure)
	check(c.Directory.MaxRoomName > 0, "directory.max_room_name must be positive")
	check(c.Directory.MaxConnsPerUser >= 0, "directory.max_connections_per_user must not be negative")
	check(c.Bridge.PoolSize > 0, "bridge.pool_size must be positive")

	if len(problems) > 0 {
		return errors.Newf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}
