// Package config defines the environment configuration surface. Every
// tunable is a viper key overridable by a MEDIABOT_* environment variable
// without code change.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the environment variable prefix.
const EnvPrefix = "MEDIABOT"

// StageConfig sizes one pipeline stage.
type StageConfig struct {
	Slots int
	Pace  time.Duration
}

// Config is the full runtime configuration.
type Config struct {
	Chat struct {
		GatewayURL string
		Token      string
	}
	Queue struct {
		PollInterval time.Duration
	}
	RateLimit struct {
		Window      time.Duration
		MaxRequests int
	}
	Cache struct {
		TTL           time.Duration
		MaxSize       int
		FlushInterval time.Duration
		SweepInterval time.Duration
	}
	Stages struct {
		Extract  StageConfig
		Download StageConfig
		Send     StageConfig
	}
	Download struct {
		MaxRetries     int
		MaxBytes       int64
		RequestTimeout time.Duration
	}
	Pipeline struct {
		MaxMediaItems int
	}
	Extract struct {
		Timeout time.Duration
	}
	Commands struct {
		Prefix string
	}
	Search struct {
		URL    string
		APIKey string
	}
	Speech struct {
		URL   string
		Voice string
	}
	Webhook struct {
		URL string
	}
	AI struct {
		APIKey         string
		BaseURL        string
		Model          string
		SystemPrompt   string
		RequestTimeout time.Duration
	}
	API struct {
		Addr string
	}
	Logging struct {
		Level     string
		Format    string
		AddSource bool
	}
}

// Init wires viper's environment binding. Call once before Load.
func Init(configFile string) error {
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return err
		}
	}
	return nil
}

func setDefaults() {
	viper.SetDefault("queue.poll_interval", 100*time.Millisecond)

	viper.SetDefault("ratelimit.window", 60*time.Second)
	viper.SetDefault("ratelimit.max_requests", 5)

	viper.SetDefault("cache.ttl", 30*time.Minute)
	viper.SetDefault("cache.max_size", 500)
	viper.SetDefault("cache.flush_interval", time.Hour)
	viper.SetDefault("cache.sweep_interval", 5*time.Minute)

	viper.SetDefault("stage.extract.slots", 3)
	viper.SetDefault("stage.extract.pace", 200*time.Millisecond)
	viper.SetDefault("stage.download.slots", 5)
	viper.SetDefault("stage.download.pace", 100*time.Millisecond)
	viper.SetDefault("stage.send.slots", 2)
	viper.SetDefault("stage.send.pace", 250*time.Millisecond)

	viper.SetDefault("download.max_retries", 3)
	viper.SetDefault("download.max_bytes", int64(25*1024*1024))
	viper.SetDefault("download.request_timeout", 30*time.Second)

	viper.SetDefault("pipeline.max_media_items", 10)
	viper.SetDefault("extract.timeout", 20*time.Second)

	viper.SetDefault("commands.prefix", "!")
	viper.SetDefault("webhook.url", "")

	viper.SetDefault("chat.gateway_url", "http://localhost:9090")
	viper.SetDefault("chat.token", "")

	viper.SetDefault("search.url", "")
	viper.SetDefault("search.api_key", "")
	viper.SetDefault("speech.url", "")
	viper.SetDefault("speech.voice", "")

	viper.SetDefault("ai.api_key", "")
	viper.SetDefault("ai.base_url", "")
	viper.SetDefault("ai.model", "")
	viper.SetDefault("ai.system_prompt", "")
	viper.SetDefault("ai.request_timeout", 60*time.Second)

	viper.SetDefault("api.addr", ":8080")

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")
	viper.SetDefault("logging.add_source", false)
}

// Load reads the resolved configuration.
func Load() *Config {
	cfg := &Config{}

	cfg.Chat.GatewayURL = viper.GetString("chat.gateway_url")
	cfg.Chat.Token = viper.GetString("chat.token")

	cfg.Queue.PollInterval = viper.GetDuration("queue.poll_interval")

	cfg.RateLimit.Window = viper.GetDuration("ratelimit.window")
	cfg.RateLimit.MaxRequests = viper.GetInt("ratelimit.max_requests")

	cfg.Cache.TTL = viper.GetDuration("cache.ttl")
	cfg.Cache.MaxSize = viper.GetInt("cache.max_size")
	cfg.Cache.FlushInterval = viper.GetDuration("cache.flush_interval")
	cfg.Cache.SweepInterval = viper.GetDuration("cache.sweep_interval")

	cfg.Stages.Extract = StageConfig{
		Slots: viper.GetInt("stage.extract.slots"),
		Pace:  viper.GetDuration("stage.extract.pace"),
	}
	cfg.Stages.Download = StageConfig{
		Slots: viper.GetInt("stage.download.slots"),
		Pace:  viper.GetDuration("stage.download.pace"),
	}
	cfg.Stages.Send = StageConfig{
		Slots: viper.GetInt("stage.send.slots"),
		Pace:  viper.GetDuration("stage.send.pace"),
	}

	cfg.Download.MaxRetries = viper.GetInt("download.max_retries")
	cfg.Download.MaxBytes = viper.GetInt64("download.max_bytes")
	cfg.Download.RequestTimeout = viper.GetDuration("download.request_timeout")

	cfg.Pipeline.MaxMediaItems = viper.GetInt("pipeline.max_media_items")
	cfg.Extract.Timeout = viper.GetDuration("extract.timeout")

	cfg.Commands.Prefix = viper.GetString("commands.prefix")
	cfg.Webhook.URL = viper.GetString("webhook.url")

	cfg.Search.URL = viper.GetString("search.url")
	cfg.Search.APIKey = viper.GetString("search.api_key")
	cfg.Speech.URL = viper.GetString("speech.url")
	cfg.Speech.Voice = viper.GetString("speech.voice")

	cfg.AI.APIKey = viper.GetString("ai.api_key")
	cfg.AI.BaseURL = viper.GetString("ai.base_url")
	cfg.AI.Model = viper.GetString("ai.model")
	cfg.AI.SystemPrompt = viper.GetString("ai.system_prompt")
	cfg.AI.RequestTimeout = viper.GetDuration("ai.request_timeout")

	cfg.API.Addr = viper.GetString("api.addr")

	cfg.Logging.Level = viper.GetString("logging.level")
	cfg.Logging.Format = viper.GetString("logging.format")
	cfg.Logging.AddSource = viper.GetBool("logging.add_source")

	return cfg
}
