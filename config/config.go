package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config carries every option the service recognizes. Values come from
// defaults, the optional YAML file and IM_RPC_* environment variables, in
// ascending precedence.
type Config struct {
	HTTP    HTTP    `mapstructure:"http"`
	DB      DB      `mapstructure:"db"`
	AMQP    AMQP    `mapstructure:"amqp"`
	Blob    Blob    `mapstructure:"blob"`
	Otel    Otel    `mapstructure:"otel"`
	Log     Log     `mapstructure:"log"`
	Hub     Hub     `mapstructure:"hub"`
	Invoke  Invoke  `mapstructure:"invoke"`
}

type HTTP struct {
	Addr string `mapstructure:"addr"`
}

type DB struct {
	Path string `mapstructure:"path"`
}

type AMQP struct {
	// URL of the broker. Empty disables the connection-event publisher.
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
}

type Blob struct {
	// BaseURL of a remote blob service. Empty selects the local folder store.
	BaseURL string `mapstructure:"base_url"`
	// Root folder of the local store.
	Root string `mapstructure:"root"`
}

type Otel struct {
	// Endpoint of the OTLP log collector. Empty keeps plain text logging.
	Endpoint string `mapstructure:"endpoint"`
}

type Log struct {
	Level string `mapstructure:"level"`
}

// Hub holds the connection registry knobs.
type Hub struct {
	BroadcastConnectionEvents bool          `mapstructure:"broadcast_connection_events"`
	ConnectionEventMethod     string        `mapstructure:"connection_event_method"`
	AutoPurgeOffline          bool          `mapstructure:"auto_purge_offline"`
	StaleAge                  time.Duration `mapstructure:"stale_age"`
	TrackUserAgent            bool          `mapstructure:"track_user_agent"`
}

// Invoke holds the request correlator knobs.
type Invoke struct {
	MaxConcurrentRequests int           `mapstructure:"max_concurrent_requests"`
	RequestTimeout        time.Duration `mapstructure:"request_timeout"`
	SemaphoreTimeout      time.Duration `mapstructure:"semaphore_timeout"`
	MaxDirectDataSize     int           `mapstructure:"max_direct_data_size"`
	TempFolder            string        `mapstructure:"temp_folder"`
	AutoDeleteTempFiles   bool          `mapstructure:"auto_delete_temp_files"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("db.path", "im-rpc.db")
	v.SetDefault("amqp.url", "")
	v.SetDefault("amqp.exchange", "im_rpc.events")
	v.SetDefault("blob.base_url", "")
	v.SetDefault("blob.root", "blob-data")
	v.SetDefault("otel.endpoint", "")
	v.SetDefault("log.level", "info")

	v.SetDefault("hub.broadcast_connection_events", true)
	v.SetDefault("hub.connection_event_method", "ConnectionEvent")
	v.SetDefault("hub.auto_purge_offline", true)
	v.SetDefault("hub.stale_age", 5*time.Minute)
	v.SetDefault("hub.track_user_agent", true)

	v.SetDefault("invoke.max_concurrent_requests", 10)
	v.SetDefault("invoke.request_timeout", 300*time.Second)
	v.SetDefault("invoke.semaphore_timeout", 5*time.Second)
	v.SetDefault("invoke.max_direct_data_size", 10*1024)
	v.SetDefault("invoke.temp_folder", "signalr-temp")
	v.SetDefault("invoke.auto_delete_temp_files", true)
}

// LoadConfig reads the configuration. path may be empty, in which case only
// defaults and environment variables apply.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("IM_RPC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		v.WatchConfig()
	}

	cfg := new(Config)
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return cfg, nil
}
