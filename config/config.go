package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Socket   SocketConfig   `mapstructure:"socket"`
	Database DatabaseConfig `mapstructure:"database"`
}

type ServerConfig struct {
	HTTPAddress    string `mapstructure:"http_address"`
	StaticAddress  string `mapstructure:"static_address"`
	StaticDir      string `mapstructure:"static_dir"`
	MetricsAddress string `mapstructure:"metrics_address"`
	RPCAddress     string `mapstructure:"rpc_address"`
}

type SocketConfig struct {
	// Path 是 websocket 升级端点，例如 /onoro
	Path            string  `mapstructure:"path"`
	CallTimeoutMS   int     `mapstructure:"call_timeout_ms"`
	Verbose         bool    `mapstructure:"verbose"`
	FrameLimit      float64 `mapstructure:"frame_limit"`
	FrameBurst      int     `mapstructure:"frame_burst"`
	StatsIntervalMS int     `mapstructure:"stats_interval_ms"`
}

// CallTimeout 返回配置的调用超时，0 表示使用默认值
func (c SocketConfig) CallTimeout() time.Duration {
	return time.Duration(c.CallTimeoutMS) * time.Millisecond
}

func (c SocketConfig) StatsInterval() time.Duration {
	return time.Duration(c.StatsIntervalMS) * time.Millisecond
}

type DatabaseConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Driver   string         `mapstructure:"driver"` // postgres | gorm
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

func LoadConfig(path string) (config *Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetDefault("server.http_address", ":2345")
	viper.SetDefault("server.static_address", ":2001")
	viper.SetDefault("server.static_dir", "web/dist/dev/static")
	viper.SetDefault("server.metrics_address", ":9100")
	viper.SetDefault("server.rpc_address", ":2346")
	viper.SetDefault("socket.path", "/onoro")
	viper.SetDefault("socket.call_timeout_ms", 1000)
	viper.SetDefault("socket.stats_interval_ms", 10000)
	viper.SetDefault("database.driver", "gorm")

	viper.AutomaticEnv()

	err = viper.ReadInConfig()
	if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	return
}
