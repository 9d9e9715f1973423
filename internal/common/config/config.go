// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Database DatabaseConfig `mapstructure:"database"`
	Search   SearchConfig   `mapstructure:"search"`
	AWS      AWSConfig      `mapstructure:"aws"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
}

type TracingConfig struct {
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type HTTPConfig struct {
	Port           int  `mapstructure:"port"`
	ReadTimeout    int  `mapstructure:"read_timeout"`    // seconds
	WriteTimeout   int  `mapstructure:"write_timeout"`   // seconds
	RequestTimeout int  `mapstructure:"request_timeout"` // seconds
	RequireAPIKey  bool `mapstructure:"require_api_key"`
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	Index     string   `mapstructure:"index"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// SearchConfig bounds the public search surface. The page-size and
// identifier-count caps are deployment knobs, not code constants.
type SearchConfig struct {
	MaxPageSize     int `mapstructure:"max_page_size"`
	DefaultPageSize int `mapstructure:"default_page_size"`
	MaxIDs          int `mapstructure:"max_ids"`
	MaxPage         int `mapstructure:"max_page"`
	MaxFacetSize    int `mapstructure:"max_facet_size"`
	DefaultFacets   int `mapstructure:"default_facet_size"`
}

type AWSConfig struct {
	Region       string `mapstructure:"region"`
	EmailFrom    string `mapstructure:"email_from"`
	SNSTopicARN  string `mapstructure:"sns_topic_arn"`
	EmailEnabled bool   `mapstructure:"email_enabled"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}
