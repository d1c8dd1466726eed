package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Etcd    EtcdConfig    `mapstructure:"etcd"`
	Redis   RedisConfig   `mapstructure:"redis"`
	MySQL   MySQLConfig   `mapstructure:"mysql"`
	MongoDB MongoDBConfig `mapstructure:"mongodb"`
	Wompi   WompiConfig   `mapstructure:"wompi"`
	Shop    ShopConfig    `mapstructure:"shop"`
	Log     LogConfig     `mapstructure:"log"`
}

type ServerConfig struct {
	Name string `mapstructure:"name"`
	Port int    `mapstructure:"port"`
	Host string `mapstructure:"host"`
}

type EtcdConfig struct {
	Endpoints   []string      `mapstructure:"endpoints"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	Prefix      string        `mapstructure:"prefix"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type MongoDBConfig struct {
	URI        string `mapstructure:"uri"`
	Database   string `mapstructure:"database"`
	Collection string `mapstructure:"collection"`
}

// WompiConfig holds the payment processor credentials and endpoints.
// ClientSecret doubles as the shared secret for webhook and redirect
// signature verification.
type WompiConfig struct {
	TokenURL     string        `mapstructure:"token_url"`
	APIBase      string        `mapstructure:"api_base"`
	ClientID     string        `mapstructure:"client_id"`
	ClientSecret string        `mapstructure:"client_secret"`
	Audience     string        `mapstructure:"audience"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

type ShopConfig struct {
	Country        string `mapstructure:"country"`
	OrderPrefix    string `mapstructure:"order_prefix"`
	ShippingFlat   string `mapstructure:"shipping_flat"`
	WhatsAppNumber string `mapstructure:"whatsapp_number"`
	FrontendDomain string `mapstructure:"frontend_domain"`
	BackendDomain  string `mapstructure:"backend_domain"`
}

type LogConfig struct {
	Level       string   `mapstructure:"level"`
	Encoding    string   `mapstructure:"encoding"`
	OutputPaths []string `mapstructure:"output_paths"`
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	// Secrets come from the environment in deployment
	// (BASALTO_WOMPI_CLIENT_SECRET and friends).
	v.SetEnvPrefix("basalto")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func (c *MySQLConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.Username, c.Password, c.Host, c.Port, c.Database)
}

// SuccessURL is the hosted-payment redirect target on the public storefront.
func (c *ShopConfig) SuccessURL() string {
	return strings.TrimRight(c.FrontendDomain, "/") + "/payment/success/"
}

// WebhookURL is where the payment processor posts confirmations; the backend
// domain can differ from the storefront domain in deployment.
func (c *ShopConfig) WebhookURL() string {
	domain := c.BackendDomain
	if domain == "" {
		domain = c.FrontendDomain
	}
	return strings.TrimRight(domain, "/") + "/wompi/callback/"
}
