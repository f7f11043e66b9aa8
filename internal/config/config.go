package config

import (
	"flag"
	"fmt"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
	"io/ioutil"
	"os"
	"time"
)

// DBCredential struct
type DBCredential struct {
	Address  string `yaml:"address"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Port     string `yaml:"port"`
	Database string `yaml:"database"`
}

// GetRedisAddress prints redis credential info.
func (c *DBCredential) GetRedisAddress() string {
	return fmt.Sprintf("%v:%v", c.Address, c.Port)
}

// Configuration struct
type Configuration struct {
	LogLevel         string       `yaml:"log_level"`
	HTTP             HTTP         `yaml:"http"`
	Injected         Injected     `yaml:"injected"`
	Bridge           Bridge       `yaml:"bridge"`
	RedisCredential  DBCredential `yaml:"redis"`
	Kafka            Kafka        `yaml:"kafka"`
	SentryDSN        string       `yaml:"sentry_dsn"`
	LarkAlarmWebhook string       `yaml:"lark_alarm_webhook"`
}

type HTTP struct {
	Listen         string        `yaml:"listen"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	// ConnectTimeout bounds a background bridge pairing.
	ConnectTimeout     time.Duration `yaml:"connect_timeout"`
	RateLimitPerMinute int           `yaml:"rate_limit_per_minute"`
}

// Injected configures the JSON-RPC endpoint standing in for the injected
// provider. An empty endpoint means no injected wallet.
type Injected struct {
	Endpoint     string        `yaml:"endpoint"`
	InstallURL   string        `yaml:"install_url"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

type Bridge struct {
	URL         string        `yaml:"url"`
	ChainID     int           `yaml:"chain_id"`
	Meta        ClientMeta    `yaml:"meta"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
	QRSize      int           `yaml:"qr_size"`
	StorageKey  string        `yaml:"storage_key"`
	SessionTTL  time.Duration `yaml:"session_ttl"`
}

type ClientMeta struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	URL         string   `yaml:"url"`
	Icons       []string `yaml:"icons"`
}

type Kafka struct {
	Servers    string `yaml:"servers"`
	StateTopic string `yaml:"state_topic"`
}

func defaults() Configuration {
	return Configuration{
		LogLevel: "info",
		HTTP: HTTP{
			Listen:             ":8080",
			RequestTimeout:     60 * time.Second,
			ConnectTimeout:     2 * time.Minute,
			RateLimitPerMinute: 30,
		},
		Injected: Injected{
			InstallURL:   "https://metamask.io/download.html",
			PollInterval: 2 * time.Second,
		},
		Bridge: Bridge{
			Meta: ClientMeta{
				Name:        "Fungily",
				Description: "Fungily wallet connection",
			},
			DialTimeout: 10 * time.Second,
			QRSize:      256,
			StorageKey:  "walletconnect",
		},
		Kafka: Kafka{StateTopic: "wallet_session"},
	}
}

// Load reads the YAML file at path over the defaults.
func Load(path string) (*Configuration, error) {
	dat, err := ioutil.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file %s does not exist", path)
		}
		return nil, err
	}
	t := defaults()
	if err := yaml.Unmarshal(dat, &t); err != nil {
		return nil, fmt.Errorf("fail to decode config error: %v", err)
	}
	return &t, nil
}

var Global *Configuration

// Read reads configuration information from yml.
func Read() {
	configFilePath := flag.String("config-path", "internal/config/config.yml", "The path to the configuration file")
	flag.Parse()
	logrus.Infof("Loading configuration file from %s", *configFilePath)
	globalConfig, err := Load(*configFilePath)
	if err != nil {
		logrus.Fatal(err)
	}
	Global = globalConfig
}
