package config

import (
	"log"
	"os"
	"time"

	"github.com/akoskissak/soa-team-5/pkg/utils"
	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env      string `yaml:"env" env:"ENV" env-default:"local"`
	HTTP     HTTP   `yaml:"http"`
	Postgres PG     `yaml:"postgres"`
	Redis    Redis  `yaml:"redis"`
	Kafka    Kafka  `yaml:"kafka"`
	Saga     Saga   `yaml:"saga"`
}

type HTTP struct {
	Port    string        `yaml:"port" env:"HTTP_PORT" env-default:":8084"`
	Timeout time.Duration `yaml:"timeout" env-default:"10s"`
}

type PG struct {
	URL string `yaml:"url" env:"DB_URL"`
}

type Redis struct {
	Addr     string        `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	CacheTTL time.Duration `yaml:"cache_ttl" env-default:"10m"`
}

type Kafka struct {
	Brokers []string `yaml:"brokers" env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	GroupID string   `yaml:"group_id" env:"KAFKA_GROUP_ID" env-default:"purchase-service-group"`
}

type Saga struct {
	RequestTopic string        `yaml:"request_topic" env:"SAGA_REQUEST_TOPIC" env-default:"purchase_publish"`
	ReplyTopic   string        `yaml:"reply_topic" env:"SAGA_REPLY_TOPIC" env-default:"purchase_reply"`
	ReplyTimeout time.Duration `yaml:"reply_timeout" env:"SAGA_REPLY_TIMEOUT" env-default:"5s"`
}

func MustLoad() *Config {
	configPath := utils.ParseWithFallback("CONFIG_PATH", "./config/local.yaml")

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("config file does not exists: %v\n", err)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("error reading config: %v", err)
	}

	return &cfg
}
