package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host string
	Port int
}

type StorageConfig struct {
	Path    string
	BaseKey string
}

type AuthConfig struct {
	AccessSecret string
}

type AnalyticsConfig struct {
	RetentionDays      int
	DedupWindowMinutes int
	MaxIncidents       int
	MaxRecommendations int
	MaxEmergencyEvents int
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

type Config struct {
	Environment string
	HTTP        HTTPConfig
	Storage     StorageConfig
	Auth        AuthConfig
	Analytics   AnalyticsConfig
	Kafka       KafkaConfig
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("./deploy")
	v.AddConfigPath("./internal/config")

	v.AutomaticEnv()

	_ = v.ReadInConfig()

	cfg := &Config{
		Environment: v.GetString("APP_ENV"),
		HTTP: HTTPConfig{
			Host: v.GetString("HTTP_HOST"),
			Port: v.GetInt("HTTP_PORT"),
		},
		Storage: StorageConfig{
			Path:    v.GetString("STORAGE_PATH"),
			BaseKey: v.GetString("STORAGE_BASE_KEY"),
		},
		Auth: AuthConfig{
			AccessSecret: v.GetString("JWT_ACCESS_SECRET"),
		},
		Analytics: AnalyticsConfig{
			RetentionDays:      v.GetInt("ANALYTICS_RETENTION_DAYS"),
			DedupWindowMinutes: v.GetInt("ANALYTICS_DEDUP_WINDOW_MINUTES"),
			MaxIncidents:       v.GetInt("ANALYTICS_MAX_INCIDENTS"),
			MaxRecommendations: v.GetInt("ANALYTICS_MAX_RECOMMENDATIONS"),
			MaxEmergencyEvents: v.GetInt("ANALYTICS_MAX_EMERGENCIES"),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(v.GetString("KAFKA_BROKERS")),
			Topic:   v.GetString("KAFKA_TOPIC"),
			GroupID: v.GetString("KAFKA_GROUP_ID"),
		},
	}

	if cfg.HTTP.Host == "" {
		cfg.HTTP.Host = "0.0.0.0"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 7090
	}
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = "traffic-analytics.db"
	}
	if cfg.Storage.BaseKey == "" {
		cfg.Storage.BaseKey = "traffic_analytics"
	}
	if cfg.Analytics.RetentionDays <= 0 {
		cfg.Analytics.RetentionDays = 30
	}
	if cfg.Analytics.DedupWindowMinutes <= 0 {
		cfg.Analytics.DedupWindowMinutes = 5
	}
	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = "traffic.observations"
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = "traffic-analytics"
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.HTTP.Port < 1 || cfg.HTTP.Port > 65535 {
		return fmt.Errorf("HTTP_PORT out of range: %d", cfg.HTTP.Port)
	}
	if cfg.Analytics.RetentionDays > 3650 {
		return fmt.Errorf("ANALYTICS_RETENTION_DAYS too large: %d", cfg.Analytics.RetentionDays)
	}
	if cfg.Kafka.Enabled() && cfg.Kafka.Topic == "" {
		return fmt.Errorf("KAFKA_TOPIC is required when brokers are set")
	}
	return nil
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
