package configs

import (
	"log"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration values.
type Config struct {
	Port      string
	JWTSecret string
	JWTExpire time.Duration

	DBDriver         string
	DatabaseURL      string
	PostgresUser     string
	PostgresPassword string
	PostgresHost     string
	PostgresPort     string
	PostgresDB       string

	RedisURL string

	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string

	MinIOEndpoint  string
	MinIOAccessKey string
	MinIOSecretKey string
	MinIOBucket    string
	MinIOEnabled   bool
}

var (
	configInstance *Config
	once           sync.Once
)

// Load reads configuration from the environment and an optional .env file.
func Load() *Config {
	once.Do(func() {
		viper.SetConfigName(".env")
		viper.SetConfigType("env")
		viper.AddConfigPath(".")

		viper.SetDefault("VOTING_PORT", "8080")
		viper.SetDefault("VOTING_JWT_SECRET", "secret")
		viper.SetDefault("VOTING_JWT_EXPIRE", "24h")
		viper.SetDefault("DB_DRIVER", "postgres")
		viper.SetDefault("POSTGRES_USER", "postgres")
		viper.SetDefault("POSTGRES_PASSWORD", "password")
		viper.SetDefault("POSTGRES_HOST", "localhost")
		viper.SetDefault("POSTGRES_PORT", "5432")
		viper.SetDefault("POSTGRES_DB", "voting")
		viper.SetDefault("REDIS_URL", "redis://127.0.0.1:6379/0")
		viper.SetDefault("KAFKA_BROKERS", []string{"localhost:9092"})
		viper.SetDefault("KAFKA_TOPIC", "poll-events")
		viper.SetDefault("KAFKA_GROUP_ID", "tally-projector")
		viper.SetDefault("MINIO_BUCKET", "poll-images")
		viper.AutomaticEnv()

		if err := viper.ReadInConfig(); err != nil {
			log.Printf("Warning: Error reading .env file: %v", err)
			log.Printf("Using environment variables and defaults")
		}

		expire, err := time.ParseDuration(viper.GetString("VOTING_JWT_EXPIRE"))
		if err != nil {
			log.Fatal("Invalid VOTING_JWT_EXPIRE format")
		}

		configInstance = &Config{
			Port:      viper.GetString("VOTING_PORT"),
			JWTSecret: viper.GetString("VOTING_JWT_SECRET"),
			JWTExpire: expire,

			DBDriver:         viper.GetString("DB_DRIVER"),
			DatabaseURL:      viper.GetString("DATABASE_URL"),
			PostgresUser:     viper.GetString("POSTGRES_USER"),
			PostgresPassword: viper.GetString("POSTGRES_PASSWORD"),
			PostgresHost:     viper.GetString("POSTGRES_HOST"),
			PostgresPort:     viper.GetString("POSTGRES_PORT"),
			PostgresDB:       viper.GetString("POSTGRES_DB"),

			RedisURL: viper.GetString("REDIS_URL"),

			KafkaBrokers: viper.GetStringSlice("KAFKA_BROKERS"),
			KafkaTopic:   viper.GetString("KAFKA_TOPIC"),
			KafkaGroupID: viper.GetString("KAFKA_GROUP_ID"),

			MinIOEndpoint:  viper.GetString("MINIO_ENDPOINT"),
			MinIOAccessKey: viper.GetString("MINIO_ACCESS_KEY"),
			MinIOSecretKey: viper.GetString("MINIO_SECRET_KEY"),
			MinIOBucket:    viper.GetString("MINIO_BUCKET"),
			MinIOEnabled:   viper.GetString("MINIO_ENDPOINT") != "",
		}
	})
	return configInstance
}
