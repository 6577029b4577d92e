package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config содержит все настройки приложения
type Config struct {
	Postgres   PostgresConfig   `mapstructure:"postgres"`
	Redis      RedisConfig      `mapstructure:"redis"`
	GRPC       GRPCConfig       `mapstructure:"grpc"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	RabbitMQ   RabbitMQConfig   `mapstructure:"rabbitmq"`
	Matching   MatchingConfig   `mapstructure:"matching"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Resilience ResilienceConfig `mapstructure:"-"`
}

// PostgresConfig содержит настройки для PostgreSQL
type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// RedisConfig содержит настройки для Redis
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// GRPCConfig содержит настройки для gRPC сервера
type GRPCConfig struct {
	Port int `mapstructure:"port"`
}

// HTTPConfig содержит настройки HTTP API для Mini App
type HTTPConfig struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// RabbitMQConfig содержит настройки публикации событий. Пустой URL отключает публикацию.
type RabbitMQConfig struct {
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
}

// MatchingConfig содержит настройки подбора пары
type MatchingConfig struct {
	// MaxCommitAttempts сколько кандидатов пробуем зафиксировать, прежде чем вернуть конфликт
	MaxCommitAttempts int `mapstructure:"max_commit_attempts"`
	// LockTTL время жизни блокировки пользователя в Redis на время фиксации пары
	LockTTL time.Duration `mapstructure:"lock_ttl"`
	// Sports каталог допустимых видов спорта; пустой список разрешает любые названия
	Sports []string `mapstructure:"sports"`
}

// CacheConfig содержит настройки кэша профилей
type CacheConfig struct {
	UserTTL time.Duration `mapstructure:"user_ttl"`
}

// LoadConfig загружает настройки из .env, файла конфигурации и переменных окружения
func LoadConfig() (*Config, error) {
	// .env необязателен: в контейнере переменные приходят из окружения
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Значения по умолчанию
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// Если файл конфигурации не найден, используем переменные окружения
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	// Проверяем наличие переменных окружения и переопределяем значения конфигурации
	loadFromEnv(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	config.Resilience = DefaultResilienceConfig()
	if timeout := v.GetDuration("resilience.db_timeout"); timeout > 0 {
		config.Resilience.Database.CommandTimeout = timeout
	}
	if timeout := v.GetDuration("resilience.redis_timeout"); timeout > 0 {
		config.Resilience.Redis.CommandTimeout = timeout
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	// PostgreSQL defaults
	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.username", "postgres")
	v.SetDefault("postgres.password", "postgres")
	v.SetDefault("postgres.dbname", "sportmatch")
	v.SetDefault("postgres.sslmode", "disable")

	// Redis defaults
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// gRPC defaults
	v.SetDefault("grpc.port", 50051)

	// HTTP defaults
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.allowed_origins", []string{"https://*", "http://*"})

	// RabbitMQ defaults
	v.SetDefault("rabbitmq.url", "")
	v.SetDefault("rabbitmq.exchange", "match_events")

	// Matching defaults
	v.SetDefault("matching.max_commit_attempts", 3)
	v.SetDefault("matching.lock_ttl", 5*time.Second)
	v.SetDefault("matching.sports", []string{"Tennis", "Badminton", "Table Tennis", "Pickleball"})

	// Cache defaults
	v.SetDefault("cache.user_ttl", 30*time.Minute)
}

func loadFromEnv(v *viper.Viper) {
	// PostgreSQL from env
	if dbHost := os.Getenv("DB_HOST"); dbHost != "" {
		v.Set("postgres.host", dbHost)
	}
	if dbPort := os.Getenv("DB_PORT"); dbPort != "" {
		if port, err := strconv.Atoi(dbPort); err == nil {
			v.Set("postgres.port", port)
		}
	}
	if dbUser := os.Getenv("DB_USER"); dbUser != "" {
		v.Set("postgres.username", dbUser)
	}
	if dbPassword := os.Getenv("DB_PASSWORD"); dbPassword != "" {
		v.Set("postgres.password", dbPassword)
	}
	if dbName := os.Getenv("DB_NAME"); dbName != "" {
		v.Set("postgres.dbname", dbName)
	}

	// Redis from env
	if redisHost := os.Getenv("REDIS_HOST"); redisHost != "" {
		redisPort := "6379" // Default Redis port
		if port := os.Getenv("REDIS_PORT"); port != "" {
			redisPort = port
		}
		v.Set("redis.addr", redisHost+":"+redisPort)
	}

	// gRPC from env
	if grpcPort := os.Getenv("GRPC_PORT"); grpcPort != "" {
		if port, err := strconv.Atoi(grpcPort); err == nil {
			v.Set("grpc.port", port)
		}
	}

	// HTTP from env
	if httpPort := os.Getenv("HTTP_PORT"); httpPort != "" {
		if port, err := strconv.Atoi(httpPort); err == nil {
			v.Set("http.port", port)
		}
	}

	// RabbitMQ from env
	if amqpURL := os.Getenv("RABBITMQ_URL"); amqpURL != "" {
		v.Set("rabbitmq.url", amqpURL)
	}
}
