package global

import (
	"time"
)

const (
	StoreBackendMemory = "memory"
	StoreBackendRedis  = "redis"
	StoreBackendMongo  = "mongo"

	DefaultOrderAPIURL     = "http://localhost:5000/api"
	DefaultOrderAPITimeout = 10 * time.Second
)

// Config holds everything the storefront process reads from the environment.
type Config struct {
	Port        string
	Env         string
	LogLevel    string
	CORSOrigins []string

	StoreBackend string

	RedisAddress   string
	RedisPassword  string
	RedisKeyPrefix string

	MongoURI        string
	MongoDatabase   string
	MongoCollection string

	OrderAPIURL     string
	OrderAPITimeout time.Duration
}

// LoadConfig reads the process environment. Call godotenv.Load first if a
// .env file should be honoured.
func LoadConfig() Config {
	return Config{
		Port:     GetEnvOrDefault("PORT", "8000"),
		Env:      GetEnvOrDefault("ENV", "development"),
		LogLevel: GetEnvOrDefault("LOG_LEVEL", "info"),
		CORSOrigins: GetListOrDefault("CORS_ORIGINS", []string{
			"http://localhost:3000",
			"http://localhost:5173",
		}),

		StoreBackend: GetEnvOrDefault("STORE_BACKEND", StoreBackendMemory),

		RedisAddress:   GetEnvOrDefault("REDIS_ADDRESS", "localhost:6379"),
		RedisPassword:  GetEnvOrDefault("REDIS_PASSWORD", ""),
		RedisKeyPrefix: GetEnvOrDefault("REDIS_KEY_PREFIX", "petstore"),

		MongoURI:        GetEnvOrDefault("MONGODB_URI", "mongodb://localhost:27017"),
		MongoDatabase:   GetEnvOrDefault("MONGODB_DATABASE", "petstore"),
		MongoCollection: GetEnvOrDefault("MONGODB_COLLECTION", "kv_store"),

		OrderAPIURL:     GetEnvOrDefault("ORDER_API_URL", DefaultOrderAPIURL),
		OrderAPITimeout: GetDurationOrDefault("ORDER_API_TIMEOUT", DefaultOrderAPITimeout),
	}
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}
