package config

import "os"

// Config carries everything the binaries read from the environment.
type Config struct {
	Port                    string
	Env                     string
	PostgresConnStr         string
	MongoURI                string
	MongoDatabase           string
	RedisURL                string
	JWTSecret               string
	FirebaseCredentialsPath string
	StorageBucket           string
}

func Load() *Config {
	return &Config{
		Port:                    getEnv("PORT", "8080"),
		Env:                     getEnv("ENV", "development"),
		PostgresConnStr:         getEnv("POSTGRES_CONN_STR", ""),
		MongoURI:                getEnv("MONGO_URI", ""),
		MongoDatabase:           getEnv("MONGO_DATABASE", "driftlog"),
		RedisURL:                getEnv("REDIS_URL", ""),
		JWTSecret:               getEnv("JWT_SECRET", "supersecretjwtkey"),
		FirebaseCredentialsPath: getEnv("FIREBASE_CREDENTIALS_PATH", ""),
		StorageBucket:           getEnv("STORAGE_BUCKET", ""),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
