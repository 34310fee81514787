package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DevEncryptionSalt is only accepted when Environment is "dev".
const DevEncryptionSalt = "federated-learning-platform-salt-2024"

// Config is the whole process configuration. Optional backends left empty
// fall back to in-memory adapters.
type Config struct {
	Environment string
	Server      Server
	Database    DatabaseConfig
	Redis       RedisConfig
	Kafka       KafkaConfig
	MinIO       MinIOConfig
	Crypto      CryptoConfig
	Training    TrainingConfig
	Explain     ExplainConfig
	RateLimit   RateLimitConfig
	Log         LogConfig
	Projects    map[int64]string
	// ProjectMembers lists the user ids enrolled in each project.
	ProjectMembers map[int64][]int64
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr           string
	JWTSigningKey  string
	MaxUploadBytes int64
	RequestTimeout time.Duration
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type KafkaConfig struct {
	Brokers           []string
	Topic             string
	Partitions        int32
	ReplicationFactor int16
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// CryptoConfig holds key derivation settings. The salt is configuration,
// not key material; keys are always re-derived and never stored.
type CryptoConfig struct {
	Salt          string
	KDFIterations int
}

type TrainingConfig struct {
	Workers         int
	DispatchLockTTL time.Duration
}

type ExplainConfig struct {
	GeminiAPIKey string
	GeminiModel  string
	Timeout      time.Duration
}

// RateLimitConfig sets per-user request budgets. Counters live in Redis when
// REDIS_URL is set.
type RateLimitConfig struct {
	Disabled        bool
	UploadsPerHour  int
	TrainingPerHour int
	ReadsPerMinute  int
}

type LogConfig struct {
	Level  string
	Format string
}

// FromEnv loads an optional .env file, then builds the config from
// environment variables so main stays lean.
func FromEnv() (Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := Config{
		Environment: getEnv("FEDLEARN_ENV", "dev"),
		Server: Server{
			Addr:           getEnv("FEDLEARN_ADDR", ":8080"),
			JWTSigningKey:  getEnv("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
			MaxUploadBytes: int64(getEnvAsInt("MAX_UPLOAD_BYTES", 16<<20)),
			RequestTimeout: getEnvAsDuration("REQUEST_TIMEOUT", 10*time.Minute),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    getEnvAsInt("DATABASE_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getEnvAsInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DATABASE_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getEnvAsInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvAsInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getEnvAsDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvAsDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvAsDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:           splitList(os.Getenv("KAFKA_BROKERS")),
			Topic:             getEnv("KAFKA_TOPIC", "fedlearn.training-runs"),
			Partitions:        int32(getEnvAsInt("KAFKA_TOPIC_PARTITIONS", 3)),
			ReplicationFactor: int16(getEnvAsInt("KAFKA_TOPIC_REPLICATION", 1)),
		},
		MinIO: MinIOConfig{
			Endpoint:  os.Getenv("MINIO_ENDPOINT"),
			AccessKey: os.Getenv("MINIO_ACCESS_KEY"),
			SecretKey: os.Getenv("MINIO_SECRET_KEY"),
			Bucket:    getEnv("MINIO_BUCKET", "fedlearn-datasets"),
			UseSSL:    os.Getenv("MINIO_USE_SSL") == "true",
		},
		Crypto: CryptoConfig{
			Salt:          os.Getenv("ENCRYPTION_SALT"),
			KDFIterations: getEnvAsInt("KDF_ITERATIONS", 100_000),
		},
		Training: TrainingConfig{
			Workers:         getEnvAsInt("TRAINING_WORKERS", 4),
			DispatchLockTTL: getEnvAsDuration("DISPATCH_LOCK_TTL", 30*time.Minute),
		},
		Explain: ExplainConfig{
			GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
			GeminiModel:  getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
			Timeout:      getEnvAsDuration("GEMINI_TIMEOUT", 20*time.Second),
		},
		RateLimit: RateLimitConfig{
			Disabled:        os.Getenv("RATE_LIMIT_DISABLED") == "true",
			UploadsPerHour:  getEnvAsInt("RATE_LIMIT_UPLOADS_PER_HOUR", 30),
			TrainingPerHour: getEnvAsInt("RATE_LIMIT_TRAINING_PER_HOUR", 20),
			ReadsPerMinute:  getEnvAsInt("RATE_LIMIT_READS_PER_MINUTE", 120),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	projects, err := ParseProjects(os.Getenv("PROJECTS"))
	if err != nil {
		return Config{}, err
	}
	cfg.Projects = projects
	members, err := ParseProjectMembers(os.Getenv("PROJECT_MEMBERS"))
	if err != nil {
		return Config{}, err
	}
	for projectID := range members {
		if _, ok := projects[projectID]; !ok {
			return Config{}, fmt.Errorf("PROJECT_MEMBERS names project %d missing from PROJECTS", projectID)
		}
	}
	cfg.ProjectMembers = members

	if cfg.Crypto.Salt == "" && cfg.Environment == "dev" {
		cfg.Crypto.Salt = DevEncryptionSalt
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate ensures required configuration is present and valid.
func (c Config) Validate() error {
	if c.Crypto.Salt == "" {
		return errors.New("ENCRYPTION_SALT is required outside dev")
	}
	if c.Crypto.KDFIterations < 100_000 {
		return fmt.Errorf("KDF_ITERATIONS must be at least 100000, got %d", c.Crypto.KDFIterations)
	}
	if c.Server.MaxUploadBytes <= 0 {
		return errors.New("MAX_UPLOAD_BYTES must be positive")
	}
	if c.Server.RequestTimeout <= 0 {
		return errors.New("REQUEST_TIMEOUT must be positive")
	}
	if c.Training.Workers <= 0 {
		return errors.New("TRAINING_WORKERS must be positive")
	}
	if !c.RateLimit.Disabled &&
		(c.RateLimit.UploadsPerHour <= 0 || c.RateLimit.TrainingPerHour <= 0 || c.RateLimit.ReadsPerMinute <= 0) {
		return errors.New("rate limits must be positive unless RATE_LIMIT_DISABLED=true")
	}
	if c.Environment != "dev" && c.Server.JWTSigningKey == "dev-secret-key-change-in-production" {
		return errors.New("JWT_SIGNING_KEY must be set outside dev")
	}
	return nil
}

// ParseProjects reads the seed project directory "id:code,id:code".
func ParseProjects(raw string) (map[int64]string, error) {
	out := make(map[int64]string)
	for _, entry := range splitList(raw) {
		idPart, code, ok := strings.Cut(entry, ":")
		if !ok || strings.TrimSpace(code) == "" {
			return nil, fmt.Errorf("PROJECTS entry %q: want id:code", entry)
		}
		n, err := strconv.ParseInt(strings.TrimSpace(idPart), 10, 64)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("PROJECTS entry %q: invalid project id", entry)
		}
		out[n] = strings.TrimSpace(code)
	}
	return out, nil
}

// ParseProjectMembers reads project enrollment "id:user|user,id:user".
func ParseProjectMembers(raw string) (map[int64][]int64, error) {
	out := make(map[int64][]int64)
	for _, entry := range splitList(raw) {
		idPart, users, ok := strings.Cut(entry, ":")
		if !ok || strings.TrimSpace(users) == "" {
			return nil, fmt.Errorf("PROJECT_MEMBERS entry %q: want id:user|user", entry)
		}
		projectID, err := strconv.ParseInt(strings.TrimSpace(idPart), 10, 64)
		if err != nil || projectID <= 0 {
			return nil, fmt.Errorf("PROJECT_MEMBERS entry %q: invalid project id", entry)
		}
		for _, u := range strings.Split(users, "|") {
			userID, err := strconv.ParseInt(strings.TrimSpace(u), 10, 64)
			if err != nil || userID <= 0 {
				return nil, fmt.Errorf("PROJECT_MEMBERS entry %q: invalid user id %q", entry, u)
			}
			out[projectID] = append(out[projectID], userID)
		}
	}
	return out, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvAsInt(key string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

func getEnvAsDuration(key string, def time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
