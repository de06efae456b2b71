package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/ssm"
	"github.com/joho/godotenv"
)

const (
	StoreModeDatabase = "database"
	StoreModeOffline  = "offline"

	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

type Config struct {
	// Database
	DBDriver   string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string

	// JWT
	JWTSecret    string
	JWTExpiresIn time.Duration

	// AWS S3
	AWSRegion          string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	S3BucketName       string

	// Server
	Port   string
	AppEnv string

	// File Upload
	MaxFileSize int64

	// Logging
	LogLevel string
	LogFile  string

	// Gradebook store
	StoreMode       string
	OfflineDataFile string
	ResetKeyword    string

	// Seeding
	AdminEmail    string
	AdminPassword string

	// Scheduled jobs
	BackupEnabled  bool
	BackupCron     string
	LogArchiveCron string
	LogArchiveDays int

	// Feature Toggles
	EnforceRoles bool
	SkipMigrate  bool
}

func (c *Config) GetDSN() string {
	if c.DBDriver == DriverPostgres {
		return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode)
	}
	return c.DBUser + ":" + c.DBPassword + "@tcp(" + c.DBHost + ":" + c.DBPort + ")/" + c.DBName + "?charset=utf8mb4&parseTime=True&loc=Local"
}

// Offline reports whether the gradebook is kept in a local file instead of the database.
func (c *Config) Offline() bool {
	return c.StoreMode == StoreModeOffline
}

var AppConfig *Config

// LoadConfig loads the configuration into AppConfig and exits on invalid settings.
func LoadConfig() {
	cfg, err := Load()
	if err != nil {
		log.Fatal(err)
	}
	AppConfig = cfg
}

// Load reads the configuration from AWS SSM when USE_SSM=true, otherwise
// from .env and the process environment.
func Load() (*Config, error) {
	useSSM := getEnv("USE_SSM", "false") == "true"

	var paramMap map[string]string

	// Stage & base path for SSM (allows multi-env without code changes)
	basePath := getEnv("SSM_BASE_PATH", "/gradebook")
	stage := getEnv("STAGE", getEnv("APP_ENV", "production"))
	basePath = strings.TrimRight(basePath, "/")
	prefix := basePath + "/" + stage

	if useSSM {
		sess, err := session.NewSession(&aws.Config{Region: aws.String(getEnv("AWS_REGION", "ap-southeast-1"))})
		if err != nil {
			return nil, fmt.Errorf("failed to create AWS session: %w", err)
		}
		log.Printf("Using AWS SSM Parameter Store (prefix=%s)", prefix)
		paramMap = fetchSSMParameters(ssm.New(sess), prefix)
	} else {
		if err := godotenv.Load(); err != nil {
			log.Println("Warning: .env file not found, using environment variables")
		}
	}

	getVal := func(key, def string) string {
		if useSSM {
			if v, ok := paramMap[strings.ToUpper(key)]; ok && v != "" {
				return v
			}
		}
		return getEnv(strings.ToUpper(key), def)
	}
	getBool := func(key string, def bool) bool {
		return strings.ToLower(getVal(key, strconv.FormatBool(def))) == "true"
	}

	jwtExpires, err := parseDuration(getVal("JWT_EXPIRES_IN", "24h"))
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_EXPIRES_IN format: %w", err)
	}

	maxFileSize, err := strconv.ParseInt(getVal("MAX_FILE_SIZE", "10485760"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_FILE_SIZE format: %w", err)
	}

	archiveDays, err := strconv.Atoi(getVal("LOG_ARCHIVE_DAYS", "30"))
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_ARCHIVE_DAYS format: %w", err)
	}

	driver := strings.ToLower(getVal("DB_DRIVER", DriverMySQL))
	defaultPort := "3306"
	if driver == DriverPostgres {
		defaultPort = "5432"
	}

	cfg := &Config{
		DBDriver:   driver,
		DBHost:     getVal("DB_HOST", "localhost"),
		DBPort:     getVal("DB_PORT", defaultPort),
		DBUser:     getVal("DB_USER", "root"),
		DBPassword: getVal("DB_PASSWORD", ""),
		DBName:     getVal("DB_NAME", "gradebook"),
		DBSSLMode:  getVal("DB_SSLMODE", "disable"),

		RedisHost:     getVal("REDIS_HOST", "localhost"),
		RedisPort:     getVal("REDIS_PORT", "6379"),
		RedisPassword: getVal("REDIS_PASSWORD", ""),

		JWTSecret:    getVal("JWT_SECRET", "your_super_secret_jwt_key"),
		JWTExpiresIn: jwtExpires,

		AWSRegion:          getVal("AWS_REGION", "ap-southeast-1"),
		AWSAccessKeyID:     getVal("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey: getVal("AWS_SECRET_ACCESS_KEY", ""),
		S3BucketName:       getVal("S3_BUCKET_NAME", "gradebook-storage"),

		Port:   getVal("PORT", "3000"),
		AppEnv: getVal("APP_ENV", "development"),

		MaxFileSize: maxFileSize,

		LogLevel: getVal("LOG_LEVEL", "info"),
		LogFile:  getVal("LOG_FILE", "logs/app.log"),

		StoreMode:       strings.ToLower(getVal("STORE_MODE", StoreModeDatabase)),
		OfflineDataFile: getVal("OFFLINE_DATA_FILE", "data/gradebook.json"),
		ResetKeyword:    getVal("RESET_KEYWORD", "smpthhkok"),

		AdminEmail:    getVal("ADMIN_EMAIL", "admin@school.local"),
		AdminPassword: getVal("ADMIN_PASSWORD", "admin123"),

		BackupEnabled:  getBool("BACKUP_ENABLED", false),
		BackupCron:     getVal("BACKUP_CRON", "0 2 * * *"),
		LogArchiveCron: getVal("LOG_ARCHIVE_CRON", "0 3 * * *"),
		LogArchiveDays: archiveDays,

		EnforceRoles: getBool("ENFORCE_ROLES", false),
		SkipMigrate:  getBool("SKIP_MIGRATE", false),
	}

	if err := validateConfig(cfg, useSSM); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseDuration accepts Go durations plus the day/week shorthands 7d and 2w.
func parseDuration(raw string) (time.Duration, error) {
	d, err := time.ParseDuration(raw)
	if err == nil {
		return d, nil
	}
	s := strings.TrimSpace(strings.ToLower(raw))
	if len(s) > 1 {
		unit := s[len(s)-1]
		if n, err2 := strconv.Atoi(s[:len(s)-1]); err2 == nil {
			switch unit {
			case 'd':
				return time.Duration(n) * 24 * time.Hour, nil
			case 'w':
				return time.Duration(n*7) * 24 * time.Hour, nil
			}
		}
	}
	return 0, err
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// fetchSSMParameters reads all parameters under prefix and returns map with UPPERCASE keys.
func fetchSSMParameters(client *ssm.SSM, prefix string) map[string]string {
	out := make(map[string]string)
	next := aws.String("")
	for {
		in := &ssm.GetParametersByPathInput{
			Path:           aws.String(prefix),
			WithDecryption: aws.Bool(true),
			Recursive:      aws.Bool(true),
		}
		if *next != "" {
			in.NextToken = next
		}
		resp, err := client.GetParametersByPath(in)
		if err != nil {
			log.Printf("Warning: unable to fetch SSM parameters for prefix %s: %v", prefix, err)
			break
		}
		for _, p := range resp.Parameters {
			if p.Name == nil || p.Value == nil {
				continue
			}
			name := *p.Name
			// last segment after '/'
			key := name[strings.LastIndex(name, "/")+1:]
			if key == "" {
				continue
			}
			out[strings.ToUpper(key)] = *p.Value
		}
		if resp.NextToken == nil || *resp.NextToken == "" {
			break
		}
		next = resp.NextToken
	}
	return out
}

func validateConfig(c *Config, usedSSM bool) error {
	switch c.StoreMode {
	case StoreModeDatabase, StoreModeOffline:
	default:
		return fmt.Errorf("invalid STORE_MODE %q (want %s or %s)", c.StoreMode, StoreModeDatabase, StoreModeOffline)
	}
	switch c.DBDriver {
	case DriverMySQL, DriverPostgres:
	default:
		return fmt.Errorf("invalid DB_DRIVER %q (want %s or %s)", c.DBDriver, DriverMySQL, DriverPostgres)
	}
	if strings.TrimSpace(c.ResetKeyword) == "" {
		return fmt.Errorf("RESET_KEYWORD must not be empty")
	}

	// Only enforce stricter rules in production
	if strings.ToLower(c.AppEnv) != "production" {
		return nil
	}
	required := map[string]string{"JWT_SECRET": c.JWTSecret}
	if !c.Offline() {
		required["DB_PASSWORD"] = c.DBPassword
	}
	for k, v := range required {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("missing required secret %s in production (SSM=%v)", k, usedSSM)
		}
	}
	if len(c.JWTSecret) < 16 {
		return fmt.Errorf("JWT_SECRET too short (min 16 chars)")
	}
	return nil
}
