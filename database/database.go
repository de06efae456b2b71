package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"gradebook_go/config"
	"gradebook_go/models"

	"github.com/go-redis/redis/v8"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB
var RedisClient *redis.Client

// Connect initializes the database and Redis connections
func Connect() {
	connectDatabase()
	ConnectRedis()
}

// Dialector picks the gorm driver for the configured DB_DRIVER.
func Dialector(cfg *config.Config) gorm.Dialector {
	if cfg.DBDriver == config.DriverPostgres {
		return postgres.Open(cfg.GetDSN())
	}
	return mysql.Open(cfg.GetDSN())
}

// connectDatabase initializes the database connection
func connectDatabase() {
	var err error

	// Configure GORM logger based on environment
	var gormLogger logger.Interface
	if config.AppConfig.AppEnv == "development" {
		gormLogger = logger.Default.LogMode(logger.Info)
	} else {
		gormLogger = logger.Default.LogMode(logger.Silent)
	}

	// Retry logic for transient network issues
	var lastErr error
	for attempt := 1; attempt <= 8; attempt++ {
		DB, err = gorm.Open(Dialector(config.AppConfig), &gorm.Config{
			Logger: gormLogger,
		})
		if err == nil {
			break
		}
		lastErr = err
		log.Printf("Database connect attempt %d failed: %v", attempt, err)
		time.Sleep(time.Duration(attempt*attempt) * 300 * time.Millisecond)
	}
	if lastErr != nil && DB == nil {
		log.Fatal("Failed to connect to database after retries:", lastErr)
	}

	log.Printf("Database connected successfully (%s)", config.AppConfig.DBDriver)

	// Configure connection pool
	sqlDB, err := DB.DB()
	if err != nil {
		log.Fatal("Failed to get database instance:", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetConnMaxLifetime(55 * time.Minute)

	if config.AppConfig.SkipMigrate {
		log.Println("SKIP_MIGRATE=true, skipping auto migration")
		return
	}
	if err := AutoMigrate(DB); err != nil {
		log.Fatal("Auto migration failed:", err)
	}
	log.Println("Database migration completed successfully")
}

// AutoMigrate creates the gradebook collections and the operational tables.
func AutoMigrate(db *gorm.DB) error {
	tables := make([]interface{}, 0, len(models.Collections)+4)
	for _, c := range models.Collections {
		tables = append(tables, c.Model())
	}
	tables = append(tables,
		&models.Profile{},
		&models.ActivityLog{},
		&models.LogArchive{},
		&models.BackupArchive{},
	)
	return db.AutoMigrate(tables...)
}

// ConnectRedis initializes the Redis connection. Redis is optional; on
// failure RedisClient stays nil.
func ConnectRedis() {
	RedisClient = redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", config.AppConfig.RedisHost, config.AppConfig.RedisPort),
		Password: config.AppConfig.RedisPassword,
		DB:       0, // use default DB
	})

	// Test Redis connection
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_, err := RedisClient.Ping(ctx).Result()
	if err != nil {
		log.Printf("Redis connection failed: %v", err)
		log.Println("Continuing without Redis - logs will be saved directly to database")
		RedisClient = nil
		return
	}

	log.Println("Redis connected successfully")
}

// GetRedisClient returns the Redis client instance
func GetRedisClient() *redis.Client {
	return RedisClient
}

// GetDB returns the database instance
func GetDB() *gorm.DB {
	return DB
}

// Close closes the database and Redis connections
func Close() {
	if RedisClient != nil {
		if err := RedisClient.Close(); err != nil {
			log.Println("Error closing Redis connection:", err)
		}
	}
	if DB == nil {
		return
	}
	sqlDB, err := DB.DB()
	if err != nil {
		log.Println("Error getting database instance:", err)
		return
	}

	err = sqlDB.Close()
	if err != nil {
		log.Println("Error closing database connection:", err)
		return
	}

	log.Println("Database connection closed")
}
