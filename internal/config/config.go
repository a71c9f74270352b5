package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	DBDriver   string
	DBUser     string
	DBPassword string
	DBName     string
	DBHost     string
	DBPort     string
	SQLitePath string

	RedisHost     string
	RedisPort     string
	RedisPassword string

	BotToken     string
	AdminIDs     []int64 // telegram ids promoted to the admin role on startup
	AdminChatIDs []int64 // notification targets

	MinWithdrawal decimal.Decimal
	MinTxIDLength int
	SeedPlans     []PlanSeed

	SweepSchedule    string
	SweepWorkers     int
	SweepUserTimeout time.Duration
	SweepLockTTL     time.Duration

	OpsAddr         string
	OpsAllowedCIDRs []string

	LogLevel  string
	LogFormat string
}

type PlanSeed struct {
	Amount           decimal.Decimal
	DailyEarningRate decimal.Decimal
}

func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	adminIDs := parseIDs(getEnv("ADMIN_TELEGRAM_IDS", ""))
	chatIDs := parseIDs(getEnv("ADMIN_CHAT_IDS", ""))
	if len(chatIDs) == 0 {
		chatIDs = adminIDs
	}

	seeds, err := ParsePlanSeeds(getEnv("SEED_PLANS", "20:0.6,40:1,60:1.4,80:1.8,100:2.4,200:5.5"))
	if err != nil {
		log.Printf("Invalid SEED_PLANS, no plans will be seeded: %v", err)
	}

	return &Config{
		DBDriver:   getEnv("DB_DRIVER", "postgres"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", "earnify"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		SQLitePath: getEnv("SQLITE_PATH", "earnify.db"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		BotToken:     getEnv("TELEGRAM_BOT_TOKEN", ""),
		AdminIDs:     adminIDs,
		AdminChatIDs: chatIDs,

		MinWithdrawal: getDecimal("MIN_WITHDRAWAL", decimal.NewFromInt(5)),
		MinTxIDLength: getInt("MIN_TXID_LENGTH", 6),
		SeedPlans:     seeds,

		SweepSchedule:    getEnv("SWEEP_SCHEDULE", "0 * * * *"),
		SweepWorkers:     getInt("SWEEP_WORKERS", 8),
		SweepUserTimeout: getDuration("SWEEP_USER_TIMEOUT", 10*time.Second),
		SweepLockTTL:     getDuration("SWEEP_LOCK_TTL", 10*time.Minute),

		OpsAddr:         getEnv("OPS_ADDR", ":9090"),
		OpsAllowedCIDRs: splitList(getEnv("OPS_ALLOWED_CIDRS", "127.0.0.0/8,10.0.0.0/8,172.16.0.0/12,192.168.0.0/16,::1/128")),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}
}

// ParsePlanSeeds reads "amount:daily" pairs separated by commas.
func ParsePlanSeeds(s string) ([]PlanSeed, error) {
	var out []PlanSeed
	for _, item := range splitList(s) {
		amountStr, rateStr, ok := strings.Cut(item, ":")
		if !ok {
			return nil, fmt.Errorf("plan %q: expected amount:daily", item)
		}
		amount, err := decimal.NewFromString(strings.TrimSpace(amountStr))
		if err != nil {
			return nil, fmt.Errorf("plan %q: %w", item, err)
		}
		rate, err := decimal.NewFromString(strings.TrimSpace(rateStr))
		if err != nil {
			return nil, fmt.Errorf("plan %q: %w", item, err)
		}
		out = append(out, PlanSeed{Amount: amount, DailyEarningRate: rate})
	}
	return out, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

func getDecimal(key string, fallback decimal.Decimal) decimal.Decimal {
	v, err := decimal.NewFromString(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

func parseIDs(s string) []int64 {
	var ids []int64
	for _, p := range splitList(s) {
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			log.Printf("Skipping invalid telegram id %q", p)
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
