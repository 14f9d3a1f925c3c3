package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

var (
	MongoURI    string
	MongoDBName string
	Port        string

	AllowedOrigin string

	JWTSecret string

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	GeminiAPIKey string
	GeminiModel  string

	SendGridAPIKey string
	EmailFrom      string
	EmailFromName  string

	AWSRegion     string
	AWSBucketName string

	CutoutAPIURL string
	CutoutAPIKey string
	TryOnAPIURL  string
	TryOnAPIKey  string

	StudioTimeoutSec  int
	MaxGenerations    int
	MaxUploadMB       int
	DraftCurrency     string
	ChromeDriverPath  string
	LogLevel          string
	LogPretty         bool
	AdminNotifyEmails string
)

// LoadConfig loads environment variables from .env file
func LoadConfig() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using default values or system environment variables")
	}

	MongoURI = getEnv("MONGO_URI", "mongodb://localhost:27017/")
	MongoDBName = getEnv("MONGO_DB", "threadswap")
	Port = getEnv("PORT", "8080")

	AllowedOrigin = getEnv("ALLOWED_ORIGIN", "*")

	JWTSecret = os.Getenv("JWT_SECRET")

	GoogleClientID = os.Getenv("GOOGLE_CLIENT_ID")
	GoogleClientSecret = os.Getenv("GOOGLE_CLIENT_SECRET")
	GoogleRedirectURL = getEnv("GOOGLE_REDIRECT_URL", "http://localhost:8080/auth/google/callback")

	GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	GeminiModel = getEnv("GEMINI_MODEL", "gemini-2.0-flash")

	SendGridAPIKey = os.Getenv("SENDGRID_API_KEY")
	EmailFrom = getEnv("EMAIL_FROM", "no-reply@threadswap.app")
	EmailFromName = getEnv("EMAIL_FROM_NAME", "ThreadSwap")

	AWSRegion = getEnv("AWS_REGION", "ap-south-1")
	AWSBucketName = getEnv("AWS_BUCKET_NAME", "threadswap-images")

	CutoutAPIURL = os.Getenv("CUTOUT_API_URL")
	CutoutAPIKey = os.Getenv("CUTOUT_API_KEY")
	TryOnAPIURL = os.Getenv("TRYON_API_URL")
	TryOnAPIKey = os.Getenv("TRYON_API_KEY")

	StudioTimeoutSec = getEnvInt("STUDIO_TIMEOUT_SEC", 300)
	MaxGenerations = getEnvInt("MAX_GENERATIONS", 4)
	MaxUploadMB = getEnvInt("MAX_UPLOAD_MB", 10)
	DraftCurrency = getEnv("DRAFT_CURRENCY", "USD")

	// Empty path disables the selenium import fallback.
	ChromeDriverPath = getEnv("CHROMEDRIVER_PATH", "/usr/local/bin/chromedriver")

	LogLevel = getEnv("LOG_LEVEL", "info")
	LogPretty = getEnvBool("LOG_PRETTY", false)
	AdminNotifyEmails = os.Getenv("ADMIN_NOTIFY_EMAILS")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("invalid value for %s: %q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
