package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"app-access/internal/domain"
	"app-access/internal/infrastructure/sqlstore"
	"app-access/internal/ports"
)

const (
	BackendDynamoDB = "dynamodb"
	BackendSQL      = "sql"
)

type Config struct {
	StoreBackend     string
	TableName        string
	Region           string
	DatabaseDriver   string
	DatabaseDSN      string
	AuthMode         ports.AuthMode
	APIKey           string
	UserPoolID       string
	AllowListFile    string
	BulkUpdateAtomic bool
	LogLevel         string
	Port             string
}

// Load reads the environment, first seeding it from any of envFiles that
// exist. Variables already set in the environment win over file values.
func Load(envFiles ...string) (Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	authMode, err := ports.ParseAuthMode(os.Getenv("AUTH_MODE"))
	if err != nil {
		return Config{}, err
	}
	atomic := false
	if v := os.Getenv("BULK_UPDATE_ATOMIC"); v != "" {
		atomic, err = strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("BULK_UPDATE_ATOMIC: %w", err)
		}
	}
	cfg := Config{
		StoreBackend:     strings.ToLower(getenv("STORE_BACKEND", BackendDynamoDB)),
		TableName:        os.Getenv("TABLE_NAME"),
		Region:           os.Getenv("AWS_REGION"),
		DatabaseDriver:   getenv("DATABASE_DRIVER", sqlstore.DriverSqlite),
		DatabaseDSN:      os.Getenv("DATABASE_DSN"),
		AuthMode:         authMode,
		APIKey:           os.Getenv("API_KEY"),
		UserPoolID:       os.Getenv("COGNITO_USER_POOL_ID"),
		AllowListFile:    os.Getenv("ALLOW_LIST_FILE"),
		BulkUpdateAtomic: atomic,
		LogLevel:         os.Getenv("LOG_LEVEL"),
		Port:             getenv("PORT", "8080"),
	}

	switch cfg.StoreBackend {
	case BackendDynamoDB:
		if cfg.TableName == "" || cfg.Region == "" {
			return Config{}, errors.New("TABLE_NAME and AWS_REGION are required for the dynamodb store")
		}
	case BackendSQL:
		if cfg.DatabaseDSN == "" {
			return Config{}, errors.New("DATABASE_DSN is required for the sql store")
		}
	default:
		return Config{}, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}
	if cfg.AuthMode == ports.AuthModeCognito && (cfg.UserPoolID == "" || cfg.Region == "") {
		return Config{}, errors.New("COGNITO_USER_POOL_ID and AWS_REGION are required for cognito auth mode")
	}
	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// LoadAllowList reads a YAML mapping of email to application ids. An empty
// path selects the compiled-in table.
func LoadAllowList(path string) (domain.AllowList, error) {
	if path == "" {
		return domain.DefaultAllowList(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return domain.AllowList{}, fmt.Errorf("read allow-list: %w", err)
	}
	var entries map[string][]string
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return domain.AllowList{}, fmt.Errorf("parse allow-list %s: %w", path, err)
	}
	return domain.NewAllowList(entries), nil
}
