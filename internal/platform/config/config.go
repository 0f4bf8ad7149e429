package config

import (
	"os"
	"strconv"
	"time"

	"biblio/internal/library/models"
)

// Server captures process-level configuration.
type Server struct {
	Addr        string
	Storage     string // "memory", "sqlite", or "postgres"
	DatabaseDSN string
	SQLitePath  string
	LoanPeriod  time.Duration
}

// FromEnv builds a Server config from environment variables so main stays
// lean.
func FromEnv() Server {
	addr := os.Getenv("BIBLIO_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	storage := os.Getenv("BIBLIO_STORAGE")
	if storage == "" {
		storage = "sqlite"
	}

	sqlitePath := os.Getenv("BIBLIO_SQLITE_PATH")
	if sqlitePath == "" {
		sqlitePath = "library.db"
	}

	loanPeriod := models.DefaultLoanPeriod
	if days := os.Getenv("BIBLIO_LOAN_PERIOD_DAYS"); days != "" {
		if n, err := strconv.Atoi(days); err == nil && n > 0 {
			loanPeriod = time.Duration(n) * 24 * time.Hour
		}
	}

	return Server{
		Addr:        addr,
		Storage:     storage,
		DatabaseDSN: os.Getenv("BIBLIO_DB_DSN"),
		SQLitePath:  sqlitePath,
		LoanPeriod:  loanPeriod,
	}
}
