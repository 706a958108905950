package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/CapTomas/Proofo-sub002/internal/config"
)

type Store struct {
	DB *gorm.DB
}

// NewStore connects to Postgres, or returns a no-db store when no DSN is
// configured (the server then falls back to the in-memory repositories).
func NewStore(cfg config.Config) (*Store, error) {
	if cfg.PostgresDSN == "" {
		return &Store{DB: nil}, nil
	}
	gdb, err := gorm.Open(postgres.Open(cfg.PostgresDSN), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{DB: gdb}, nil
}

func (s *Store) AutoMigrate() error {
	if s.DB == nil {
		return nil
	}
	return s.DB.AutoMigrate(
		&DealModel{},
		&AccessTokenModel{},
		&VerificationRecordModel{},
		&OneTimeCodeModel{},
		&AuditLogEntryModel{},
	)
}
