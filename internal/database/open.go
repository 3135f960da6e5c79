package database

import (
	"fmt"
	"net"

	"github.com/aethra/glow/internal/config"
	mysqldriver "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq" // registers the "postgres" database/sql driver
	"github.com/rs/zerolog"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DSN returns the connection string for cfg. An explicit DSN is used as-is,
// except that MySQL DSNs always get parseTime.
func DSN(cfg config.DatabaseConfig) (string, error) {
	switch cfg.Driver {
	case config.DriverPostgres, config.DriverPQ:
		if cfg.DSN != "" {
			return cfg.DSN, nil
		}
		port := cfg.Port
		if port == "" {
			port = "5432"
		}
		sslMode := cfg.SSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			cfg.Host, port, cfg.User, cfg.Password, cfg.Name, sslMode), nil

	case config.DriverMySQL:
		var mc *mysqldriver.Config
		if cfg.DSN != "" {
			parsed, err := mysqldriver.ParseDSN(cfg.DSN)
			if err != nil {
				return "", fmt.Errorf("parse mysql dsn: %w", err)
			}
			mc = parsed
		} else {
			port := cfg.Port
			if port == "" {
				port = "3306"
			}
			mc = mysqldriver.NewConfig()
			mc.User = cfg.User
			mc.Passwd = cfg.Password
			mc.Net = "tcp"
			mc.Addr = net.JoinHostPort(cfg.Host, port)
			mc.DBName = cfg.Name
		}
		mc.ParseTime = true
		return mc.FormatDSN(), nil
	}
	return "", fmt.Errorf("database driver %q has no DSN", cfg.Driver)
}

// Dialector picks the gorm dialector for the configured driver.
func Dialector(cfg config.DatabaseConfig) (gorm.Dialector, error) {
	dsn, err := DSN(cfg)
	if err != nil {
		return nil, err
	}
	switch cfg.Driver {
	case config.DriverPostgres:
		return postgres.Open(dsn), nil
	case config.DriverPQ:
		return postgres.New(postgres.Config{DriverName: "postgres", DSN: dsn}), nil
	case config.DriverMySQL:
		return mysql.Open(dsn), nil
	}
	return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
}

// Open connects to the configured database.
func Open(cfg config.DatabaseConfig, log zerolog.Logger) (*gorm.DB, error) {
	dialector, err := Dialector(cfg)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	log.Info().Str("driver", cfg.Driver).Str("dialect", db.Dialector.Name()).Msg("database connected")
	return db, nil
}
