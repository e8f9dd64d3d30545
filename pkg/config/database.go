package config

import (
	dbutils "github.com/tendant/db-utils/db"
)

// DatabaseConfig holds PostgreSQL database configuration
type DatabaseConfig struct {
	Host     string `env:"AZURE_LOGIN_PG_HOST" env-default:"localhost"`
	Port     uint16 `env:"AZURE_LOGIN_PG_PORT" env-default:"5432"`
	Database string `env:"AZURE_LOGIN_PG_DATABASE" env-default:"azure_login_db"`
	User     string `env:"AZURE_LOGIN_PG_USER" env-default:"azure_login"`
	Password string `env:"AZURE_LOGIN_PG_PASSWORD" env-default:"pwd"`
}

// ToDbConfig converts the config to a db-utils DbConfig
func (d DatabaseConfig) ToDbConfig() dbutils.DbConfig {
	return dbutils.DbConfig{
		Host:     d.Host,
		Port:     d.Port,
		Database: d.Database,
		User:     d.User,
		Password: d.Password,
	}
}
