//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Copyright (C) 2025 Aaron Mathis aaron.mathis@gmail.com
//
// This file is part of Tabular.
//
// Tabular is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Tabular is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Tabular. If not, see https://www.gnu.org/licenses/.

// Package config loads command configuration from the environment and
// builds loggers.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the complete command configuration.
type Config struct {
	Environment string `validate:"required,oneof=development production test"`
	Log         LogConfig
	Pipeline    PipelineConfig
	Database    DatabaseConfig
	Mongo       MongoConfig
	S3          S3Config
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `validate:"required,oneof=debug info warn error"`
	Format string `validate:"required,oneof=json console"`
}

// PipelineConfig holds defaults for pipeline runs.
type PipelineConfig struct {
	Workers    int `validate:"gte=0"`
	Salt       string
	NullMarker string
}

// DatabaseConfig holds the SQL sink and source configuration.
type DatabaseConfig struct {
	Driver       string `validate:"omitempty,oneof=postgres sqlite mysql"`
	URL          string
	QueryTimeout time.Duration `validate:"gte=0"`
}

// MongoConfig holds the document source configuration.
type MongoConfig struct {
	URI      string
	Database string
}

// S3Config holds object storage configuration.
type S3Config struct {
	Region          string
	Endpoint        string
	PathStyle       bool
	AccessKeyID     string
	SecretAccessKey string
}

// Load reads the given .env files, or ".env" when none are named, then
// builds and validates the configuration from the environment. Missing
// files are ignored. Variables already set in the environment win.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := &Config{
		Environment: getEnv("TABULAR_ENV", "development"),
		Log: LogConfig{
			Level:  strings.ToLower(getEnv("TABULAR_LOG_LEVEL", "info")),
			Format: strings.ToLower(getEnv("TABULAR_LOG_FORMAT", "console")),
		},
		Pipeline: PipelineConfig{
			Workers:    getEnvAsInt("TABULAR_WORKERS", 0),
			Salt:       getEnv("TABULAR_SALT", ""),
			NullMarker: getEnv("TABULAR_NULL_MARKER", ""),
		},
		Database: DatabaseConfig{
			Driver:       getEnv("TABULAR_DB_DRIVER", "postgres"),
			URL:          getEnv("TABULAR_DATABASE_URL", ""),
			QueryTimeout: getEnvAsDuration("TABULAR_DB_QUERY_TIMEOUT", 30*time.Second),
		},
		Mongo: MongoConfig{
			URI:      getEnv("TABULAR_MONGO_URI", "mongodb://localhost:27017"),
			Database: getEnv("TABULAR_MONGO_DATABASE", ""),
		},
		S3: S3Config{
			Region:          getEnv("TABULAR_S3_REGION", ""),
			Endpoint:        getEnv("TABULAR_S3_ENDPOINT", ""),
			PathStyle:       getEnvAsBool("TABULAR_S3_PATH_STYLE", false),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks struct constraints and cross-field rules.
func (c *Config) Validate() error {
	if err := ValidateStruct(c); err != nil {
		return err
	}
	if c.IsProduction() && c.Log.Format != "json" {
		return fmt.Errorf("log format must be json in production")
	}
	return nil
}

// IsProduction returns true if running in production environment.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
