package main

import (
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"repokit/errors"
)

const (
	envPrefix = "REPOQUERY"

	cfgKeyConfig     = "config"
	cfgKeyDriver     = "driver"
	cfgKeyDSN        = "dsn"
	cfgKeyTable      = "table"
	cfgKeyPrimaryKey = "primary-key"
	cfgKeySoftDelete = "soft-delete"
	cfgKeyLogLevel   = "log-level"
	cfgKeyLogEnv     = "log-env"
	cfgKeyMetrics    = "metrics"

	defaultDriver = "sqlite"
)

// Config 命令运行配置，来源优先级：命令行参数 > 环境变量 REPOQUERY_* > 配置文件
type Config struct {
	Driver     string
	DSN        string
	Table      string
	PrimaryKey string
	SoftDelete string
	LogLevel   string
	LogEnv     string
	Metrics    bool
}

func bindFlags(flags *pflag.FlagSet) {
	flags.String(cfgKeyConfig, "", "config file (yaml/json/toml)")
	flags.String(cfgKeyDriver, defaultDriver, "database driver")
	flags.String(cfgKeyDSN, "", "data source name; sqlite accepts a file path or :memory:")
	flags.String(cfgKeyTable, "", "table to query")
	flags.String(cfgKeyPrimaryKey, "id", "primary key column")
	flags.String(cfgKeySoftDelete, "", "soft delete column; empty disables soft delete")
	flags.String(cfgKeyLogLevel, "warn", "log level (debug|info|warn|error)")
	flags.String(cfgKeyLogEnv, "dev", "log format: dev (console) or prod (json)")
	flags.Bool(cfgKeyMetrics, false, "print per-operation metrics to stderr after the command")
}

// loadConfig 读取配置；配置文件缺失视为错误，未指定配置文件时仅使用参数与环境变量
func loadConfig(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(flags); err != nil {
		return nil, errors.WrapError(err, errors.ErrCodeConfiguration, "bind flags")
	}

	if path := v.GetString(cfgKeyConfig); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.WrapError(err, errors.ErrCodeConfiguration, "read config")
		}
	}

	cfg := &Config{
		Driver:     v.GetString(cfgKeyDriver),
		DSN:        v.GetString(cfgKeyDSN),
		Table:      v.GetString(cfgKeyTable),
		PrimaryKey: v.GetString(cfgKeyPrimaryKey),
		SoftDelete: v.GetString(cfgKeySoftDelete),
		LogLevel:   v.GetString(cfgKeyLogLevel),
		LogEnv:     v.GetString(cfgKeyLogEnv),
		Metrics:    v.GetBool(cfgKeyMetrics),
	}
	if cfg.DSN == "" {
		return nil, errors.NewError(errors.ErrCodeConfiguration, "dsn is required (--dsn or REPOQUERY_DSN)")
	}
	if cfg.Table == "" {
		return nil, errors.NewError(errors.ErrCodeConfiguration, "table is required (--table or REPOQUERY_TABLE)")
	}
	return cfg, nil
}
