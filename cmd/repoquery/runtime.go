package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	core "repokit/data/db"
	"repokit/data/db/basic"
	"repokit/data/db/sqlite"
	"repokit/data/orm"
	ormbasic "repokit/data/orm/basic"
	"repokit/data/orm/instrumented"
	"repokit/data/orm/repo"
	"repokit/logging"
)

// runtime 单次命令使用的数据库、仓储与指标
type runtime struct {
	cfg      *Config
	db       *basic.DB
	repo     *repo.Repo[map[string]any]
	logger   *logging.ZapLogger
	registry *prometheus.Registry
}

func newRuntime(cfg *Config) (*runtime, error) {
	logger, err := logging.NewZapLogger(logging.ZapConfig{Env: cfg.LogEnv, Level: cfg.LogLevel, ServiceName: "repoquery"})
	if err != nil {
		return nil, err
	}

	database, err := openDatabase(cfg)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}

	var engine orm.IOrm = ormbasic.New(database)
	var registry *prometheus.Registry
	if cfg.Metrics {
		registry = prometheus.NewRegistry()
		recorder, err := instrumented.NewPrometheusRecorder(registry)
		if err != nil {
			_ = database.Close()
			return nil, err
		}
		engine = instrumented.Wrap(engine, recorder)
	}

	opts := []repo.Option{repo.WithLogger(logger.WithFields(logging.String("component", "repo")))}
	if cfg.PrimaryKey != "" {
		opts = append(opts, repo.WithPrimaryKey(cfg.PrimaryKey))
	}
	if cfg.SoftDelete != "" {
		opts = append(opts, repo.WithSoftDelete(cfg.SoftDelete))
	}
	r, err := repo.NewRepo[map[string]any](engine, cfg.Table, opts...)
	if err != nil {
		_ = database.Close()
		return nil, err
	}

	logger.Debug(context.Background(), "repoquery ready",
		logging.String("driver", cfg.Driver),
		logging.String("table", cfg.Table))
	return &runtime{cfg: cfg, db: database, repo: r, logger: logger, registry: registry}, nil
}

func openDatabase(cfg *Config) (*basic.DB, error) {
	if cfg.Driver == "" || cfg.Driver == defaultDriver {
		return sqlite.Open(cfg.DSN)
	}
	return basic.New(core.DBConfig{Driver: cfg.Driver, DSN: cfg.DSN})
}

// close 关闭数据库，按需输出指标
func (rt *runtime) close(metricsOut io.Writer) error {
	if rt.registry != nil {
		if err := writeMetrics(metricsOut, rt.registry); err != nil {
			rt.logger.Warn(context.Background(), "write metrics failed", logging.Error(err))
		}
	}
	_ = rt.logger.Sync()
	return rt.db.Close()
}

// writeMetrics 以 "name{label=value,...} value" 形式输出计数器与直方图样本数
func writeMetrics(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			labels := make([]string, 0, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				labels = append(labels, lp.GetName()+"="+lp.GetValue())
			}
			sort.Strings(labels)
			var value float64
			switch {
			case m.GetCounter() != nil:
				value = m.GetCounter().GetValue()
			case m.GetHistogram() != nil:
				value = float64(m.GetHistogram().GetSampleCount())
			default:
				continue
			}
			if _, err := fmt.Fprintf(w, "%s{%s} %g\n", mf.GetName(), strings.Join(labels, ","), value); err != nil {
				return err
			}
		}
	}
	return nil
}
