package collectors

import (
	"context"
	"encoding/json"
	"fmt"

	"cpanel_exporter/internal/cpanel"
	"cpanel_exporter/internal/metrics"

	"go.uber.org/zap"
)

// databaseSource collects per-database disk usage. MySQL and PostgreSQL
// share the list_databases response shape and differ only in the UAPI
// module queried.
type databaseSource struct {
	deps   *Deps
	name   string
	module string
	metric string
}

func NewMysql(deps *Deps) Source {
	return &databaseSource{
		deps:   deps,
		name:   "mysql",
		module: "Mysql",
		metric: "cpanel_mysql_db_disk_usage",
	}
}

func NewPostgres(deps *Deps) Source {
	return &databaseSource{
		deps:   deps,
		name:   "postgres",
		module: "Postgresql",
		metric: "cpanel_postgres_db_disk_usage",
	}
}

func (d *databaseSource) Name() string { return d.name }

type databaseEntry struct {
	Database  string          `json:"database"`
	DiskUsage json.RawMessage `json:"disk_usage"`
}

func (d *databaseSource) Collect(ctx context.Context, account cpanel.Account) metrics.SourceResult {
	data, err := d.deps.Client.UAPI(ctx, account.User, d.module, "list_databases")
	if err != nil {
		return resultForError(d.name, account, err)
	}
	if isNull(data) {
		d.deps.Logger.Debug("no databases listed",
			zap.String("source", d.name),
			zap.String("user", account.User),
		)
		return metrics.OK(d.name, account.User, nil, 0)
	}

	var entries []databaseEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return metrics.Failed(d.name, account.User, fmt.Errorf("%w: %v", cpanel.ErrMalformed, err))
	}

	base := baseLabels(account)
	var out []metrics.Measurement
	defects := 0

	for _, entry := range entries {
		if entry.Database == "" {
			defects++
			continue
		}
		usage, ok := cpanel.AsFloat(entry.DiskUsage)
		if !ok {
			usage = 0
			defects++
		}
		out = append(out, metrics.Measurement{
			Name:   d.metric,
			Labels: withLabel(base, "db", entry.Database),
			Value:  usage,
		})
	}

	return metrics.OK(d.name, account.User, out, defects)
}
