package collectors

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"

	"cpanel_exporter/internal/config"
	"cpanel_exporter/internal/cpanel"
	"cpanel_exporter/internal/metrics"

	"go.uber.org/zap"
)

// Source is one category of per-account usage data. A source owns the
// knowledge of which UAPI module, function and fields belong to it.
type Source interface {
	Name() string
	Collect(ctx context.Context, account cpanel.Account) metrics.SourceResult
}

type Deps struct {
	Client *cpanel.Client
	Logger *zap.Logger
	Config *config.Config
}

// Enabled builds the set of sources allowed by configuration. A disabled
// source is never constructed, so no command is ever spawned for it.
func Enabled(deps *Deps) []Source {
	enabled := deps.Config.Sources

	var sources []Source
	if enabled.Statsbar {
		sources = append(sources, NewStatsBar(deps))
	}
	if enabled.ResourceUsage {
		sources = append(sources, NewResourceUsage(deps))
	}
	if enabled.Mysql {
		sources = append(sources, NewMysql(deps))
	}
	if enabled.Postgres {
		sources = append(sources, NewPostgres(deps))
	}
	if enabled.Email {
		sources = append(sources, NewEmail(deps))
	}
	if enabled.Ftp {
		sources = append(sources, NewFtp(deps))
	}
	return sources
}

// resultForError maps a client failure into a source result without
// amplification: a panel-reported "feature unavailable" is the disabled
// state, everything else is a counted failure.
func resultForError(source string, account cpanel.Account, err error) metrics.SourceResult {
	var apiErr *cpanel.APIError
	if errors.As(err, &apiErr) && apiErr.FeatureUnavailable() {
		return metrics.Disabled(source, account.User)
	}
	return metrics.Failed(source, account.User, err)
}

// baseLabels is the label set every per-account series carries.
func baseLabels(account cpanel.Account) map[string]string {
	return map[string]string{
		"user":   account.User,
		"domain": account.Domain,
		"ip":     account.IP,
	}
}

func withLabel(base map[string]string, key, value string) map[string]string {
	labels := make(map[string]string, len(base)+1)
	for k, v := range base {
		labels[k] = v
	}
	labels[key] = value
	return labels
}

var jsonNull = []byte("null")

// isNull reports whether a data payload is absent. The panel answers
// "no entries" with a null data field rather than an empty list.
func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), jsonNull)
}
