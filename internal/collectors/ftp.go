package collectors

import (
	"context"
	"encoding/json"
	"fmt"

	"cpanel_exporter/internal/cpanel"
	"cpanel_exporter/internal/metrics"

	"go.uber.org/zap"
)

// Ftp collects per-FTP-account disk usage. The panel reports it in MB;
// the series is normalized to bytes.
type Ftp struct {
	deps *Deps
}

func NewFtp(deps *Deps) *Ftp {
	return &Ftp{deps: deps}
}

func (f *Ftp) Name() string { return "ftp" }

type ftpEntry struct {
	Login    string          `json:"login"`
	DiskUsed json.RawMessage `json:"_diskused"`
}

func (f *Ftp) Collect(ctx context.Context, account cpanel.Account) metrics.SourceResult {
	data, err := f.deps.Client.UAPI(ctx, account.User, "Ftp", "list_ftp_with_disk")
	if err != nil {
		return resultForError(f.Name(), account, err)
	}
	if isNull(data) {
		f.deps.Logger.Debug("no ftp accounts listed", zap.String("user", account.User))
		return metrics.OK(f.Name(), account.User, nil, 0)
	}

	var entries []ftpEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return metrics.Failed(f.Name(), account.User, fmt.Errorf("%w: %v", cpanel.ErrMalformed, err))
	}

	base := baseLabels(account)
	var out []metrics.Measurement
	defects := 0

	for _, entry := range entries {
		if entry.Login == "" {
			defects++
			continue
		}
		usedMB, ok := cpanel.AsFloat(entry.DiskUsed)
		if !ok {
			usedMB = 0
			defects++
		}
		out = append(out, metrics.Measurement{
			Name:   "cpanel_ftp_account_disk_usage",
			Labels: withLabel(base, "ftp_account", entry.Login),
			Value:  usedMB * (1 << 20),
		})
	}

	return metrics.OK(f.Name(), account.User, out, defects)
}
