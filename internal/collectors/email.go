package collectors

import (
	"context"
	"encoding/json"
	"fmt"

	"cpanel_exporter/internal/cpanel"
	"cpanel_exporter/internal/metrics"

	"go.uber.org/zap"
)

// Email collects per-mailbox disk usage (bytes).
type Email struct {
	deps *Deps
}

func NewEmail(deps *Deps) *Email {
	return &Email{deps: deps}
}

func (e *Email) Name() string { return "email" }

type mailboxEntry struct {
	Email    string          `json:"email"`
	DiskUsed json.RawMessage `json:"_diskused"`
}

func (e *Email) Collect(ctx context.Context, account cpanel.Account) metrics.SourceResult {
	data, err := e.deps.Client.UAPI(ctx, account.User, "Email", "list_pops_with_disk")
	if err != nil {
		return resultForError(e.Name(), account, err)
	}
	if isNull(data) {
		e.deps.Logger.Debug("no mailboxes listed", zap.String("user", account.User))
		return metrics.OK(e.Name(), account.User, nil, 0)
	}

	var entries []mailboxEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return metrics.Failed(e.Name(), account.User, fmt.Errorf("%w: %v", cpanel.ErrMalformed, err))
	}

	base := baseLabels(account)
	var out []metrics.Measurement
	defects := 0

	for _, entry := range entries {
		if entry.Email == "" {
			defects++
			continue
		}
		used, ok := cpanel.AsFloat(entry.DiskUsed)
		if !ok {
			used = 0
			defects++
		}
		out = append(out, metrics.Measurement{
			Name:   "cpanel_email_disk_usage",
			Labels: withLabel(base, "email", entry.Email),
			Value:  used,
		})
	}

	return metrics.OK(e.Name(), account.User, out, defects)
}
