package collectors

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"cpanel_exporter/internal/cpanel"
	"cpanel_exporter/internal/metrics"

	"go.uber.org/zap"
)

// lveStats maps the resource-limit subsystem's ids to metric suffixes.
// Other ids in the response are ignored.
var lveStats = map[string]string{
	"lvecpu":    "cpu",
	"lveep":     "ep",
	"lvememphy": "memphy",
	"lveiops":   "iops",
	"lveio":     "io",
	"lvenproc":  "nproc",
}

// percentStats additionally expose usage as a percentage of the limit.
var percentStats = map[string]bool{
	"lvecpu":    true,
	"lvememphy": true,
}

// ResourceUsage collects CPU, memory, IO and process-count usage from the
// panel's resource-limit subsystem (CloudLinux LVE).
type ResourceUsage struct {
	deps *Deps
}

func NewResourceUsage(deps *Deps) *ResourceUsage {
	return &ResourceUsage{deps: deps}
}

func (r *ResourceUsage) Name() string { return "resource_usage" }

type resourceUsageEntry struct {
	ID      string          `json:"id"`
	Usage   json.RawMessage `json:"usage"`
	Maximum json.RawMessage `json:"maximum"`
}

func (r *ResourceUsage) Collect(ctx context.Context, account cpanel.Account) metrics.SourceResult {
	data, err := r.deps.Client.UAPI(ctx, account.User, "ResourceUsage", "get_usages")
	if err != nil {
		return resultForError(r.Name(), account, err)
	}
	if isNull(data) {
		r.deps.Logger.Warn("no resource usage data", zap.String("user", account.User))
		return metrics.OK(r.Name(), account.User, nil, 0)
	}

	var entries []resourceUsageEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return metrics.Failed(r.Name(), account.User, fmt.Errorf("%w: %v", cpanel.ErrMalformed, err))
	}

	base := baseLabels(account)
	var out []metrics.Measurement
	defects := 0

	for _, entry := range entries {
		suffix, tracked := lveStats[entry.ID]
		if !tracked {
			continue
		}

		usage, ok := cpanel.AsFloat(entry.Usage)
		if !ok {
			// Missing or non-numeric usage coerces to zero, counted as
			// a defect rather than failing the source.
			usage = 0
			defects++
		}

		if percentStats[entry.ID] {
			if maximum, ok := cpanel.AsFloat(entry.Maximum); ok && maximum > 0 {
				percent := math.Round(usage/maximum*100*100) / 100
				out = append(out, metrics.Measurement{
					Name:   "cpanel_" + suffix + "_percent",
					Labels: base,
					Value:  percent,
				})
			}
		}

		out = append(out, metrics.Measurement{
			Name:   "cpanel_" + suffix,
			Labels: base,
			Value:  usage,
		})
	}

	return metrics.OK(r.Name(), account.User, out, defects)
}
