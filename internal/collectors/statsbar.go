package collectors

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"cpanel_exporter/internal/cpanel"
	"cpanel_exporter/internal/metrics"

	"go.uber.org/zap"
)

// statsBarDisplay is the field list requested from StatsBar get_stats,
// part of the panel's external contract.
const statsBarDisplay = "bandwidthusage|diskusage|addondomains|autoresponders|cachedlistdiskusage" +
	"|cachedmysqldiskusage|cpanelversion|emailaccounts|emailfilters|emailforwarders|filesusage" +
	"|ftpaccounts|hostingpackage|hostname|kernelversion|machinetype|operatingsystem|mailinglists" +
	"|mysqldatabases|mysqldiskusage|mysqlversion|parkeddomains|perlversion|phpversion|shorthostname" +
	"|sqldatabases|subdomains|cachedpostgresdiskusage|postgresqldatabases|postgresdiskusage"

// byteSizedStats are already reported in bytes; everything else honours
// the per-item units field.
var byteSizedStats = map[string]bool{
	"mysqldiskusage":          true,
	"cachedmysqldiskusage":    true,
	"postgresdiskusage":       true,
	"cachedpostgresdiskusage": true,
}

// StatsBar collects the per-account summary statistics (disk, bandwidth,
// domains, mailboxes, versions...). Numeric items become cpanel_<name>
// series; textual items become labels on a single cpanel_info series.
type StatsBar struct {
	deps *Deps
}

func NewStatsBar(deps *Deps) *StatsBar {
	return &StatsBar{deps: deps}
}

func (s *StatsBar) Name() string { return "statsbar" }

type statsBarItem struct {
	Name    string          `json:"name"`
	Value   json.RawMessage `json:"value"`
	Count   json.RawMessage `json:"_count"`
	Max     json.RawMessage `json:"_max"`
	Units   string          `json:"units"`
	Percent json.RawMessage `json:"percent"`
}

func (s *StatsBar) Collect(ctx context.Context, account cpanel.Account) metrics.SourceResult {
	data, err := s.deps.Client.UAPI(ctx, account.User, "StatsBar", "get_stats", "display="+statsBarDisplay)
	if err != nil {
		return resultForError(s.Name(), account, err)
	}
	if isNull(data) {
		s.deps.Logger.Warn("statsbar returned no data", zap.String("user", account.User))
		return metrics.OK(s.Name(), account.User, nil, 0)
	}

	var items []statsBarItem
	if err := json.Unmarshal(data, &items); err != nil {
		return metrics.Failed(s.Name(), account.User, fmt.Errorf("%w: %v", cpanel.ErrMalformed, err))
	}

	base := baseLabels(account)
	infoLabels := map[string]string{}
	var out []metrics.Measurement
	defects := 0

	for _, item := range items {
		if item.Name == "" {
			defects++
			continue
		}

		value, numeric := cpanel.AsFloat(item.Count)
		if !numeric {
			value, numeric = cpanel.AsFloat(item.Value)
		}
		if !numeric {
			if text, ok := cpanel.AsString(item.Value); ok {
				if item.Name != "diskusage" && item.Name != "bandwidthusage" {
					infoLabels[item.Name] = text
				}
				continue
			}
			defects++
			continue
		}

		if !byteSizedStats[item.Name] {
			switch item.Units {
			case "GB":
				value *= 1 << 30
			case "MB":
				value *= 1 << 20
			}
		}

		out = append(out, metrics.Measurement{
			Name:   "cpanel_" + item.Name,
			Labels: base,
			Value:  value,
		})

		if item.Name == "diskusage" || item.Name == "filesusage" {
			out = append(out, s.quotaSeries(item, value, base)...)
		}
	}

	// One info series per account carrying the textual statistics.
	info := base
	if len(infoLabels) > 0 {
		info = make(map[string]string, len(base)+len(infoLabels))
		for k, v := range infoLabels {
			info[k] = v
		}
		for k, v := range base {
			info[k] = v
		}
	}
	out = append(out, metrics.Measurement{
		Name:   "cpanel_info",
		Labels: info,
		Value:  1,
	})

	return metrics.OK(s.Name(), account.User, out, defects)
}

// quotaSeries derives free/percent series for the quota-bearing stats.
// diskusage reports its maximum in MB, filesusage as a plain count.
func (s *StatsBar) quotaSeries(item statsBarItem, used float64, base map[string]string) []metrics.Measurement {
	maxText, ok := cpanel.AsString(item.Max)
	if !ok || strings.EqualFold(maxText, "unlimited") {
		return nil
	}
	maxValue, err := strconv.ParseFloat(strings.TrimSpace(maxText), 64)
	if err != nil {
		return nil
	}
	if item.Name == "diskusage" {
		maxValue *= 1 << 20
	}

	percent, _ := cpanel.AsFloat(item.Percent)

	return []metrics.Measurement{
		{Name: "cpanel_free_" + item.Name, Labels: base, Value: maxValue - used},
		{Name: "cpanel_free_" + item.Name + "_percent", Labels: base, Value: 100 - percent},
		{Name: "cpanel_" + item.Name + "_percent", Labels: base, Value: percent},
	}
}
