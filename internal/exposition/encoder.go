// Package exposition renders snapshots into the Prometheus text format.
package exposition

import (
	"bytes"
	"sort"
	"strings"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"cpanel_exporter/internal/metrics"
)

// ContentType is the exposition format content type for HTTP responses.
const ContentType = "text/plain; version=0.0.4; charset=utf-8"

var helpTexts = map[string]string{
	"cpanel_info":                             "Static per-account information from the panel statistics bar.",
	"cpanel_cpu":                              "Account CPU usage reported by the resource-limit subsystem.",
	"cpanel_cpu_percent":                      "Account CPU usage as a percentage of its limit.",
	"cpanel_ep":                               "Account entry processes reported by the resource-limit subsystem.",
	"cpanel_memphy":                           "Account physical memory usage in bytes.",
	"cpanel_memphy_percent":                   "Account physical memory usage as a percentage of its limit.",
	"cpanel_iops":                             "Account IO operations per second.",
	"cpanel_io":                               "Account IO throughput.",
	"cpanel_nproc":                            "Account process count.",
	"cpanel_mysql_db_disk_usage":              "Disk usage of one MySQL database in bytes.",
	"cpanel_postgres_db_disk_usage":           "Disk usage of one PostgreSQL database in bytes.",
	"cpanel_email_disk_usage":                 "Disk usage of one mailbox in bytes.",
	"cpanel_ftp_account_disk_usage":           "Disk usage of one FTP account in bytes.",
	"cpanel_exporter_accounts":                "Number of accounts enumerated in this scrape.",
	"cpanel_exporter_scrape_duration_seconds": "Wall time of this scrape.",
	"cpanel_exporter_source_errors_total":     "Source collections that failed during this scrape.",
	"cpanel_exporter_parse_defects_total":     "Malformed or non-numeric entries skipped during this scrape.",
	"cpanel_exporter_duplicate_series_total":  "Measurements dropped for repeating a (name, labels) pair.",
}

func helpFor(name string) string {
	if help, ok := helpTexts[name]; ok {
		return help
	}
	return "Account statistic " + strings.TrimPrefix(name, "cpanel_") + " from the panel statistics bar."
}

func typeFor(name string) dto.MetricType {
	if strings.HasSuffix(name, "_total") {
		return dto.MetricType_COUNTER
	}
	return dto.MetricType_GAUGE
}

// Encode renders a snapshot as exposition text. Pure and deterministic:
// the same snapshot always yields byte-identical output.
func Encode(snap *metrics.Snapshot) []byte {
	var buf bytes.Buffer
	WriteFamilies(&buf, Families(snap))
	return buf.Bytes()
}

// Families groups a snapshot's measurements into metric families sorted
// by name, each family's series sorted by label signature.
func Families(snap *metrics.Snapshot) []*dto.MetricFamily {
	byName := make(map[string][]metrics.Measurement)
	for _, m := range snap.Measurements {
		byName[m.Name] = append(byName[m.Name], m)
	}

	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)

	families := make([]*dto.MetricFamily, 0, len(names))
	for _, name := range names {
		series := byName[name]
		sort.Slice(series, func(i, j int) bool {
			return metrics.LabelSignature(series[i].Labels) < metrics.LabelSignature(series[j].Labels)
		})

		metricType := typeFor(name)
		fam := &dto.MetricFamily{
			Name: ptr(name),
			Help: ptr(helpFor(name)),
			Type: metricType.Enum(),
		}
		for _, m := range series {
			fam.Metric = append(fam.Metric, toMetric(m, metricType))
		}
		families = append(families, fam)
	}
	return families
}

// WriteFamilies renders metric families as text. Label value escaping
// (backslash, quote, newline) is handled by expfmt.
func WriteFamilies(buf *bytes.Buffer, families []*dto.MetricFamily) {
	for _, fam := range families {
		// Writing to a bytes.Buffer cannot fail.
		_, _ = expfmt.MetricFamilyToText(buf, fam)
	}
}

func toMetric(m metrics.Measurement, metricType dto.MetricType) *dto.Metric {
	labelNames := make([]string, 0, len(m.Labels))
	for name := range m.Labels {
		labelNames = append(labelNames, name)
	}
	sort.Strings(labelNames)

	out := &dto.Metric{}
	for _, name := range labelNames {
		out.Label = append(out.Label, &dto.LabelPair{
			Name:  ptr(name),
			Value: ptr(m.Labels[name]),
		})
	}

	value := m.Value
	if metricType == dto.MetricType_COUNTER {
		out.Counter = &dto.Counter{Value: &value}
	} else {
		out.Gauge = &dto.Gauge{Value: &value}
	}
	return out
}

func ptr[T any](v T) *T { return &v }
