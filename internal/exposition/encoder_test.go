package exposition

import (
	"errors"
	"strings"
	"testing"
	"time"

	"cpanel_exporter/internal/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSnapshot() *metrics.Snapshot {
	b := metrics.NewBuilder(time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC))
	b.SetAccounts(2)
	b.Add(metrics.OK("statsbar", "bob", []metrics.Measurement{
		{Name: "cpanel_diskusage", Labels: map[string]string{"user": "bob"}, Value: 2048},
	}, 0))
	b.Add(metrics.OK("statsbar", "alice", []metrics.Measurement{
		{Name: "cpanel_diskusage", Labels: map[string]string{"user": "alice"}, Value: 1024},
	}, 1))
	b.Add(metrics.Failed("mysql", "bob", errors.New("exit 1")))
	return b.Build(time.Date(2026, 8, 29, 12, 0, 2, 0, time.UTC))
}

func TestEncodeDeterministic(t *testing.T) {
	snap := sampleSnapshot()
	assert.Equal(t, Encode(snap), Encode(snap))
}

func TestEncodeGroupsAndSorts(t *testing.T) {
	out := string(Encode(sampleSnapshot()))

	assert.Contains(t, out, "# HELP cpanel_diskusage ")
	assert.Contains(t, out, "# TYPE cpanel_diskusage gauge")
	assert.Contains(t, out, "# TYPE cpanel_exporter_source_errors_total counter")
	assert.Contains(t, out, `cpanel_diskusage{user="alice"} 1024`)
	assert.Contains(t, out, `cpanel_diskusage{user="bob"} 2048`)
	assert.Contains(t, out, `cpanel_exporter_source_errors_total{source="mysql",user="bob"} 1`)
	assert.Contains(t, out, `cpanel_exporter_parse_defects_total{source="statsbar",user="alice"} 1`)
	assert.Contains(t, out, "cpanel_exporter_accounts 2")
	assert.Contains(t, out, "cpanel_exporter_scrape_duration_seconds 2")

	// Families appear in name order, series in label order.
	assert.Less(t,
		strings.Index(out, "cpanel_diskusage"),
		strings.Index(out, "cpanel_exporter_accounts"),
	)
	assert.Less(t,
		strings.Index(out, `cpanel_diskusage{user="alice"}`),
		strings.Index(out, `cpanel_diskusage{user="bob"}`),
	)
}

func TestEncodeEscapesLabelValues(t *testing.T) {
	b := metrics.NewBuilder(time.Now())
	b.Add(metrics.OK("statsbar", "alice", []metrics.Measurement{
		{
			Name:   "cpanel_info",
			Labels: map[string]string{"user": "alice", "operatingsystem": "linux \"jessie\"\nback\\slash"},
			Value:  1,
		},
	}, 0))
	out := string(Encode(b.Build(time.Now())))

	assert.Contains(t, out, `operatingsystem="linux \"jessie\"\nback\\slash"`)
}

func TestEncodeEmptySnapshotStillHasScrapeSeries(t *testing.T) {
	b := metrics.NewBuilder(time.Now())
	out := string(Encode(b.Build(time.Now())))

	require.NotEmpty(t, out)
	assert.Contains(t, out, "cpanel_exporter_accounts 0")
	assert.True(t, strings.HasSuffix(out, "\n"))
}
