package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func find(snap *Snapshot, name string, labels map[string]string) (Measurement, bool) {
	want := Measurement{Name: name, Labels: labels}.Key()
	for _, m := range snap.Measurements {
		if m.Key() == want {
			return m, true
		}
	}
	return Measurement{}, false
}

func TestLabelSignatureIsOrderIndependent(t *testing.T) {
	a := LabelSignature(map[string]string{"user": "bob", "db": "bob_wp"})
	b := LabelSignature(map[string]string{"db": "bob_wp", "user": "bob"})
	assert.Equal(t, a, b)

	assert.NotEqual(t,
		LabelSignature(map[string]string{"user": "bob"}),
		LabelSignature(map[string]string{"user": "alice"}),
	)
	assert.Empty(t, LabelSignature(nil))
}

func TestBuilderMergesResults(t *testing.T) {
	start := time.Now()
	b := NewBuilder(start)
	b.SetAccounts(2)

	b.Add(OK("statsbar", "alice", []Measurement{
		{Name: "cpanel_diskusage", Labels: map[string]string{"user": "alice"}, Value: 100},
	}, 0))
	b.Add(OK("mysql", "alice", []Measurement{
		{Name: "cpanel_mysql_db_disk_usage", Labels: map[string]string{"user": "alice", "db": "a_wp"}, Value: 5},
	}, 2))
	b.Add(Failed("resource_usage", "bob", errors.New("exit 1")))

	snap := b.Build(start.Add(time.Second))

	assert.Equal(t, 2, snap.Accounts)
	assert.Equal(t, 1, snap.SourceErrors)
	assert.Equal(t, time.Second, snap.Duration)

	_, ok := find(snap, "cpanel_diskusage", map[string]string{"user": "alice"})
	assert.True(t, ok)

	m, ok := find(snap, "cpanel_exporter_source_errors_total", map[string]string{"source": "resource_usage", "user": "bob"})
	require.True(t, ok)
	assert.Equal(t, float64(1), m.Value)

	m, ok = find(snap, "cpanel_exporter_parse_defects_total", map[string]string{"source": "mysql", "user": "alice"})
	require.True(t, ok)
	assert.Equal(t, float64(2), m.Value)

	m, ok = find(snap, "cpanel_exporter_accounts", nil)
	require.True(t, ok)
	assert.Equal(t, float64(2), m.Value)

	m, ok = find(snap, "cpanel_exporter_scrape_duration_seconds", nil)
	require.True(t, ok)
	assert.Equal(t, 1.0, m.Value)
}

func TestBuilderDisabledSourceIsNotAnError(t *testing.T) {
	b := NewBuilder(time.Now())
	b.Add(Disabled("postgres", "alice"))

	snap := b.Build(time.Now())
	assert.Zero(t, snap.SourceErrors)
	_, ok := find(snap, "cpanel_exporter_source_errors_total", map[string]string{"source": "postgres", "user": "alice"})
	assert.False(t, ok)
}

func TestBuilderDropsDuplicateSeries(t *testing.T) {
	b := NewBuilder(time.Now())
	labels := map[string]string{"user": "alice"}
	b.Add(OK("statsbar", "alice", []Measurement{
		{Name: "cpanel_diskusage", Labels: labels, Value: 1},
		{Name: "cpanel_diskusage", Labels: labels, Value: 2},
	}, 0))

	snap := b.Build(time.Now())

	m, ok := find(snap, "cpanel_diskusage", labels)
	require.True(t, ok)
	assert.Equal(t, float64(1), m.Value, "first occurrence wins")

	m, ok = find(snap, "cpanel_exporter_duplicate_series_total", nil)
	require.True(t, ok)
	assert.Equal(t, float64(1), m.Value)

	// Uniqueness is a hard invariant of the snapshot.
	seen := map[string]struct{}{}
	for _, m := range snap.Measurements {
		_, dup := seen[m.Key()]
		require.False(t, dup, "duplicate series %s", m.Key())
		seen[m.Key()] = struct{}{}
	}
}

func TestBuilderAlwaysProducesSnapshot(t *testing.T) {
	b := NewBuilder(time.Now())
	b.SetAccounts(3)
	for _, user := range []string{"a", "b", "c"} {
		b.Add(Failed("statsbar", user, errors.New("boom")))
	}

	snap := b.Build(time.Now())
	require.NotNil(t, snap)
	assert.Equal(t, 3, snap.SourceErrors)

	_, ok := find(snap, "cpanel_exporter_accounts", nil)
	assert.True(t, ok)
}
