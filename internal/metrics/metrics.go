package metrics

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Measurement is a single named numeric value with its label set. Values
// of this type are never mutated after creation.
type Measurement struct {
	Name   string
	Labels map[string]string
	Value  float64
}

// LabelSignature returns a canonical representation of a label set,
// usable as a map key and as a deterministic sort key.
func LabelSignature(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte(',')
		}
		fmt.Fprintf(&sb, "%s=%q", k, labels[k])
	}
	return sb.String()
}

// Key identifies a measurement among all measurements of one snapshot.
func (m Measurement) Key() string {
	return m.Name + "{" + LabelSignature(m.Labels) + "}"
}

type ResultKind int

const (
	// ResultOK: the source produced measurements (possibly with per-entry
	// defects).
	ResultOK ResultKind = iota
	// ResultFailed: the source's command or envelope failed outright.
	ResultFailed
	// ResultDisabled: the source is not available for this account or
	// server. Not an error.
	ResultDisabled
)

// SourceResult is the outcome of one source collector against one account.
type SourceResult struct {
	Source       string
	User         string
	Kind         ResultKind
	Measurements []Measurement
	Defects      int
	Err          error
}

func OK(source, user string, measurements []Measurement, defects int) SourceResult {
	return SourceResult{
		Source:       source,
		User:         user,
		Kind:         ResultOK,
		Measurements: measurements,
		Defects:      defects,
	}
}

func Failed(source, user string, err error) SourceResult {
	return SourceResult{
		Source: source,
		User:   user,
		Kind:   ResultFailed,
		Err:    err,
	}
}

func Disabled(source, user string) SourceResult {
	return SourceResult{
		Source: source,
		User:   user,
		Kind:   ResultDisabled,
	}
}

// Snapshot is the complete, immutable result of one scrape cycle,
// including scrape-level counters embedded as ordinary measurements.
type Snapshot struct {
	Start        time.Time
	Duration     time.Duration
	Accounts     int
	SourceErrors int
	Measurements []Measurement
}

// Builder accumulates source results into a snapshot. Not safe for
// concurrent use; the aggregator feeds it after its workers are done.
type Builder struct {
	start        time.Time
	accounts     int
	seen         map[string]struct{}
	measurements []Measurement
	errors       map[[2]string]float64
	defects      map[[2]string]float64
	duplicates   int
}

func NewBuilder(start time.Time) *Builder {
	return &Builder{
		start:   start,
		seen:    make(map[string]struct{}),
		errors:  make(map[[2]string]float64),
		defects: make(map[[2]string]float64),
	}
}

func (b *Builder) SetAccounts(n int) { b.accounts = n }

// Add merges one source result. Successful measurements join the
// snapshot; failures and defects become counters instead of vanishing.
func (b *Builder) Add(res SourceResult) {
	key := [2]string{res.Source, res.User}
	switch res.Kind {
	case ResultFailed:
		b.errors[key]++
	case ResultOK:
		for _, m := range res.Measurements {
			b.add(m)
		}
	}
	if res.Defects > 0 {
		b.defects[key] += float64(res.Defects)
	}
}

func (b *Builder) add(m Measurement) {
	k := m.Key()
	if _, dup := b.seen[k]; dup {
		// The (name, label-set) pair must stay unique within the
		// snapshot; later duplicates are dropped and counted.
		b.duplicates++
		return
	}
	b.seen[k] = struct{}{}
	b.measurements = append(b.measurements, m)
}

// Build appends the scrape-level series and freezes the snapshot.
func (b *Builder) Build(now time.Time) *Snapshot {
	duration := now.Sub(b.start)

	b.add(Measurement{
		Name:  "cpanel_exporter_accounts",
		Value: float64(b.accounts),
	})
	b.add(Measurement{
		Name:  "cpanel_exporter_scrape_duration_seconds",
		Value: duration.Seconds(),
	})

	var totalErrors int
	for key, n := range b.errors {
		totalErrors += int(n)
		b.add(Measurement{
			Name:   "cpanel_exporter_source_errors_total",
			Labels: map[string]string{"source": key[0], "user": key[1]},
			Value:  n,
		})
	}
	for key, n := range b.defects {
		b.add(Measurement{
			Name:   "cpanel_exporter_parse_defects_total",
			Labels: map[string]string{"source": key[0], "user": key[1]},
			Value:  n,
		})
	}
	if b.duplicates > 0 {
		b.add(Measurement{
			Name:  "cpanel_exporter_duplicate_series_total",
			Value: float64(b.duplicates),
		})
	}

	return &Snapshot{
		Start:        b.start,
		Duration:     duration,
		Accounts:     b.accounts,
		SourceErrors: totalErrors,
		Measurements: b.measurements,
	}
}
