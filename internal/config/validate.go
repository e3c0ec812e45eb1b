package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"gpetl/internal/storage"
	"gpetl/internal/transform"
)

// IssueSeverity is the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError blocks execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is reported but does not block.
	SeverityWarning IssueSeverity = "warning"
)

// Issue is one validation finding. Path is the dotted koanf path, e.g.
// "olap.strategy".
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

var (
	sqlKinds      = []string{"duckdb", "mssql", "mysql", "postgres", "sqlite"}
	documentKinds = []string{"badger", "mongo", "redis"}
	metricKinds   = []string{"", "none", "prometheus", "datadog"}
	logFormats    = []string{"", "console", "json"}
	logLevels     = []string{"", "trace", "debug", "info", "warn", "warning", "error", "disabled", "off"}
)

// ValidateConfig lints c without mutating it.
func ValidateConfig(c Config) []Issue {
	var issues []Issue
	if strings.TrimSpace(c.Job) == "" {
		issues = append(issues, Issue{SeverityError, "job", "job must not be empty; it labels logs and metrics"})
	}
	issues = append(issues, validateSource("source", c.Source)...)
	issues = append(issues, validateOLAP(c.OLAP)...)
	issues = append(issues, validateDocuments(c.Documents)...)
	issues = append(issues, validateReport(c)...)
	issues = append(issues, validateMetrics(c.Metrics)...)
	issues = append(issues, validateLogging(c.Logging)...)
	return issues
}

// Errors joins the error-severity issues, or returns nil.
func Errors(issues []Issue) error {
	var errs []error
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			errs = append(errs, iss)
		}
	}
	return errors.Join(errs...)
}

func validateKind(path, kind string, known []string) []Issue {
	if strings.TrimSpace(kind) == "" {
		return []Issue{{SeverityError, path, path + " must not be empty"}}
	}
	if !slices.Contains(known, kind) {
		msg := fmt.Sprintf("unknown kind %q; known: %s", kind, strings.Join(known, ", "))
		if slices.Contains(known, strings.ToLower(strings.TrimSpace(kind))) {
			msg += " (kinds are lowercase)"
		}
		return []Issue{{SeverityError, path, msg}}
	}
	return nil
}

func validateSource(prefix string, s SourceConfig) []Issue {
	issues := validateKind(prefix+".kind", s.Kind, sqlKinds)
	if len(issues) > 0 {
		return issues
	}
	if strings.TrimSpace(s.DSN) == "" {
		sev := SeverityError
		msg := "dsn must not be empty"
		if strings.EqualFold(s.Kind, "duckdb") {
			sev, msg = SeverityWarning, "empty dsn opens an empty in-memory duckdb database"
		}
		issues = append(issues, Issue{sev, prefix + ".dsn", msg})
	}
	for name, q := range s.Queries {
		if strings.TrimSpace(q) == "" {
			issues = append(issues, Issue{SeverityError, prefix + ".queries." + name, "query override must not be empty"})
		}
	}
	return issues
}

func validateStrategy(path, s string) (storage.Strategy, []Issue) {
	st, err := storage.ParseStrategy(s)
	if err != nil {
		return "", []Issue{{SeverityError, path, err.Error()}}
	}
	return st, nil
}

func validateOLAP(o OLAPConfig) []Issue {
	issues := validateKind("olap.kind", o.Kind, sqlKinds)
	if len(issues) == 0 && strings.TrimSpace(o.DSN) == "" && !strings.EqualFold(o.Kind, "duckdb") {
		issues = append(issues, Issue{SeverityError, "olap.dsn", "dsn must not be empty"})
	}
	_, si := validateStrategy("olap.strategy", o.Strategy)
	issues = append(issues, si...)
	if o.BatchSize < 0 {
		issues = append(issues, Issue{SeverityError, "olap.batch_size", "batch_size must be >= 0 (0 uses the default)"})
	}

	names := map[string]string{
		"olap.tables.fact":     o.Tables.Fact,
		"olap.tables.practice": o.Tables.Practice,
		"olap.tables.patient":  o.Tables.Patient,
	}
	seen := map[string]string{}
	for _, path := range []string{"olap.tables.fact", "olap.tables.practice", "olap.tables.patient"} {
		n := strings.ToLower(strings.TrimSpace(names[path]))
		if n == "" {
			issues = append(issues, Issue{SeverityError, path, "table name must not be empty"})
			continue
		}
		if prev, ok := seen[n]; ok {
			issues = append(issues, Issue{SeverityError, path, fmt.Sprintf("table %q already used by %s", names[path], prev)})
			continue
		}
		seen[n] = path
	}
	return issues
}

func validateDocuments(d DocumentsConfig) []Issue {
	issues := validateKind("documents.kind", d.Kind, documentKinds)
	kind := strings.ToLower(d.Kind)
	switch kind {
	case "mongo", "redis":
		if strings.TrimSpace(d.URI) == "" {
			issues = append(issues, Issue{SeverityError, "documents.uri", kind + " requires a uri"})
		}
	case "badger":
		if strings.TrimSpace(d.Path) == "" {
			issues = append(issues, Issue{SeverityWarning, "documents.path", "empty path keeps badger in memory; documents are lost on exit"})
		}
	}
	if strings.TrimSpace(d.Collection) == "" {
		issues = append(issues, Issue{SeverityError, "documents.collection", "collection must not be empty"})
	}
	st, si := validateStrategy("documents.strategy", d.Strategy)
	issues = append(issues, si...)
	if st == storage.StrategyAppend && (kind == "badger" || kind == "redis") {
		issues = append(issues, Issue{SeverityError, "documents.strategy", kind + " is keyed by patient id and does not support append"})
	}
	if _, err := transform.ParseConflictPolicy(d.ConflictPolicy); err != nil {
		issues = append(issues, Issue{SeverityError, "documents.conflict_policy", err.Error()})
	}
	return issues
}

func validateReport(c Config) []Issue {
	var issues []Issue
	if strings.TrimSpace(c.Report.Source.Kind) != "" {
		issues = append(issues, validateSource("report.source", c.Report.Source)...)
	}
	r := c.Report
	if r.XLSX == "" && r.PDF == "" {
		issues = append(issues, Issue{SeverityWarning, "report", "neither report.xlsx nor report.pdf is set; the summary is only logged"})
	}
	seen := map[int64]bool{}
	for _, cat := range r.Categories {
		if seen[cat] {
			issues = append(issues, Issue{SeverityWarning, "report.categories", fmt.Sprintf("category %d listed twice", cat)})
		}
		seen[cat] = true
	}
	return issues
}

func validateMetrics(m MetricsConfig) []Issue {
	b := strings.ToLower(strings.TrimSpace(m.Backend))
	if !slices.Contains(metricKinds, b) {
		return []Issue{{SeverityError, "metrics.backend", fmt.Sprintf("unknown metrics backend %q", m.Backend)}}
	}
	switch b {
	case "prometheus":
		if m.PushgatewayURL == "" {
			return []Issue{{SeverityError, "metrics.pushgateway_url", "prometheus backend requires pushgateway_url"}}
		}
	case "datadog":
		if m.DatadogAddr == "" {
			return []Issue{{SeverityError, "metrics.datadog_addr", "datadog backend requires datadog_addr"}}
		}
	}
	return nil
}

func validateLogging(l LoggingConfig) []Issue {
	var issues []Issue
	if !slices.Contains(logLevels, strings.ToLower(strings.TrimSpace(l.Level))) {
		issues = append(issues, Issue{SeverityWarning, "logging.level", fmt.Sprintf("unknown level %q; using info", l.Level)})
	}
	if !slices.Contains(logFormats, strings.ToLower(l.Format)) {
		issues = append(issues, Issue{SeverityWarning, "logging.format", fmt.Sprintf("unknown format %q; using console", l.Format)})
	}
	return issues
}
