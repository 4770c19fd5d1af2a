package export

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/template"

	"github.com/de-tools/inventory-atlas/pkg/adapters"
	"github.com/de-tools/inventory-atlas/pkg/models/domain"
)

const (
	FormatText = "text"
	FormatJSON = "json"
)

// Reporter renders command results.
type Reporter interface {
	Run(run domain.Run) error
	// Snapshot prints a snapshot; detailed adds per-resource rows to text
	// output and provider extensions to JSON output.
	Snapshot(s domain.Snapshot, detailed bool) error
	Delta(d domain.Delta) error
	Accuracy(r domain.AccuracyReport) error
	Types(connectionID string, types []domain.ResourceType) error
}

func NewReporter(format string, writer io.Writer) (Reporter, error) {
	switch format {
	case "", FormatText:
		return NewTableReporter(writer), nil
	case FormatJSON:
		return NewJSONReporter(writer), nil
	default:
		return nil, fmt.Errorf("unknown output format %q (want %s or %s)", format, FormatText, FormatJSON)
	}
}

type TableConfig struct {
	NameWidth        int
	ValueWidth       int
	UnitWidth        int
	DescriptionWidth int
}

func DefaultTableConfig() TableConfig {
	return TableConfig{
		NameWidth:        40,
		ValueWidth:       24,
		UnitWidth:        18,
		DescriptionWidth: 40,
	}
}

// TableReporter prints results as fixed-width text tables.
type TableReporter struct {
	writer io.Writer
	config TableConfig
}

func NewTableReporter(writer io.Writer) *TableReporter {
	if writer == nil {
		writer = os.Stdout
	}
	return &TableReporter{
		writer: writer,
		config: DefaultTableConfig(),
	}
}

const runTemplate = `
Run {{.ID}} ({{.ConnectionID}})
Status: {{.Status}}{{if .ErrorCode}} [{{.ErrorCode}}]{{end}}
Started: {{.StartedAt.Format "2006-01-02 15:04:05"}}{{if .FinishedAt}}
Finished: {{.FinishedAt.Format "2006-01-02 15:04:05"}}{{end}}{{if .Error}}
Error: {{.Error}}{{end}}
`

const snapshotTemplate = `
Snapshot {{.RunID}} ({{.Provider}}/{{.ConnectionID}})
Created: {{.Timestamp.Format "2006-01-02 15:04:05"}}
Pricing version: {{.PricingVersion}}
Total per day: {{currency}} {{.Totals.Grand}}

{{separator}}
{{formatRow "Resource type" "Daily cost" "Count" ""}}
{{separator}}
{{range $type, $cost := .Totals.ByType}}{{formatRow $type $cost (index $.Totals.Counts $type) ""}}
{{end}}{{separator}}
{{if $.Resources}}
{{separator}}
{{formatRow "Resource" "Daily cost" "Type" "Name"}}
{{separator}}
{{range .Resources}}{{formatRow .ID .Cost.Total .Type .Name}}
{{end}}{{separator}}
{{end}}{{if .UnresolvedLinks}}
=== Unresolved links ===
{{range .UnresolvedLinks}}- {{.SourceType}}/{{.SourceID}} {{.Attribute}} -> {{.TargetType}}/{{.TargetID}}
{{end}}{{end}}{{if .MissingPricingRules}}
=== Missing pricing rules ===
{{range .MissingPricingRules}}- {{.Provider}}/{{.ResourceType}}
{{end}}{{end}}{{if .MissingResourceTypes}}
=== Resource types not discovered ===
{{range .MissingResourceTypes}}- {{.Type}} [{{.Code}}]: {{.Reason}}
{{end}}{{end}}{{if .Notes}}
=== Notes ===
{{range .Notes}}- {{.Code}}{{if .Type}} ({{.Type}}){{end}}: {{.Message}}
{{end}}{{end}}`

const deltaTemplate = `
Changes since {{if .PreviousRunID}}{{.PreviousRunID}}{{else}}nothing (first snapshot){{end}}
{{if or .Added .Removed .CostChanged}}
{{separator}}
{{formatRow "Resource" "Daily cost" "Type" "Change"}}
{{separator}}
{{range .Added}}{{formatRow .ID "" .Type "added"}}
{{end}}{{range .Removed}}{{formatRow .ID "" .Type "removed"}}
{{end}}{{range .CostChanged}}{{formatRow .ID (printf "%s -> %s" .Previous .Current) .Type "cost changed"}}
{{end}}{{separator}}
{{else}}No changes.
{{end}}`

const accuracyTemplate = `
Accuracy of {{.RunID}} ({{.ConnectionID}}), source: {{.Source}}
Estimated: {{.Estimated}}
Actual: {{.Actual}}
Gap: {{.Gap}}
Accuracy: {{.AccuracyPercent}}%
{{if .ByType}}
{{separator}}
{{formatRow "Resource type" "Estimated / Actual" "Accuracy" "Gap"}}
{{separator}}
{{range .ByType}}{{formatRow .Type (printf "%s / %s" .Estimated .Actual) (percent .AccuracyPercent) .Gap}}
{{end}}{{separator}}
{{end}}`

const typesTemplate = `
Resource types for {{.ConnectionID}}:
{{range .Types}}- {{.}}
{{end}}`

func (c *TableReporter) render(name, text string, data any, funcs template.FuncMap) error {
	funcMap := template.FuncMap{
		"formatRow": func(name, value, unit, desc any) string {
			return fmt.Sprintf("| %-*v | %-*v | %-*v | %-*v |",
				c.config.NameWidth, name,
				c.config.ValueWidth, value,
				c.config.UnitWidth, unit,
				c.config.DescriptionWidth, desc)
		},
		"separator": func() string {
			return fmt.Sprintf("+%s+%s+%s+%s+",
				strings.Repeat("-", c.config.NameWidth+2),
				strings.Repeat("-", c.config.ValueWidth+2),
				strings.Repeat("-", c.config.UnitWidth+2),
				strings.Repeat("-", c.config.DescriptionWidth+2))
		},
		"percent": func(p *string) string {
			if p == nil {
				return "n/a"
			}
			return *p + "%"
		},
	}
	for k, v := range funcs {
		funcMap[k] = v
	}

	t, err := template.New(name).Funcs(funcMap).Parse(text)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}
	return t.Execute(c.writer, data)
}

func (c *TableReporter) Run(run domain.Run) error {
	return c.render("run", runTemplate, adapters.MapRunDomainToApi(run), nil)
}

func (c *TableReporter) Snapshot(s domain.Snapshot, detailed bool) error {
	view := adapters.MapSnapshotDomainToApi(s, false)
	if !detailed {
		view.Resources = nil
	}
	return c.render("snapshot", snapshotTemplate, view, template.FuncMap{
		"currency": func() string { return s.Currency },
	})
}

func (c *TableReporter) Delta(d domain.Delta) error {
	return c.render("delta", deltaTemplate, adapters.MapDeltaDomainToApi(d), nil)
}

func (c *TableReporter) Accuracy(r domain.AccuracyReport) error {
	return c.render("accuracy", accuracyTemplate, adapters.MapAccuracyDomainToApi(r), nil)
}

func (c *TableReporter) Types(connectionID string, types []domain.ResourceType) error {
	return c.render("types", typesTemplate, adapters.MapResourceTypesDomainToApi(connectionID, types), nil)
}

