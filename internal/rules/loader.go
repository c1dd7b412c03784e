// Package rules loads and validates the governance rule configuration.
//
// A rule document is YAML of the form:
//
//	datasets:
//	  orders:
//	    id_column: order_id
//	    pii_scan: true
//	    allowed_countries: [IN, US]
//	    schema:
//	      order_id: {type: int, required: true}
//	      amount:   {type: float, min: 0}
//	    quality_checks:
//	      - name: country_whitelist
//	        expr: country in allowed_countries
//
// Unknown keys and mistyped values are rejected when the document is loaded,
// so the pipeline only ever sees well-formed rule sets.
package rules

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/v2"
	"github.com/leapstack-labs/leapgov/pkg/core"
)

// DefaultPath is the conventional location of the rule document.
const DefaultPath = "config/rules.yaml"

type rawDocument struct {
	Datasets map[string]*rawRuleSet `koanf:"datasets"`
}

type rawRuleSet struct {
	Schema           map[string]*rawColumn `koanf:"schema"`
	IDColumn         string                `koanf:"id_column"`
	AllowedCountries []string              `koanf:"allowed_countries"`
	QualityChecks    []rawCheck            `koanf:"quality_checks"`
	PIIScan          bool                  `koanf:"pii_scan"`
	Source           string                `koanf:"source"`
	Context          map[string]any        `koanf:"context"`
}

type rawColumn struct {
	Type     string `koanf:"type"`
	Required bool   `koanf:"required"`
	Format   string `koanf:"format"`
	Min      any    `koanf:"min"`
	Max      any    `koanf:"max"`
	Allowed  []any  `koanf:"allowed"`
	Regex    string `koanf:"regex"`
}

type rawCheck struct {
	Name string `koanf:"name"`
	Expr string `koanf:"expr"`
}

// Load reads and validates the rule document at path. A missing or
// unreadable file is an I/O error; a malformed document is a
// *core.ConfigError.
func Load(path string) (*core.RuleConfig, error) {
	data, err := os.ReadFile(path) //nolint:gosec // operator supplied path
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("rule configuration not found: %w", err)
		}
		return nil, fmt.Errorf("failed to read rule configuration: %w", err)
	}
	return Parse(data, path)
}

// Parse validates a YAML rule document. source names the document in errors.
func Parse(data []byte, source string) (*core.RuleConfig, error) {
	parsed, err := yaml.Parser().Unmarshal(data)
	if err != nil {
		return nil, &core.ConfigError{Source: source, Problems: []string{fmt.Sprintf("malformed YAML: %v", err)}}
	}

	k := koanf.New(".")
	if err := k.Load(confmap.Provider(parsed, ""), nil); err != nil {
		return nil, &core.ConfigError{Source: source, Problems: []string{err.Error()}}
	}

	var doc rawDocument
	err = k.UnmarshalWithConf("", &doc, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			ErrorUnused:      true,
			WeaklyTypedInput: false,
			Result:           &doc,
		},
	})
	if err != nil {
		return nil, &core.ConfigError{Source: source, Problems: []string{err.Error()}}
	}

	return build(&doc, source)
}

func build(doc *rawDocument, source string) (*core.RuleConfig, error) {
	cerr := &core.ConfigError{Source: source}
	if doc.Datasets == nil {
		cerr.Add("missing top-level \"datasets\" mapping")
		return nil, cerr
	}

	cfg := &core.RuleConfig{Datasets: make(map[string]*core.RuleSet, len(doc.Datasets))}
	for name, raw := range doc.Datasets {
		if name == "" {
			cerr.Add("dataset with empty name")
			continue
		}
		if raw == nil {
			cerr.Add("dataset %q: empty rule set", name)
			continue
		}
		rs := buildRuleSet(name, raw, cerr)
		cfg.Datasets[name] = rs
	}

	if err := cerr.OrNil(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func buildRuleSet(name string, raw *rawRuleSet, cerr *core.ConfigError) *core.RuleSet {
	if raw.Schema == nil {
		cerr.Add("dataset %q: missing schema", name)
	}

	schema := make(core.Schema, len(raw.Schema))
	for col, rc := range raw.Schema {
		if col == "" {
			cerr.Add("dataset %q: column with empty name", name)
			continue
		}
		if rc == nil {
			rc = &rawColumn{}
		}
		spec, problems := buildColumn(rc)
		for _, p := range problems {
			cerr.Add("dataset %q column %q: %s", name, col, p)
		}
		schema[col] = spec
	}

	checks := make([]core.ExprCheck, 0, len(raw.QualityChecks))
	for i, qc := range raw.QualityChecks {
		if qc.Expr == "" {
			cerr.Add("dataset %q: quality check #%d has no expr", name, i+1)
			continue
		}
		checkName := qc.Name
		if checkName == "" {
			checkName = core.DefaultCheckName
		}
		checks = append(checks, core.ExprCheck{Name: checkName, Expr: qc.Expr})
	}

	for key := range raw.Context {
		if key == "allowed_countries" || key == "df" {
			cerr.Add("dataset %q: context variable %q is reserved", name, key)
		}
	}

	return &core.RuleSet{
		Schema:           schema,
		IDColumn:         raw.IDColumn,
		AllowedCountries: raw.AllowedCountries,
		QualityChecks:    checks,
		PIIScan:          raw.PIIScan,
		Source:           raw.Source,
		Context:          raw.Context,
	}
}
