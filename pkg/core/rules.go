package core

import "sort"

// ExprCheck is a named quality check expressed in the sandboxed expression
// language. It is evaluated per run and never persisted.
type ExprCheck struct {
	Name string `json:"name"`
	Expr string `json:"expr"`
}

// DefaultCheckName is used for quality checks declared without a name.
const DefaultCheckName = "check"

// RuleSet holds everything needed to govern one dataset.
type RuleSet struct {
	Schema           Schema         `json:"schema"`
	IDColumn         string         `json:"id_column,omitempty"`
	AllowedCountries []string       `json:"allowed_countries,omitempty"`
	QualityChecks    []ExprCheck    `json:"quality_checks,omitempty"`
	PIIScan          bool           `json:"pii_scan"`
	Source           string         `json:"source,omitempty"`
	Context          map[string]any `json:"context,omitempty"`
}

// ExprContext returns the variables bound for quality check expressions.
// allowed_countries is always present, possibly empty.
func (r *RuleSet) ExprContext() map[string]any {
	ctx := make(map[string]any, len(r.Context)+1)
	for k, v := range r.Context {
		ctx[k] = v
	}
	countries := make([]any, len(r.AllowedCountries))
	for i, c := range r.AllowedCountries {
		countries[i] = c
	}
	ctx["allowed_countries"] = countries
	return ctx
}

// RuleConfig maps dataset names to their rule sets.
type RuleConfig struct {
	Datasets map[string]*RuleSet `json:"datasets"`
}

// Lookup returns the rule set for a dataset name.
func (c *RuleConfig) Lookup(name string) (*RuleSet, error) {
	if c == nil {
		return nil, &DatasetNotFoundError{Name: name}
	}
	rs, ok := c.Datasets[name]
	if !ok {
		return nil, &DatasetNotFoundError{Name: name, Available: c.Names()}
	}
	return rs, nil
}

// Names returns the configured dataset names in sorted order.
func (c *RuleConfig) Names() []string {
	if c == nil {
		return nil
	}
	names := make([]string, 0, len(c.Datasets))
	for name := range c.Datasets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
