// Package rules holds the ordered table of destructive-operation
// patterns used by the schema guard. The table is data-driven so the rule
// set can be tested and extended without touching gateway control flow.
package rules

import (
	"fmt"
	"regexp"
)

// Severity classifies how destructive a matched operation is.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
)

// Rule is a single destructive-operation pattern.
type Rule struct {
	Pattern     *regexp.Regexp
	Description string
	Severity    Severity
}

// Spec is the serializable form of a rule, used for config-file
// extensions of the default table.
type Spec struct {
	Pattern     string   `yaml:"pattern"`
	Description string   `yaml:"description"`
	Severity    Severity `yaml:"severity"`
}

// Table is an ordered list of rules. First match wins.
type Table struct {
	rules []Rule
}

// DefaultRules returns the built-in destructive-operation rule set.
// All patterns are case-insensitive.
func DefaultRules() []Rule {
	return []Rule{
		{
			Pattern:     regexp.MustCompile(`(?i)\bDROP\s+TABLE\b`),
			Description: "full table drop",
			Severity:    SeverityCritical,
		},
		{
			Pattern:     regexp.MustCompile(`(?i)\bDROP\s+DATABASE\b`),
			Description: "database drop",
			Severity:    SeverityCritical,
		},
		{
			Pattern:     regexp.MustCompile(`(?i)\bDROP\s+SCHEMA\b`),
			Description: "schema drop",
			Severity:    SeverityCritical,
		},
		{
			Pattern:     regexp.MustCompile(`(?i)\bTRUNCATE\s+TABLE\b`),
			Description: "table truncate",
			Severity:    SeverityCritical,
		},
		{
			Pattern:     regexp.MustCompile(`(?i)\bDELETE\s+FROM\s+\S+\s*;?\s*$`),
			Description: "unqualified bulk delete",
			Severity:    SeverityHigh,
		},
		{
			Pattern:     regexp.MustCompile(`(?i)\bALTER\s+DATABASE\b`),
			Description: "database-level alter",
			Severity:    SeverityHigh,
		},
	}
}

// NewTable builds a rule table from the built-in rules followed by any
// extension specs. Extension patterns are compiled case-insensitive.
func NewTable(extensions []Spec) (*Table, error) {
	rules := DefaultRules()
	for _, spec := range extensions {
		re, err := regexp.Compile("(?i)" + spec.Pattern)
		if err != nil {
			return nil, fmt.Errorf("compile rule %q: %w", spec.Pattern, err)
		}
		sev := spec.Severity
		if sev == "" {
			sev = SeverityHigh
		}
		rules = append(rules, Rule{Pattern: re, Description: spec.Description, Severity: sev})
	}
	return &Table{rules: rules}, nil
}

// DefaultTable returns a table with only the built-in rules.
func DefaultTable() *Table {
	return &Table{rules: DefaultRules()}
}

// Match tests the operation text against the table in order and returns
// the first matching rule.
func (t *Table) Match(operation string) (*Rule, bool) {
	for i := range t.rules {
		if t.rules[i].Pattern.MatchString(operation) {
			return &t.rules[i], true
		}
	}
	return nil, false
}

// Len returns the number of rules in the table.
func (t *Table) Len() int { return len(t.rules) }
