// Package validation checks rendered loops against their plan.
package validation

import "strings"

// Step is a single validation check.
type Step struct {
	Name    string
	Passed  bool
	Details string
}

// Result holds every check run against one output.
type Result struct {
	Steps []Step
}

func (r *Result) add(name string, passed bool, details string) {
	r.Steps = append(r.Steps, Step{Name: name, Passed: passed, Details: details})
}

// IsValid returns true if all checks passed.
func (r *Result) IsValid() bool {
	for _, s := range r.Steps {
		if !s.Passed {
			return false
		}
	}
	return true
}

// Failures returns descriptions of failed checks.
func (r *Result) Failures() []string {
	var failures []string
	for _, s := range r.Steps {
		if !s.Passed {
			failures = append(failures, s.Name+": "+s.Details)
		}
	}
	return failures
}

// String joins the failures, or reports success.
func (r *Result) String() string {
	if f := r.Failures(); len(f) > 0 {
		return strings.Join(f, "; ")
	}
	return "all checks passed"
}
