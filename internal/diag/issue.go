package diag

import "fmt"

// Severity classifies how serious an issue is for the caller.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Issue is a single structured diagnostic produced by validation or
// compilation. Issues are returned as data, never raised: the caller decides
// what to do with them.
type Issue struct {
	Severity Severity `json:"severity"`
	Code     string   `json:"code"`
	Message  string   `json:"message"`
	Path     string   `json:"path,omitempty"`
}

// Errorf builds an error-severity issue with a formatted message.
func Errorf(code, path, format string, args ...interface{}) Issue {
	return Issue{Severity: SeverityError, Code: code, Path: path, Message: fmt.Sprintf(format, args...)}
}

// Warnf builds a warning-severity issue with a formatted message.
func Warnf(code, path, format string, args ...interface{}) Issue {
	return Issue{Severity: SeverityWarning, Code: code, Path: path, Message: fmt.Sprintf(format, args...)}
}

// List is an ordered collection of issues. Validation passes append to a
// list instead of stopping at the first violation so a caller can fix
// everything in one round trip.
type List []Issue

// HasErrors reports whether any issue in the list is error severity.
func (l List) HasErrors() bool {
	for _, is := range l {
		if is.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Errors counts error-severity issues.
func (l List) Errors() int {
	n := 0
	for _, is := range l {
		if is.Severity == SeverityError {
			n++
		}
	}
	return n
}

// Warnings counts warning-severity issues.
func (l List) Warnings() int {
	n := 0
	for _, is := range l {
		if is.Severity == SeverityWarning {
			n++
		}
	}
	return n
}

// Messages flattens the list into human-readable strings, one per issue.
func (l List) Messages() []string {
	out := make([]string, 0, len(l))
	for _, is := range l {
		if is.Path != "" {
			out = append(out, fmt.Sprintf("%s at '%s': %s", is.Code, is.Path, is.Message))
		} else {
			out = append(out, fmt.Sprintf("%s: %s", is.Code, is.Message))
		}
	}
	return out
}
