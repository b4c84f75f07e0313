package schedule

import "fmt"

// ParseError reports a malformed schedule field. Catalog building skips the
// offending entity for the tick instead of aborting the pass.
type ParseError struct {
	Field string
	Value string
	Cause string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("schedule: bad %s %q: %s", e.Field, e.Value, e.Cause)
}
