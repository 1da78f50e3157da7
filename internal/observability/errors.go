package observability

import (
	"errors"
	"fmt"
	"slices"
)

// AggregateErrors joins the non-nil entries of errList, logs them once through the
// global logger and returns the joined error prefixed with operation.
// It returns nil when every entry is nil.
func AggregateErrors(operation string, errList []error, fields ...Field) error {
	errList = slices.DeleteFunc(slices.Clone(errList), func(err error) bool { return err == nil })
	if len(errList) == 0 {
		return nil
	}
	joined := errors.Join(errList...)
	logFields := append(slices.Clone(fields),
		F("operation", operation),
		F("error_count", len(errList)),
		F("error", joined))
	Log().Error("operation errors", logFields...)
	return fmt.Errorf("%s failed: %w", operation, joined)
}
