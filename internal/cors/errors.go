package cors

import (
	"fmt"

	"cors-gateway/internal/config"
)

// A ConflictError is returned when a route's CORS policy differs from the
// policy already registered by a sibling route on the same path.
type ConflictError struct {
	Method string
	Path   string
}

func (err *ConflictError) Error() string {
	const tmpl = "cors: cannot add multiple routes with different CORS options on different methods: %s %s"
	return fmt.Sprintf(tmpl, err.Method, err.Path)
}

// A CompilationError indicates a structurally invalid CORS option. It is the
// error config reports for options of the wrong YAML kind, so one errors.As
// covers decoding and validation.
type CompilationError = config.OptionError
