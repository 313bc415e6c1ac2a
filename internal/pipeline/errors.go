package pipeline

import (
	"errors"
	"fmt"
	"strings"
)

// Structural failures. These abort the stage that raised them and
// short-circuit the run.
var (
	// ErrSourceUnreadable means a file source could not be decoded with any
	// supported text encoding.
	ErrSourceUnreadable = errors.New("source unreadable with supported encodings")

	// ErrUnsupportedResponseShape means an HTTP source returned JSON in none
	// of the accepted shapes.
	ErrUnsupportedResponseShape = errors.New("unsupported response shape")

	// ErrUnsupportedSource means the source kind is not one of file, query,
	// http.
	ErrUnsupportedSource = errors.New("unsupported source kind")
)

// MissingColumnsError reports required columns absent from a dataset. The
// validator returns it before any row scan.
type MissingColumnsError struct {
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("missing required columns: %s", strings.Join(e.Columns, ", "))
}
