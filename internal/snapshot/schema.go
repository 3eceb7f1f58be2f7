package snapshot

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ErrInvalidSnapshot is returned when a persisted snapshot does not match the snapshot schema.
var ErrInvalidSnapshot = errors.New("invalid snapshot")

//go:embed schema.json
var schemaJSON []byte

var schemaLoader = gojsonschema.NewBytesLoader(schemaJSON)

// FieldError is a single schema violation.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError lists the schema violations of a snapshot document.
type ValidationError struct {
	Errors []FieldError
}

func (ve *ValidationError) Error() string {
	var sb strings.Builder

	sb.WriteString("snapshot schema validation failed:")

	for i, fe := range ve.Errors {
		fmt.Fprintf(&sb, "\n  %d. %s: %s", i+1, fe.Field, fe.Message)
	}

	return sb.String()
}

// Is lets callers match ErrInvalidSnapshot with errors.Is.
func (ve *ValidationError) Is(target error) bool {
	return target == ErrInvalidSnapshot
}

// maxReportedErrors bounds the violations kept in a ValidationError.
const maxReportedErrors = 20

// ValidateDocument checks raw snapshot JSON against the embedded schema.
func ValidateDocument(doc []byte) error {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}

	if result.Valid() {
		return nil
	}

	verr := &ValidationError{}

	for _, desc := range result.Errors() {
		if len(verr.Errors) == maxReportedErrors {
			break
		}

		field := desc.Field()
		if field == "" {
			field = "(root)"
		}

		verr.Errors = append(verr.Errors, FieldError{Field: field, Message: desc.Description()})
	}

	return verr
}
