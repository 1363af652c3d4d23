package errors

import (
	"regexp"
	"unicode"
)

// maxIdentifierLength bounds node IDs and public parameter names.
const maxIdentifierLength = 128

// identifierRegex matches node IDs and parameter names: a letter followed by
// letters, digits, dashes or underscores.
var identifierRegex = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]*$`)

// ValidateIdentifier validates a node ID or public parameter name.
// The what argument names the identifier in the error message
// ("node ID", "parameter name").
//
// Identifiers must be non-empty, at most 128 characters, start with a
// letter and contain only letters, digits, dashes and underscores. Proxy
// names ("input", "output") pass this check; the assembler rejects them
// separately because they are reserved.
func ValidateIdentifier(what, name string) error {
	if name == "" {
		return New(ErrCodeInvalidInput, "%s cannot be empty", what)
	}
	if len(name) > maxIdentifierLength {
		return New(ErrCodeInvalidInput, "%s too long (max %d characters)", what, maxIdentifierLength)
	}
	if !identifierRegex.MatchString(name) {
		return New(ErrCodeInvalidInput, "invalid %s: %q", what, name)
	}
	return nil
}

// operationNameRegex matches host operation names such as "gegl:median-blur".
var operationNameRegex = regexp.MustCompile(`^[a-z][a-z0-9]*:[a-z][a-z0-9-]*$`)

// ValidateOperationName checks the "namespace:operation" shape of an
// operation name. It does not check that the operation is registered.
func ValidateOperationName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidInput, "operation name cannot be empty")
	}
	if !operationNameRegex.MatchString(name) {
		return New(ErrCodeInvalidInput, "invalid operation name: %q", name)
	}
	return nil
}

// ValidatePath validates an output or blueprint path.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 500 characters
//   - No null bytes or control characters
//
// Relative paths, including ones that climb with "..", are allowed: the
// paths checked here come from the local user, not from a remote caller.
func ValidatePath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "path cannot be empty")
	}

	const maxPathLength = 500
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidPath, "path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "path contains invalid characters")
		}
	}

	return nil
}
