package loader

import "fmt"

const maxExcerpt = 256

// SourceLoadError is returned when the supergraph could not be retrieved.
type SourceLoadError struct {
	Locator string
	Err     error
}

func (e *SourceLoadError) Error() string {
	return fmt.Sprintf("failed to load supergraph from %q: %v", e.Locator, e.Err)
}

func (e *SourceLoadError) Unwrap() error { return e.Err }

// SourceParseError is returned when the retrieved text is not valid SDL.
// Payload holds the full offending text.
type SourceParseError struct {
	Locator string
	Payload string
	Err     error
}

func (e *SourceParseError) Error() string {
	return fmt.Sprintf("supergraph from %q is not a valid schema document: %v\n%s", e.Locator, e.Err, excerpt(e.Payload))
}

func (e *SourceParseError) Unwrap() error { return e.Err }

// SourceTypeError is returned when the retrieved payload is neither SDL text nor a document.
type SourceTypeError struct {
	Locator   string
	Rendering string
	Err       error
}

func (e *SourceTypeError) Error() string {
	msg := fmt.Sprintf("supergraph from %q is not a schema document: %s", e.Locator, e.Rendering)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SourceTypeError) Unwrap() error { return e.Err }

func excerpt(s string) string {
	if len(s) <= maxExcerpt {
		return s
	}
	return s[:maxExcerpt] + "..."
}
