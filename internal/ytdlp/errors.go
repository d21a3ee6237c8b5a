package ytdlp

import "fmt"

// FailureCode identifies why an extraction failed.
type FailureCode string

const (
	CodeInvalidURL        FailureCode = "invalid_url"
	CodeIdentifierMissing FailureCode = "identifier_missing"
	CodeTimeout           FailureCode = "timeout"
	CodeProcessError      FailureCode = "process_error"
	CodeOutputMissing     FailureCode = "output_missing"
)

// ExtractError is the terminal failure of one extraction job. Extraction is
// never retried internally; retry policy belongs to the caller.
type ExtractError struct {
	Code   FailureCode
	Detail string
}

func (e *ExtractError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("extraction failed: %s", e.Code)
	}
	return fmt.Sprintf("extraction failed: %s: %s", e.Code, e.Detail)
}
