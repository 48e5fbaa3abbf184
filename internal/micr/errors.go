package micr

import "fmt"

// DataError reports a missing or unparseable MICR line. The line itself is
// never included since it carries account data.
type DataError struct {
	// TransactionID identifies the offending transaction when known.
	TransactionID string

	// Reason describes what could not be parsed.
	Reason string

	// Err is an underlying cause such as a decryption failure.
	Err error
}

// Error implements the error interface.
func (e *DataError) Error() string {
	msg := "invalid MICR data: " + e.Reason
	if e.TransactionID != "" {
		msg = fmt.Sprintf("%s (transaction %s)", msg, e.TransactionID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *DataError) Unwrap() error {
	return e.Err
}
