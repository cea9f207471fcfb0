package mnemosyne

import "fmt"

// AuditError indicates a failure in the audit subsystem. It is internal and
// non-fatal: nothing in the request path ever sees it, only the admin read
// API and operators do.
type AuditError struct {
	Message string
	Cause   error
}

func (e *AuditError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("audit failed: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("audit failed: %s", e.Message)
}

func (e *AuditError) Unwrap() error {
	return e.Cause
}
