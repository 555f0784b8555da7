package logging

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Operation names a pipeline step in logs and errors, e.g. "pipeline.select".
type Operation string

// OperationError ties a failure to the pipeline operation and request that
// produced it.
type OperationError struct {
	Operation Operation
	RequestID string
	Err       error
}

func (e *OperationError) Error() string {
	if e == nil || e.Err == nil {
		return ""
	}
	if e.RequestID == "" {
		return fmt.Sprintf("%s: %v", e.Operation, e.Err)
	}
	return fmt.Sprintf("%s [request %s]: %v", e.Operation, e.RequestID, e.Err)
}

func (e *OperationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Fields returns the zap fields describing where the error occurred.
func (e *OperationError) Fields() []zap.Field {
	fields := []zap.Field{zap.String("operation", string(e.Operation))}
	if e.RequestID != "" {
		fields = append(fields, zap.String("request_id", e.RequestID))
	}
	return append(fields, zap.Error(e.Err))
}

// NewOperationError wraps err for op. A nil err stays nil.
func NewOperationError(op Operation, requestID string, err error) error {
	if err == nil {
		return nil
	}
	return &OperationError{Operation: op, RequestID: requestID, Err: err}
}

// ErrorFields returns the operation fields of err when it carries them and a
// plain error field otherwise.
func ErrorFields(err error) []zap.Field {
	var opErr *OperationError
	if errors.As(err, &opErr) {
		return opErr.Fields()
	}
	return []zap.Field{zap.Error(err)}
}
