package logger

import (
	"time"
)

// OperationLogger provides structured logging for a multi-stage operation with timing
type OperationLogger struct {
	logger    Logger
	operation string
	fields    Fields
	startTime time.Time
	now       func() time.Time
}

// NewOperationLogger creates a new operation logger
func NewOperationLogger(operation string, logger Logger) *OperationLogger {
	if logger == nil {
		logger = GetGlobalLogger()
	}

	ol := &OperationLogger{
		logger:    logger,
		operation: operation,
		fields:    Fields{"operation": operation},
		now:       time.Now,
	}
	ol.startTime = ol.now()

	ol.logger.WithFields(ol.fields).Debug("Starting operation")
	return ol
}

// WithField adds a field to the operation context
func (ol *OperationLogger) WithField(key string, value interface{}) *OperationLogger {
	ol.fields[key] = value
	return ol
}

func (ol *OperationLogger) merged(extra Fields) Fields {
	out := make(Fields, len(ol.fields)+len(extra))
	for k, v := range ol.fields {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

// Step logs the completion of a named stage together with its counters.
func (ol *OperationLogger) Step(step string, counters Fields) {
	fields := ol.merged(counters)
	fields["step"] = step
	fields["elapsed"] = ol.now().Sub(ol.startTime).String()

	ol.logger.WithFields(fields).Info("Operation step")
}

// Success completes the operation successfully
func (ol *OperationLogger) Success(message string, counters Fields) {
	fields := ol.merged(counters)
	fields["duration"] = ol.now().Sub(ol.startTime).String()
	fields["status"] = "success"

	ol.logger.WithFields(fields).Info(message)
}

// Error completes the operation with an error
func (ol *OperationLogger) Error(err error, message string) {
	fields := ol.merged(nil)
	fields["duration"] = ol.now().Sub(ol.startTime).String()
	fields["status"] = "error"

	ol.logger.WithError(err).WithFields(fields).Error(message)
}

// Warning logs a warning during the operation
func (ol *OperationLogger) Warning(err error, message string) {
	l := ol.logger.WithFields(ol.merged(nil))
	if err != nil {
		l = l.WithError(err)
	}
	l.Warn(message)
}

// TimedOperation executes a function and logs timing information
func TimedOperation(operation string, logger Logger, fn func() error) error {
	ol := NewOperationLogger(operation, logger)

	err := fn()

	if err != nil {
		ol.Error(err, "Operation failed")
	} else {
		ol.Success("Operation completed successfully", nil)
	}

	return err
}
