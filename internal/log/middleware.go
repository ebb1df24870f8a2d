package log

import (
	"context"
	"log/slog"
	"net/http"
)

// ContextKey type for context keys
type ContextKey string

const (
	// LoggerContextKey is the context key for the logger
	LoggerContextKey ContextKey = "logger"
)

// Middleware creates HTTP middleware that adds a logger to the request context
func Middleware(logger *Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), logger)))
		})
	}
}

// NewContext returns ctx carrying logger.
func NewContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, LoggerContextKey, logger)
}

// FromContext extracts a logger from the request context
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(LoggerContextKey).(*Logger); ok {
		return logger
	}
	return &Logger{
		Logger:    slog.Default(),
		component: "unknown",
	}
}

// RequestIDMiddleware adds request ID to logger context
func RequestIDMiddleware(extractRequestID func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := FromContext(r.Context()).With(FieldRequestID, extractRequestID(r))
			next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), logger)))
		})
	}
}

// StructuredLogger provides structured logging methods with context awareness
type StructuredLogger struct {
	logger *Logger
}

func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{logger: logger}
}

// LogExpenseCreated logs a persisted group expense.
func (sl *StructuredLogger) LogExpenseCreated(ctx context.Context, groupID, expenseID string, amountCents int64, method string, participants int) {
	fields := NewFields().
		WithGroupExpense(groupID, expenseID, amountCents).
		WithSplit(method, participants).
		WithOperation(OpCreate).
		WithComponent(ComponentGroup)

	sl.logger.Logger.InfoContext(ctx, "Group expense created", fields.ToSlice()...)
}

// LogPaymentRecorded logs a share payment and whether it settled the share.
func (sl *StructuredLogger) LogPaymentRecorded(ctx context.Context, groupID, expenseID, userID string, amountCents int64, settled bool) {
	fields := NewFields().
		WithGroupExpense(groupID, expenseID, amountCents).
		WithUser(userID).
		WithOperation(OpPayment).
		WithComponent(ComponentGroup)
	fields["settled"] = settled

	sl.logger.Logger.InfoContext(ctx, "Share payment recorded", fields.ToSlice()...)
}

// LogRequestError logs a request that failed for a reason the caller cannot fix.
func (sl *StructuredLogger) LogRequestError(ctx context.Context, r *http.Request, err error) {
	fields := NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, "").
		WithErrorType(ErrorTypeInternal)
	sl.LogError(ctx, "Request failed", err, ComponentHTTP, OpRead, fields)
}

// LogError logs an error with structured context
func (sl *StructuredLogger) LogError(ctx context.Context, msg string, err error, component string, operation string, fields LogFields) {
	if fields == nil {
		fields = NewFields()
	}
	allFields := fields.
		WithError(err).
		WithOperation(operation).
		WithComponent(component)

	sl.logger.Logger.ErrorContext(ctx, msg, allFields.ToSlice()...)
}
