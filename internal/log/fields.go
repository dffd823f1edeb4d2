package log

// Common field names for structured logging
const (
	FieldComponent      = "component"
	FieldError          = "error"
	FieldErrorType      = "error_type"
	FieldOperation      = "operation"
	FieldSubscriptionID = "subscription_id"
	FieldSubscription   = "subscription"
	FieldFrequency      = "frequency"
	FieldPaymentID      = "payment_id"
	FieldCycle          = "cycle"
	FieldDueDate        = "due_date"
	FieldAmountCents    = "amount_cents"
	FieldReminderKind   = "reminder_kind"
	FieldDaysUntil      = "days_until"
	FieldRunDate        = "run_date"
	FieldDuration       = "duration_ms"
	FieldCacheKey       = "cache_key"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentGenerator = "payment_generator"
	ComponentReminder  = "reminder"
	ComponentStats     = "stats"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentCache     = "cache"
	ComponentBackend   = "backend"
	ComponentCLI       = "cli"
)

// Operations defines standard operation names
const (
	OpGenerate  = "generate"
	OpRemind    = "remind"
	OpDeliver   = "deliver"
	OpAggregate = "aggregate"
	OpInsert    = "insert"
	OpList      = "list"
	OpValidate  = "validate"
	OpShutdown  = "shutdown"
	OpStartup   = "startup"
)

// ErrorTypes defines standard error type categories
const (
	ErrorTypeIntegrity     = "data_integrity_error"
	ErrorTypeTransient     = "transient_store_error"
	ErrorTypeConfiguration = "configuration_error"
	ErrorTypeDelivery      = "delivery_error"
	ErrorTypeInternal      = "internal_error"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithComponent adds component field
func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithErrorType adds the error category
func (f LogFields) WithErrorType(errorType string) LogFields {
	f[FieldErrorType] = errorType
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithSubscription adds subscription-related fields
func (f LogFields) WithSubscription(id int64, name string, frequency string) LogFields {
	f[FieldSubscriptionID] = id
	f[FieldSubscription] = name
	f[FieldFrequency] = frequency
	return f
}

// WithCycle adds billing cycle fields
func (f LogFields) WithCycle(cycle int, dueDate string) LogFields {
	f[FieldCycle] = cycle
	f[FieldDueDate] = dueDate
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
