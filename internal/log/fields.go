package log

// Standard field names for structured logging
const (
	FieldComponent       = "component"
	FieldError           = "error"
	FieldDuration        = "duration_ms"
	FieldRequestID       = "request_id"
	FieldMethod          = "method"
	FieldPath            = "path"
	FieldStatusCode      = "status_code"
	FieldRemoteAddr      = "remote_addr"
	FieldAccountID       = "account_id"
	FieldAccountName     = "account_name"
	FieldTransactionID   = "transaction_id"
	FieldTransactionType = "transaction_type"
	FieldAmountCents     = "amount_cents"
	FieldFilePath        = "file_path"
	FieldEvent           = "event"
	FieldQueue           = "queue"
	FieldExchange        = "exchange"
	FieldCount           = "count"
)

// Component names
const (
	ComponentApp     = "app"
	ComponentHTTP    = "http"
	ComponentStorage = "storage"
	ComponentLedger  = "ledger"
	ComponentExport  = "export"
	ComponentAMQP    = "amqp"
	ComponentBlob    = "blob"
	ComponentSession = "session"
)
