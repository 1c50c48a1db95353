package logging

import "log/slog"

// Common field names for consistent logging across the worker.
const (
	FieldService     = "service"
	FieldEnvelopeID  = "envelope_id"
	FieldBusinessKey = "business_key"
	FieldMessageID   = "message_id"
	FieldSubject     = "subject"
	FieldStatus      = "status"
	FieldPath        = "path"
	FieldError       = "error"
)

// Service returns a slog attribute for the service name.
func Service(name string) slog.Attr {
	return slog.String(FieldService, name)
}

// EnvelopeID returns a slog attribute for an envelope ID.
func EnvelopeID(id string) slog.Attr {
	return slog.String(FieldEnvelopeID, id)
}

// BusinessKey returns a slog attribute for the business key custom field.
func BusinessKey(key string) slog.Attr {
	return slog.String(FieldBusinessKey, key)
}

// MessageID returns a slog attribute for a queue message ID.
func MessageID(id string) slog.Attr {
	return slog.String(FieldMessageID, id)
}

// Subject returns a slog attribute for a broker subject.
func Subject(subject string) slog.Attr {
	return slog.String(FieldSubject, subject)
}

// Status returns a slog attribute for an envelope status.
func Status(status string) slog.Attr {
	return slog.String(FieldStatus, status)
}

// Path returns a slog attribute for a filesystem path.
func Path(path string) slog.Attr {
	return slog.String(FieldPath, path)
}

// Error returns a slog attribute for an error.
func Error(err error) slog.Attr {
	return slog.String(FieldError, err.Error())
}
