package notification

import "regexp"

// nonWord matches every character that may not appear in an artifact file
// name derived from a business key.
var nonWord = regexp.MustCompile(`[^0-9A-Za-z_]`)

// Sanitize maps a business key to a filesystem-safe form by replacing each
// character outside [0-9A-Za-z_] with an underscore. It is total and
// deterministic: equal keys always produce equal names.
func Sanitize(key string) string {
	return nonWord.ReplaceAllString(key, "_")
}

// Filter decides which decoded notifications the worker fulfills and pulls
// out the custom-field values fulfillment needs. Field names are exact-match
// and case-sensitive; repeated names resolve to the first occurrence.
type Filter struct {
	// BusinessKeyField is the custom field naming the order the envelope
	// belongs to. An envelope without it is not fulfilled.
	BusinessKeyField string

	// ColorField is the optional custom field driving color actuation.
	ColorField string
}

// NewFilter constructs a Filter for the given custom field names.
func NewFilter(businessKeyField, colorField string) *Filter {
	return &Filter{
		BusinessKeyField: businessKeyField,
		ColorField:       colorField,
	}
}

// BusinessKey returns the envelope's business key, if any field carries it.
func (f *Filter) BusinessKey(env *EnvelopeStatus) (string, bool) {
	return env.CustomField(f.BusinessKeyField)
}

// Color returns the envelope's color value, if any field carries it.
func (f *Filter) Color(env *EnvelopeStatus) (string, bool) {
	if f.ColorField == "" {
		return "", false
	}
	return env.CustomField(f.ColorField)
}

// Eligible reports whether the notification should be fulfilled: the
// envelope has completed and carries a non-empty business key. Everything
// else is acknowledged and dropped.
func (f *Filter) Eligible(env *EnvelopeStatus) bool {
	if env.Status != StatusCompleted {
		return false
	}
	key, ok := f.BusinessKey(env)
	return ok && key != ""
}
