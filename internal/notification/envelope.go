// Package notification decodes Connect envelope-event payloads and decides
// which of them the worker fulfills.
package notification

import (
	"encoding/xml"
	"fmt"
)

// Status is the envelope lifecycle status reported by a notification.
// Unknown values decode without error; they are simply never eligible.
type Status string

const (
	StatusCreated   Status = "Created"
	StatusSent      Status = "Sent"
	StatusDelivered Status = "Delivered"
	StatusCompleted Status = "Completed"
	StatusDeclined  Status = "Declined"
	StatusVoided    Status = "Voided"
)

// CustomField is one sender-defined name/value pair on an envelope. Names are
// not unique; lookups take the first match in document order.
type CustomField struct {
	Name  string `xml:"Name"`
	Value string `xml:"Value"`
}

// EnvelopeStatus is the decoded notification: the envelope's identity, its
// lifecycle status, and the custom fields the sender attached.
type EnvelopeStatus struct {
	EnvelopeID   string        `xml:"EnvelopeID"`
	Status       Status        `xml:"Status"`
	Subject      string        `xml:"Subject"`
	UserName     string        `xml:"UserName"`
	Email        string        `xml:"Email"`
	Created      string        `xml:"Created"`
	Completed    string        `xml:"Completed"`
	CustomFields []CustomField `xml:"CustomFields>CustomField"`
}

// CustomField returns the value of the first custom field with the given
// name. The second return reports whether any field matched; a matched field
// may still carry an empty value.
func (e *EnvelopeStatus) CustomField(name string) (string, bool) {
	for _, f := range e.CustomFields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// envelopeInformation is the notification document root. Element matching is
// by local name, so namespaced producer payloads decode the same way.
type envelopeInformation struct {
	XMLName        xml.Name       `xml:"EnvelopeInformation"`
	EnvelopeStatus EnvelopeStatus `xml:"EnvelopeStatus"`
}

// DecodeError reports a payload that can never become processable: malformed
// XML or a document missing the fields every notification must carry.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode notification: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("decode notification: %s", e.Reason)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Decode parses a Connect notification payload into an EnvelopeStatus.
// It returns a *DecodeError when the payload is not well-formed XML, when the
// EnvelopeStatus section is absent, when EnvelopeID or Status is empty, or
// when a Completed envelope is missing its completion timestamp. Retrying a
// payload that fails here can never succeed.
func Decode(data []byte) (*EnvelopeStatus, error) {
	var doc envelopeInformation
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, &DecodeError{Reason: "malformed xml", Err: err}
	}

	env := doc.EnvelopeStatus
	if env.EnvelopeID == "" {
		return nil, &DecodeError{Reason: "missing envelope id"}
	}
	if env.Status == "" {
		return nil, &DecodeError{Reason: "missing envelope status"}
	}
	if env.Status == StatusCompleted && env.Completed == "" {
		return nil, &DecodeError{Reason: "completed envelope missing completion timestamp"}
	}

	return &env, nil
}

// Encode renders an envelope status as a notification document, the inverse
// of Decode. The seeder and fixture tests use it so generated payloads always
// match what the worker parses.
func Encode(env *EnvelopeStatus) ([]byte, error) {
	doc := envelopeInformation{EnvelopeStatus: *env}
	data, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode notification: %w", err)
	}
	return append([]byte(xml.Header), data...), nil
}
