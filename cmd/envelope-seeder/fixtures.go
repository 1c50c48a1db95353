package main

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/esignworks/connect-worker/internal/notification"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Fixtures control what the generated notifications contain.
type Fixtures struct {
	KeyField     string         `yaml:"key_field"`
	ColorField   string         `yaml:"color_field"`
	BusinessKeys []string       `yaml:"business_keys"`
	Colors       []string       `yaml:"colors"`
	Statuses     map[string]int `yaml:"statuses"`

	// weighted expands Statuses into a sampling slice, built once at load.
	weighted []notification.Status
}

// DefaultFixtures returns the built-in generation profile. Field names match
// the worker's default configuration so seeded traffic is eligible out of
// the box.
func DefaultFixtures() *Fixtures {
	return &Fixtures{
		KeyField:   "Sales order",
		ColorField: "Light color",
		Colors:     []string{"green", "red", "blue", "purple"},
		Statuses: map[string]int{
			"Completed": 7,
			"Sent":      2,
			"Declined":  1,
		},
	}
}

// LoadFixtures reads a fixtures file, or returns the defaults when no path
// is given. A path that cannot be read is an error even if it does not
// exist, since the operator asked for that specific file.
func LoadFixtures(path string) (*Fixtures, error) {
	f := DefaultFixtures()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, f); err != nil {
			return nil, fmt.Errorf("failed to parse fixtures file: %w", err)
		}
	}
	f.build()
	return f, nil
}

// build expands the status weights. Names are sorted first so the same seed
// always yields the same status sequence.
func (f *Fixtures) build() {
	names := make([]string, 0, len(f.Statuses))
	for name := range f.Statuses {
		names = append(names, name)
	}
	sort.Strings(names)

	f.weighted = f.weighted[:0]
	for _, name := range names {
		for i := 0; i < f.Statuses[name]; i++ {
			f.weighted = append(f.weighted, notification.Status(name))
		}
	}
	if len(f.weighted) == 0 {
		f.weighted = append(f.weighted, notification.StatusCompleted)
	}
}

// Envelope produces one synthetic envelope status drawn from the fixtures.
func (f *Fixtures) Envelope() *notification.EnvelopeStatus {
	status := f.weighted[gofakeit.Number(0, len(f.weighted)-1)]

	completed := time.Now().UTC().Add(-time.Duration(gofakeit.Number(0, 3600)) * time.Second)
	created := completed.Add(-time.Duration(gofakeit.Number(60, 7200)) * time.Second)

	env := &notification.EnvelopeStatus{
		EnvelopeID: uuid.NewString(),
		Status:     status,
		Subject:    fmt.Sprintf("%s agreement", gofakeit.Company()),
		UserName:   gofakeit.Name(),
		Email:      gofakeit.Email(),
		Created:    created.Format(time.RFC3339),
	}
	if status == notification.StatusCompleted {
		env.Completed = completed.Format(time.RFC3339)
	}

	env.CustomFields = append(env.CustomFields, notification.CustomField{
		Name:  f.KeyField,
		Value: f.businessKey(),
	})
	if len(f.Colors) > 0 {
		env.CustomFields = append(env.CustomFields, notification.CustomField{
			Name:  f.ColorField,
			Value: f.Colors[gofakeit.Number(0, len(f.Colors)-1)],
		})
	}
	return env
}

func (f *Fixtures) businessKey() string {
	if len(f.BusinessKeys) > 0 {
		return f.BusinessKeys[gofakeit.Number(0, len(f.BusinessKeys)-1)]
	}
	return fmt.Sprintf("SO-%d/%s", gofakeit.Number(1000, 9999), gofakeit.RandomString([]string{"A", "B", "C"}))
}
