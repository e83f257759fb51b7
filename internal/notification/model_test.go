// internal/notification/model_test.go
package notification

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseType(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Type
		wantErr bool
	}{
		{name: "email", input: "email", want: TypeEmail},
		{name: "push", input: "push", want: TypePush},
		{name: "unknown", input: "sms", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseType(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseStatus(t *testing.T) {
	for _, valid := range []string{"pending", "delivered", "failed"} {
		_, err := ParseStatus(valid)
		assert.NoError(t, err)
	}

	_, err := ParseStatus("sent")
	assert.Error(t, err)
}

func TestStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		name string
		from Status
		to   Status
		want bool
	}{
		{name: "pending to delivered", from: StatusPending, to: StatusDelivered, want: true},
		{name: "pending to failed", from: StatusPending, to: StatusFailed, want: true},
		{name: "pending to pending", from: StatusPending, to: StatusPending, want: false},
		{name: "delivered repeat", from: StatusDelivered, to: StatusDelivered, want: true},
		{name: "failed repeat", from: StatusFailed, to: StatusFailed, want: true},
		{name: "delivered to failed rejected", from: StatusDelivered, to: StatusFailed, want: false},
		{name: "failed to delivered rejected", from: StatusFailed, to: StatusDelivered, want: false},
		{name: "terminal back to pending rejected", from: StatusDelivered, to: StatusPending, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestVariables_Validate(t *testing.T) {
	valid := Variables{Name: "John Doe", Link: "https://example.com/confirm"}
	assert.NoError(t, valid.Validate())

	assert.Error(t, Variables{Name: "", Link: "https://example.com"}.Validate())
	assert.Error(t, Variables{Name: "  ", Link: "https://example.com"}.Validate())
	assert.Error(t, Variables{Name: "John", Link: "not-a-url"}.Validate())
	assert.Error(t, Variables{Name: "John", Link: "ftp://example.com/file"}.Validate())
}

func TestSpec_Validate(t *testing.T) {
	base := func() Spec {
		return Spec{
			Type:         TypeEmail,
			UserID:       "user-001",
			TemplateCode: "welcome",
			Variables:    Variables{Name: "John", Link: "https://example.com"},
			RequestID:    "req-001",
			Priority:     1,
		}
	}

	assert.NoError(t, base().Validate())

	spec := base()
	spec.Priority = 0
	assert.Error(t, spec.Validate())

	spec = base()
	spec.Priority = 11
	assert.Error(t, spec.Validate())

	spec = base()
	spec.RequestID = ""
	assert.Error(t, spec.Validate())

	spec = base()
	spec.UserID = ""
	assert.Error(t, spec.Validate())

	spec = base()
	spec.Type = "sms"
	assert.Error(t, spec.Validate())
}
