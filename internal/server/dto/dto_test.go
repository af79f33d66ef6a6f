package dto

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string { return &s }

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		req    any
		fields []string
	}{
		{"valid register", RegisterRequest{Email: "a@x.com", Name: "Ann", Password: "pw", PasswordConfirm: "pw"}, nil},
		{"register all wrong", RegisterRequest{Email: "nope", Name: "A", Password: "pw", PasswordConfirm: "other"}, []string{"email", "name", "password_confirm"}},
		{"register long name", RegisterRequest{Email: "a@x.com", Name: "abcdefghijklmnopqrstuvwxyzabcdefghijklmnopqrstuvwxyz", Password: "pw", PasswordConfirm: "pw"}, []string{"name"}},
		{"login missing", LoginRequest{}, []string{"email", "password"}},
		{"refresh missing", RefreshRequest{}, []string{"refresh_token"}},
		{"profile nil name", UpdateProfileRequest{}, nil},
		{"profile empty name", UpdateProfileRequest{Name: strPtr("")}, []string{"name"}},
		{"profile short name", UpdateProfileRequest{Name: strPtr("A")}, []string{"name"}},
		{"change mismatch", ChangePasswordRequest{CurrentPassword: "a", NewPassword: "b", NewPasswordConfirm: "c"}, []string{"new_password_confirm"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, f := range Validate(tt.req) {
				got = append(got, f.Field)
			}
			assert.Equal(t, tt.fields, got)
		})
	}
}

func TestValidate_NameCountsRunes(t *testing.T) {
	assert.Empty(t, Validate(UpdateProfileRequest{Name: strPtr("김철")}))
}
