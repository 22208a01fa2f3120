package steamguard

import (
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
)

func TestResolveCodeEmptySecret(t *testing.T) {
	code, err := ResolveCode("")
	if err != nil {
		t.Fatalf("ResolveCode() error: %v", err)
	}
	if code != "" {
		t.Errorf("code = %q, want empty", code)
	}
}

func TestResolveCodeShortSecretReturnedUnchanged(t *testing.T) {
	code, err := ResolveCode("A1B2")
	if err != nil {
		t.Fatalf("ResolveCode() error: %v", err)
	}
	if code != "A1B2" {
		t.Errorf("code = %q, want A1B2", code)
	}
}

func TestResolveCodeLongSecretDerivesTOTP(t *testing.T) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      "inspectbot",
		AccountName: "testbot",
	})
	if err != nil {
		t.Fatalf("totp.Generate() error: %v", err)
	}

	code, err := ResolveCode(key.Secret())
	if err != nil {
		t.Fatalf("ResolveCode() error: %v", err)
	}
	if len(code) != 6 {
		t.Errorf("code length = %d, want 6", len(code))
	}

	want, err := totp.GenerateCode(key.Secret(), time.Now())
	if err != nil {
		t.Fatalf("totp.GenerateCode() error: %v", err)
	}
	if code != want {
		t.Errorf("code = %q, want %q", code, want)
	}
}

func TestIsTOTPSeed(t *testing.T) {
	tests := []struct {
		secret string
		want   bool
	}{
		{"", false},
		{"A1B2", false},
		{"A1B2C", false},
		{"JBSWY3DPEHPK3PXP", true},
	}
	for _, tt := range tests {
		if got := IsTOTPSeed(tt.secret); got != tt.want {
			t.Errorf("IsTOTPSeed(%q) = %v, want %v", tt.secret, got, tt.want)
		}
	}
}
