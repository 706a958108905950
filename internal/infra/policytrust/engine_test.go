package policytrust

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/CapTomas/Proofo-sub002/internal/domain"
)

const testBundle = `package proofo.trust

default result := {"email_required": false, "phone_required": false}

result := {"email_required": true, "phone_required": false} {
	input.trust_level == "verified"
}

result := {"email_required": true, "phone_required": true} {
	input.trust_level == "strong"
}

result := {"email_required": true, "phone_required": true} {
	input.trust_level == "maximum"
}
`

func writeBundle(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "trust.rego")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write bundle: %v", err)
	}
	return path
}

func TestEngineEvaluatesTrustLevels(t *testing.T) {
	engine, err := NewEngineFromBundlePath(context.Background(), writeBundle(t, testBundle))
	if err != nil {
		t.Fatalf("prepare engine: %v", err)
	}

	cases := []struct {
		level domain.TrustLevel
		email bool
		phone bool
	}{
		{domain.TrustLevelBasic, false, false},
		{domain.TrustLevelVerified, true, false},
		{domain.TrustLevelStrong, true, true},
		{domain.TrustLevelMaximum, true, true},
	}
	for _, tc := range cases {
		got, err := engine.Requirements(context.Background(), tc.level)
		if err != nil {
			t.Fatalf("requirements for %s: %v", tc.level, err)
		}
		if got.EmailRequired != tc.email || got.PhoneRequired != tc.phone {
			t.Fatalf("level %s: got %+v, want email=%v phone=%v", tc.level, got, tc.email, tc.phone)
		}
	}
}

func TestEngineRejectsBrokenBundle(t *testing.T) {
	_, err := NewEngineFromBundlePath(context.Background(), writeBundle(t, `package proofo.trust

result := http.send({"method": "get", "url": "https://example.com"})
`))
	if err == nil {
		t.Fatal("a bundle using forbidden builtins must be rejected at startup")
	}
}
