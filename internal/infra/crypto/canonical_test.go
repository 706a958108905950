package crypto

import (
	"testing"
)

func TestCanonicalizeJSONSortsKeys(t *testing.T) {
	out, err := CanonicalizeJSON([]byte(`{"zebra":1,"alpha":{"y":true,"x":false}}`))
	if err != nil {
		t.Fatalf("canonicalize: %v", err)
	}
	want := `{"alpha":{"x":false,"y":true},"zebra":1}`
	if string(out) != want {
		t.Fatalf("got %s, want %s", out, want)
	}
}

func TestCanonicalizeJSONKeyOrderInvariant(t *testing.T) {
	a, err := CanonicalizeJSON([]byte(`{"b":2,"a":1}`))
	if err != nil {
		t.Fatalf("canonicalize: %v", err)
	}
	b, err := CanonicalizeJSON([]byte(`{ "a": 1, "b": 2 }`))
	if err != nil {
		t.Fatalf("canonicalize: %v", err)
	}
	if string(a) != string(b) {
		t.Fatalf("equivalent objects canonicalized differently: %s vs %s", a, b)
	}
}

func TestCanonicalizeJSONPreservesArrayOrder(t *testing.T) {
	out, err := CanonicalizeJSON([]byte(`[3, 1, 2]`))
	if err != nil {
		t.Fatalf("canonicalize: %v", err)
	}
	if string(out) != `[3,1,2]` {
		t.Fatalf("array order must be preserved, got %s", out)
	}
}

func TestCanonicalizeJSONEscaping(t *testing.T) {
	out, err := CanonicalizeJSON([]byte(`{"s":"line\nbreak \"quoted\""}`))
	if err != nil {
		t.Fatalf("canonicalize: %v", err)
	}
	want := `{"s":"line\nbreak \"quoted\""}`
	if string(out) != want {
		t.Fatalf("got %s, want %s", out, want)
	}
}

func TestCanonicalizeJSONNumbers(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{`{"n":1.0}`, `{"n":1}`},
		{`{"n":1200.50}`, `{"n":1200.5}`},
		{`{"n":0}`, `{"n":0}`},
	}
	for _, tc := range cases {
		out, err := CanonicalizeJSON([]byte(tc.in))
		if err != nil {
			t.Fatalf("canonicalize %s: %v", tc.in, err)
		}
		if string(out) != tc.want {
			t.Fatalf("canonicalize %s: got %s, want %s", tc.in, out, tc.want)
		}
	}
}

func TestCanonicalizeJSONRejectsInvalid(t *testing.T) {
	if _, err := CanonicalizeJSON([]byte(`{"unterminated`)); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}
