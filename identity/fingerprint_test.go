package identity

import "testing"

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  Jane   Doe ", "Jane Doe"},
		{"Jane\n\t Doe", "Jane Doe"},
		{"", ""},
		{"   ", ""},
		{"Anonymous", "Anonymous"},
	}
	for _, tt := range tests {
		if got := NormalizeText(tt.in); got != tt.want {
			t.Errorf("NormalizeText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint([]string{"A", "B"})
	if a != Fingerprint([]string{"A", "B"}) {
		t.Fatalf("fingerprint should be stable")
	}
	if a == Fingerprint([]string{"B", "A"}) {
		t.Fatalf("fingerprint should depend on order")
	}
	if Fingerprint([]string{"AB"}) == Fingerprint([]string{"A", "B"}) {
		t.Fatalf("fingerprint should separate names")
	}
	if len(a) != 32 {
		t.Fatalf("expected 32 hex chars, got %d", len(a))
	}
}
