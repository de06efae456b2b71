package utils

import "testing"

func TestIsValidFileExtension(t *testing.T) {
	allowed := []string{"xlsx", "csv"}
	tests := []struct {
		filename string
		want     bool
	}{
		{"students.xlsx", true},
		{"STUDENTS.XLSX", true},
		{"students.csv", true},
		{"students.xls", false},
		{"students", false},
		{"archive.tar.csv", true},
	}

	for _, tc := range tests {
		if got := IsValidFileExtension(tc.filename, allowed); got != tc.want {
			t.Fatalf("IsValidFileExtension(%q) = %v, want %v", tc.filename, got, tc.want)
		}
	}
}

func TestPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("s3cret-pass")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := CheckPassword("s3cret-pass", hash); err != nil {
		t.Fatalf("expected password to match: %v", err)
	}
	if err := CheckPassword("wrong", hash); err == nil {
		t.Fatalf("expected mismatch for wrong password")
	}
}

func TestGenerateIDIsUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := GenerateID()
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
}

func TestSanitizeString(t *testing.T) {
	if got := SanitizeString("  Grade\x00 1 "); got != "Grade 1" {
		t.Fatalf("unexpected sanitized value %q", got)
	}
}
