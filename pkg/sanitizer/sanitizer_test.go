package sanitizer

import "testing"

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"trim spaces", "  Room A101  ", "Room A101"},
		{"multiple spaces between words", "Lecture    Hall", "Lecture Hall"},
		{"tabs and newlines", "Lab\t\nThree", "Lab Three"},
		{"empty string", "", ""},
		{"only whitespace", "   \t\n  ", ""},
		{"preserve special characters", " Café & Studio™ ", "Café & Studio™"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeName(tt.input); got != tt.want {
				t.Errorf("NormalizeName(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeKind(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Lecture Hall", "lecture_hall"},
		{"  seminar-room ", "seminar_room"},
		{"__lab__", "lab"},
		{"Studio 2", "studio_2"},
		{"!!!", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := NormalizeKind(tt.input)
			if got != tt.want {
				t.Errorf("NormalizeKind(%q) = %q, want %q", tt.input, got, tt.want)
			}
			if again := NormalizeKind(got); again != got {
				t.Errorf("NormalizeKind is not idempotent: %q -> %q", got, again)
			}
		})
	}
}

func TestNormalizeIdentifier(t *testing.T) {
	if got := NormalizeIdentifier("  Room-A101 "); got != "Room-A101" {
		t.Errorf("expected case preserved and spaces trimmed, got %q", got)
	}
}

func TestSanitizeSlice(t *testing.T) {
	got := SanitizeSlice([]string{"Lab", " lab ", "", "Studio", "!!"}, NormalizeKind)
	want := []string{"lab", "studio"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}
