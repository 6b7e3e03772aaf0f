package imagegen

import (
	"strings"
	"testing"
)

func TestNormalizePrompt(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "trims and collapses", in: "  pirate\t\tcaptain \n on deck ", want: "pirate captain on deck"},
		{name: "drops control characters", in: "knight\x00 in\x07 armor", want: "knight in armor"},
		{name: "composes combining marks", in: "cafe\u0301 terrace", want: "caf\u00e9 terrace"},
		{name: "blank", in: " \n\t ", want: ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := NormalizePrompt(tc.in); got != tc.want {
				t.Fatalf("NormalizePrompt(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestNormalizePromptKeepsLongPrompts(t *testing.T) {
	long := strings.Repeat("a", MaxPromptRunes+50)
	if got := NormalizePrompt(long); got != long {
		t.Fatalf("NormalizePrompt shortened the prompt to %d runes", len([]rune(got)))
	}
	if !PromptTooLong(long) {
		t.Fatalf("PromptTooLong should report %d runes", MaxPromptRunes+50)
	}
	if PromptTooLong(strings.Repeat("\u00e9", MaxPromptRunes)) {
		t.Fatalf("exactly MaxPromptRunes runes should be accepted")
	}
}

func TestBuildInstruction(t *testing.T) {
	got := BuildInstruction("  pirate captain ", DefaultQualitySuffix+".")
	want := "Hyperrealistic detail, good lighting, natural color, cinematic, pirate captain"
	if got != want {
		t.Fatalf("BuildInstruction = %q, want %q", got, want)
	}
	if got := BuildInstruction("dancer", ""); got != "dancer" {
		t.Fatalf("BuildInstruction without suffix = %q", got)
	}
}
