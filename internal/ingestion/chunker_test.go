package ingestion

import (
	"strings"
	"testing"
)

func TestClamp(t *testing.T) {
	if got := clamp(10, 50, 200); got != 50 {
		t.Errorf("clamp(10, 50, 200) = %d, want 50", got)
	}
	if got := clamp(300, 50, 200); got != 200 {
		t.Errorf("clamp(300, 50, 200) = %d, want 200", got)
	}
	if got := clamp(100, 50, 200); got != 100 {
		t.Errorf("clamp(100, 50, 200) = %d, want 100", got)
	}
}

func TestSplitPage_SingleChunkUnderTarget(t *testing.T) {
	text := strings.Repeat("word ", 100)
	chunks := splitPage(strings.TrimSpace(text), 900, 180)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
}

func TestSplitPage_WindowsAndOverlap(t *testing.T) {
	words := make([]string, 0, 1000)
	for i := 0; i < 1000; i++ {
		words = append(words, "word")
	}
	text := strings.Join(words, " ")

	chunks := splitPage(text, 450, 90)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks for 1000 words at target 450, got %d", len(chunks))
	}
	for _, c := range chunks {
		if c == "" {
			t.Error("chunk should not be empty")
		}
	}
}

func TestSplitIntoUnits_ParagraphsPreferred(t *testing.T) {
	text := "first paragraph here.\n\nsecond paragraph here.\n\nthird paragraph here."
	units := splitIntoUnits(text, 900)
	if len(units) != 3 {
		t.Fatalf("expected 3 paragraph units, got %d: %v", len(units), units)
	}
}

func TestSplitUnit_FallsBackToWordWindow(t *testing.T) {
	words := make([]string, 50)
	for i := range words {
		words[i] = "w"
	}
	longLine := strings.Join(words, " ")

	units := splitUnit(longLine, 10, 0)
	if len(units) != 5 {
		t.Fatalf("expected 5 word-window units of 10 words each, got %d", len(units))
	}
}

func TestSplitUnit_PrefersLineBoundary(t *testing.T) {
	text := strings.Repeat("a ", 20) + "\n" + strings.Repeat("b ", 20)
	units := splitUnit(strings.TrimSpace(text), 25, 0)
	if len(units) != 2 {
		t.Fatalf("expected 2 line-bounded units, got %d: %v", len(units), units)
	}
}

func TestNewChunker_DefaultBaseSize(t *testing.T) {
	c := NewChunker(0)
	if c.baseSize != BaseChunkSize {
		t.Errorf("expected default base size %d, got %d", BaseChunkSize, c.baseSize)
	}
}
