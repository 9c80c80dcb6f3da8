package telegram

import (
	"strings"
	"testing"
)

func TestSplitTextShortPassthrough(t *testing.T) {
	t.Parallel()
	got := splitText("hello", 100)
	if len(got) != 1 || got[0] != "hello" {
		t.Fatalf("splitText = %v", got)
	}
}

func TestSplitTextPrefersNewlines(t *testing.T) {
	t.Parallel()
	lines := []string{
		strings.Repeat("a", 40),
		strings.Repeat("b", 40),
		strings.Repeat("c", 40),
	}
	got := splitText(strings.Join(lines, "\n"), 100)
	if len(got) != 2 {
		t.Fatalf("got %d chunks: %v", len(got), got)
	}
	if !strings.HasSuffix(got[0], strings.Repeat("b", 40)) {
		t.Fatalf("first chunk does not end on a line boundary: %q", got[0])
	}
	if got[1] != lines[2] {
		t.Fatalf("second chunk = %q", got[1])
	}
}

func TestSplitTextHardSplitWithoutNewlines(t *testing.T) {
	t.Parallel()
	in := strings.Repeat("x", 250)
	got := splitText(in, 100)
	if len(got) != 3 {
		t.Fatalf("got %d chunks, want 3", len(got))
	}
	var total int
	for i, c := range got {
		if len([]rune(c)) > 100 {
			t.Fatalf("chunk %d exceeds limit: %d runes", i, len([]rune(c)))
		}
		total += len(c)
	}
	if total != 250 {
		t.Fatalf("content lost: %d of 250 runes survived", total)
	}
}

func TestSplitTextMultibyte(t *testing.T) {
	t.Parallel()
	in := strings.Repeat("п", 150)
	got := splitText(in, 100)
	if len(got) != 2 {
		t.Fatalf("got %d chunks, want 2", len(got))
	}
	if strings.Count(got[0]+got[1], "п") != 150 {
		t.Fatalf("runes corrupted: %q %q", got[0], got[1])
	}
}
