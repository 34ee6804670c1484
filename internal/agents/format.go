package agents

import (
	"fmt"
	"strings"

	"github.com/skysift/shiftwatch/internal/transcript"
)

// formatEntries renders transcript entries as ordered speaker-tagged lines
func formatEntries(entries []transcript.Entry) string {
	if len(entries) == 0 {
		return "(no transmissions)"
	}

	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, fmt.Sprintf("[%.1fs] %s: %s", e.Start, strings.ToUpper(e.Speaker), e.Text))
	}
	return strings.Join(lines, "\n")
}

// sampleEntries selects up to size entries evenly spaced across the whole
// transcript, so samples span the full shift instead of clustering at the
// start
func sampleEntries(entries []transcript.Entry, size int) []transcript.Entry {
	if len(entries) <= size {
		return entries
	}

	step := len(entries) / size
	if step < 1 {
		step = 1
	}

	sampled := make([]transcript.Entry, 0, size)
	for i := 0; i < len(entries) && len(sampled) < size; i += step {
		sampled = append(sampled, entries[i])
	}
	return sampled
}
