package transcript

import "strings"

// fillerTokens are the hesitation markers counted in controller speech
var fillerTokens = []string{"uh", "um", "er", "ah", "..."}

// ComputeMetrics derives quantitative signals from an ordered transcript.
// It is a pure function: no side effects, deterministic, and it never
// fails — a transcript with no pilot-then-controller adjacency simply
// yields zero-valued latency metrics.
func ComputeMetrics(entries []Entry) ComputedMetrics {
	latencies := responseLatencies(entries)

	var metrics ComputedMetrics
	if len(latencies) > 0 {
		min, max, sum := latencies[0], latencies[0], 0.0
		for _, l := range latencies {
			if l < min {
				min = l
			}
			if l > max {
				max = l
			}
			sum += l
		}
		metrics.AvgResponseSeconds = sum / float64(len(latencies))
		metrics.MaxResponseSeconds = max
		metrics.MinResponseSeconds = min
	}

	metrics.HesitationCount = countHesitations(entries)
	return metrics
}

// responseLatencies collects the gap between each pilot transmission and
// the controller transmission that immediately follows it. Negative gaps
// (overlapping speech or clock jitter) are dropped.
func responseLatencies(entries []Entry) []float64 {
	var latencies []float64
	for i := 0; i+1 < len(entries); i++ {
		curr, next := entries[i], entries[i+1]
		if curr.Speaker != SpeakerPilot || next.Speaker != SpeakerController {
			continue
		}
		gap := next.Start - curr.EndTime()
		if gap >= 0 {
			latencies = append(latencies, gap)
		}
	}
	return latencies
}

// countHesitations counts filler-token occurrences across all controller
// utterances. Occurrences are summed, not deduplicated per utterance, and
// pilot speech is never scanned.
func countHesitations(entries []Entry) int {
	count := 0
	for _, e := range entries {
		if e.Speaker != SpeakerController {
			continue
		}
		text := strings.ToLower(e.Text)
		for _, filler := range fillerTokens {
			count += strings.Count(text, filler)
		}
	}
	return count
}
