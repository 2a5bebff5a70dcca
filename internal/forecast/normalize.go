package forecast

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
)

// anchorPattern matches relative-time labels: "T+0", "T+1y", "T+25y".
var anchorPattern = regexp.MustCompile(`^\s*[Tt]\s*\+\s*(\d+)\s*y?\s*$`)

// Normalize converts a RawForecast into a Forecast satisfying the document
// invariants. It is total: any input, however malformed, maps to some valid
// Forecast, and normalizing an already-normalized forecast is a no-op.
func Normalize(raw RawForecast) Forecast {
	f := Forecast{
		Premise:      raw.Premise,
		Assumptions:  emptyIfNil(raw.Assumptions),
		TimeHorizon:  raw.TimeHorizon,
		Tradeoffs:    emptyIfNil(raw.Tradeoffs),
		RedTeam:      emptyIfNil(raw.RedTeam),
		RealismScore: clampScore(raw.RealismScore),
		Style:        raw.Style,
		Disclaimer:   raw.Disclaimer,
	}
	if f.Style == "" {
		f.Style = "brief"
	}
	if f.Disclaimer == "" {
		f.Disclaimer = DefaultDisclaimer
	}

	f.Branches = normalizeBranches(raw.Branches)
	return f
}

// normalizeBranches guarantees the three canonical branches exist in
// canonical order (extra scenarios follow in their original order), cleans
// each branch, and renormalizes probabilities to sum to exactly 1.
func normalizeBranches(in []Branch) []Branch {
	out := make([]Branch, 0, len(in)+len(RequiredBranches))
	taken := make([]bool, len(in))

	for _, want := range RequiredBranches {
		found := false
		for i, b := range in {
			if !taken[i] && matchesBranch(b.Name, want) {
				b.Name = want
				out = append(out, cleanBranch(b))
				taken[i] = true
				found = true
				break
			}
		}
		if !found {
			out = append(out, cleanBranch(Branch{Name: want}))
		}
	}
	for i, b := range in {
		if !taken[i] {
			out = append(out, cleanBranch(b))
		}
	}

	renormalize(out)
	return out
}

// renormalize scales probabilities so they sum to 1, falling back to an
// equal split when the model supplied nothing usable. Dividing by the sum
// rather than subtracting a correction keeps the split stable for inputs
// that are already proportional.
func renormalize(branches []Branch) {
	sum := 0.0
	for _, b := range branches {
		sum += b.Probability
	}
	if math.Abs(sum-1) <= ProbabilityTolerance {
		return // already normalized; keep values bit-identical
	}
	if sum <= 0 {
		for i := range branches {
			branches[i].Probability = 1.0 / float64(len(branches))
		}
		return
	}
	for i := range branches {
		branches[i].Probability /= sum
	}
}

func cleanBranch(b Branch) Branch {
	if b.Probability < 0 || math.IsNaN(b.Probability) || math.IsInf(b.Probability, 0) {
		b.Probability = 0
	}
	b.Timeline = normalizeTimeline(b.Timeline)
	b.SecondOrderEffects = emptyIfNil(b.SecondOrderEffects)
	return b
}

// normalizeTimeline sorts events by anchor offset and relabels duplicate or
// unparseable anchors onto the next free slot so offsets strictly increase.
func normalizeTimeline(events []TimelineEvent) []TimelineEvent {
	if events == nil {
		return []TimelineEvent{}
	}

	type keyed struct {
		ev     TimelineEvent
		offset int // -1: no parseable anchor, assigned after sorting
		pos    int
	}
	ks := make([]keyed, len(events))
	for i, ev := range events {
		ks[i] = keyed{ev: ev, offset: parseAnchor(ev.Anchor), pos: i}
	}
	sort.SliceStable(ks, func(i, j int) bool {
		a, b := ks[i], ks[j]
		if (a.offset < 0) != (b.offset < 0) {
			return b.offset < 0 // unparseable anchors sort last
		}
		if a.offset != b.offset {
			return a.offset < b.offset
		}
		return a.pos < b.pos
	})

	out := make([]TimelineEvent, len(ks))
	prev := -1
	for i, k := range ks {
		off := k.offset
		if off <= prev {
			off = prev + 1
		}
		k.ev.Anchor = anchorLabel(off)
		out[i] = k.ev
		prev = off
	}
	return out
}

// parseAnchor returns the year offset encoded in a label, or -1 when the
// label does not follow the T+Ny scheme.
func parseAnchor(label string) int {
	m := anchorPattern.FindStringSubmatch(label)
	if m == nil {
		return -1
	}
	n := 0
	for _, c := range m[1] {
		n = n*10 + int(c-'0')
		if n > 10000 {
			return 10000
		}
	}
	return n
}

func anchorLabel(offset int) string {
	if offset == 0 {
		return "T+0"
	}
	return fmt.Sprintf("T+%dy", offset)
}

func matchesBranch(name, canonical string) bool {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.ReplaceAll(n, "-", " ")
	n = strings.ReplaceAll(n, "_", " ")
	c := strings.ToLower(canonical)
	if n == c {
		return true
	}
	switch canonical {
	case BranchBest:
		return n == "best" || n == "best case scenario" || n == "bestcase" || n == "optimistic"
	case BranchWorst:
		return n == "worst" || n == "worst case scenario" || n == "worstcase" || n == "pessimistic"
	case BranchBaseline:
		return n == "base" || n == "base case" || n == "expected" || n == "most likely"
	}
	return false
}

func clampScore(s float64) float64 {
	if math.IsNaN(s) || s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
