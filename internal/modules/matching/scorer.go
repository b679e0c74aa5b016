// README: Path scorer, step selection and unmatched-rate monitor.
package matching

import "github.com/mihir-logicrays/drive-it/internal/types"

// ScoreSteps counts, for every step, the candidates with at least one
// NearStop among the step's stops. A candidate counts once per step.
func ScoreSteps(steps []Step, candidates []Candidate) []int {
	counts := make([]int, len(steps))
	for i, step := range steps {
		for _, c := range candidates {
			if capturedBy(step, c.NearStops) {
				counts[i]++
			}
		}
	}
	return counts
}

func capturedBy(step Step, near []NearStop) bool {
	for _, n := range near {
		if step.Has(n.StopID) {
			return true
		}
	}
	return false
}

// SelectStep returns the index with the highest count; ties resolve to the
// lowest index. It returns -1 when there are no steps.
func SelectStep(counts []int) int {
	if len(counts) == 0 {
		return -1
	}
	best := 0
	for i, c := range counts {
		if c > counts[best] {
			best = i
		}
	}
	return best
}

// UnmatchedRate is the percentage of scored passengers the selected step
// does not capture. ok is false when nobody was scored.
func UnmatchedRate(scored, matched int) (rate float64, ok bool) {
	if scored <= 0 {
		return 0, false
	}
	return float64(scored-matched) * 100 / float64(scored), true
}

// CheckUnmatched builds the operator alert for a phase when the unmatched
// rate reaches the threshold.
func CheckUnmatched(routeID types.ID, phase Phase, scored, matched int, threshold float64) (Alert, bool) {
	rate, ok := UnmatchedRate(scored, matched)
	if !ok || rate < threshold {
		return Alert{}, false
	}
	return Alert{RouteID: routeID, Phase: phase, UnmatchedUsersCount: rate}, true
}
