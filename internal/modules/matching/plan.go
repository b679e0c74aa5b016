// README: Pure per-phase planning: match, score, select, assign and build the final path.
package matching

import "github.com/mihir-logicrays/drive-it/internal/types"

// PlanInput is everything a phase needs; none of it is mutated.
type PlanInput struct {
	RouteID    types.ID
	Phase      Phase
	Fence      Fence
	Variants   []PathVariant
	Stops      []Stop
	Passengers []Passenger
	Rules      Rules
}

// PhasePlan is the outcome of planning one phase. Empty reports a phase
// with no variant or no stops, for which nothing must be written or sent.
type PhasePlan struct {
	Empty         bool
	VariantID     types.ID
	Candidates    []Candidate
	Counts        []int
	SelectedIndex int
	Selected      Step
	Alert         *Alert
	Assignments   []Assignment
	Path          FinalPath
}

// Plan runs the matching pipeline for one phase. Only the head variant is
// consulted; the rest are kept by callers for later planners.
func Plan(in PlanInput) (PhasePlan, error) {
	if len(in.Variants) == 0 || len(in.Stops) == 0 || len(in.Variants[0].Steps) == 0 {
		return PhasePlan{Empty: true, SelectedIndex: -1}, nil
	}
	variant := in.Variants[0]

	candidates := MatchPassengers(in.Phase, in.Fence, in.Stops, in.Passengers, in.Rules)
	counts := ScoreSteps(variant.Steps, candidates)
	idx := SelectStep(counts)
	selected := variant.Steps[idx]

	plan := PhasePlan{
		VariantID:     variant.ID,
		Candidates:    candidates,
		Counts:        counts,
		SelectedIndex: idx,
		Selected:      selected,
	}
	if alert, ok := CheckUnmatched(in.RouteID, in.Phase, len(candidates), counts[idx], in.Rules.UnmatchedThreshold); ok {
		plan.Alert = &alert
	}

	plan.Assignments = AssignStops(in.RouteID, candidates, selected)
	path, err := BuildFinalPath(selected, plan.Assignments, IndexStops(in.Stops))
	if err != nil {
		return PhasePlan{}, err
	}
	plan.Path = path
	return plan, nil
}
