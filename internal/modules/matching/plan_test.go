package matching

import (
	"errors"
	"testing"
)

func planFixture(t *testing.T) PlanInput {
	t.Helper()
	stops := []Stop{
		stopAt("s1", 0.5, 0.5),
		stopAt("s2", 0.5+5*milli, 0.5),
		stopAt("s3", 0.5+10*milli, 0.5),
	}
	return PlanInput{
		RouteID: "r1",
		Phase:   PhasePickup,
		Fence:   unitSquare(t),
		Variants: []PathVariant{
			{ID: "v1", RouteID: "r1", Phase: PhasePickup, Steps: []Step{step("s1"), step("s1", "s2")}},
			{ID: "v2", RouteID: "r1", Phase: PhasePickup, Steps: []Step{step("s3")}},
		},
		Stops: stops,
		Passengers: []Passenger{
			passengerAt("u1", 0.5, 0.5+0.5*milli),
			passengerAt("u2", 0.5+5*milli, 0.5+0.5*milli),
			passengerAt("u3", 0.5+10*milli, 0.5+0.5*milli),
			passengerAt("outside", 2, 2),
		},
		Rules: DefaultRules(),
	}
}

func TestPlan_SelectsBestStepOfHeadVariant(t *testing.T) {
	plan, err := Plan(planFixture(t))
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if plan.Empty || plan.VariantID != "v1" {
		t.Fatalf("expected head variant v1, got %+v", plan)
	}
	if len(plan.Candidates) != 3 {
		t.Fatalf("expected 3 scored passengers, got %d", len(plan.Candidates))
	}
	if plan.SelectedIndex != 1 {
		t.Fatalf("selected %d (counts %v), want 1", plan.SelectedIndex, plan.Counts)
	}
	if len(plan.Assignments) != 3 {
		t.Fatalf("expected 3 assignments, got %d", len(plan.Assignments))
	}
	// u3 is only near s3, which the selected step does not serve: 1 of 3 unmatched.
	if plan.Alert == nil || plan.Alert.Phase != PhasePickup {
		t.Fatalf("expected a pickup alert, got %+v", plan.Alert)
	}
	if len(plan.Path) != 3 || plan.Path[0].StopID != "s1" || plan.Path[2].StopID != "s3" {
		t.Fatalf("unexpected path %+v", plan.Path)
	}
}

func TestPlan_EmptyCatalogs(t *testing.T) {
	in := planFixture(t)
	in.Variants = nil
	if plan, err := Plan(in); err != nil || !plan.Empty || len(plan.Assignments) != 0 {
		t.Fatalf("no variants: plan=%+v err=%v", plan, err)
	}

	in = planFixture(t)
	in.Stops = nil
	if plan, err := Plan(in); err != nil || !plan.Empty || plan.Path != nil {
		t.Fatalf("no stops: plan=%+v err=%v", plan, err)
	}
}

func TestPlan_NoScoredPassengersStillBuildsPath(t *testing.T) {
	in := planFixture(t)
	in.Passengers = nil
	plan, err := Plan(in)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if plan.Alert != nil {
		t.Fatal("no passengers scored; alert must be suppressed")
	}
	if plan.SelectedIndex != 0 || len(plan.Path) != 1 || plan.Path[0].StopID != "s1" {
		t.Fatalf("expected first step as path, got index %d path %+v", plan.SelectedIndex, plan.Path)
	}
}

func TestPlan_CorruptVariant(t *testing.T) {
	in := planFixture(t)
	in.Variants[0].Steps = []Step{step("nope")}
	if _, err := Plan(in); !errors.Is(err, ErrUnknownStop) {
		t.Fatalf("expected ErrUnknownStop, got %v", err)
	}
}
