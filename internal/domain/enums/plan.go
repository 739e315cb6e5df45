package enums

import "strings"

type Plan string

const (
	PlanMonth Plan = "month"
	PlanYear  Plan = "year"
)

// Days returns the fixed subscription length for the plan.
// Plans are not calendar-aware: a month is always 30 days.
func (p Plan) Days() int {
	if p == PlanYear {
		return 365
	}
	return 30
}

func (p Plan) Valid() bool {
	return p == PlanMonth || p == PlanYear
}

func ParsePlan(raw string) (Plan, bool) {
	plan := Plan(strings.ToLower(strings.TrimSpace(raw)))
	return plan, plan.Valid()
}
