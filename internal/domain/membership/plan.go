package membership

import (
	"fmt"
	"strings"
	"time"
)

type Plan string

const (
	Plan1Month  Plan = "1month"
	Plan2Months Plan = "2month"
	Plan3Months Plan = "3month"
	Plan6Months Plan = "6month"
	PlanYearly  Plan = "yearly"
)

type Terms struct {
	DisplayName string
	PriceINR    int
	Months      int
}

var planOrder = []Plan{Plan1Month, Plan2Months, Plan3Months, Plan6Months, PlanYearly}

var planTerms = map[Plan]Terms{
	Plan1Month:  {DisplayName: "1 Month", PriceINR: 1500, Months: 1},
	Plan2Months: {DisplayName: "2 Months", PriceINR: 2500, Months: 2},
	Plan3Months: {DisplayName: "3 Months", PriceINR: 3500, Months: 3},
	Plan6Months: {DisplayName: "6 Months", PriceINR: 5000, Months: 6},
	PlanYearly:  {DisplayName: "1 Year", PriceINR: 8000, Months: 12},
}

func Plans() []Plan {
	out := make([]Plan, len(planOrder))
	copy(out, planOrder)
	return out
}

func ParsePlan(value string) (Plan, error) {
	plan := Plan(strings.ToLower(strings.TrimSpace(value)))
	if !plan.Valid() {
		return "", &ValidationError{Field: "plan", Message: fmt.Sprintf("unknown plan %q", value)}
	}
	return plan, nil
}

func (p Plan) Valid() bool {
	_, ok := planTerms[p]
	return ok
}

// Terms returns the zero value for an unknown plan.
func (p Plan) Terms() Terms {
	return planTerms[p]
}

func (p Plan) DisplayName() string {
	if t, ok := planTerms[p]; ok {
		return t.DisplayName
	}
	return string(p)
}

// EndDate adds the plan duration in calendar months. Month overflow
// normalises the same way time.AddDate does (Jan 31 + 1 month = Mar 3).
func (p Plan) EndDate(start time.Time) time.Time {
	return start.AddDate(0, planTerms[p].Months, 0)
}
