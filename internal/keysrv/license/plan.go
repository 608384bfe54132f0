package license

import (
	"strings"
	"time"
)

// Plan is the subscription type a key was issued for.
type Plan string

const (
	PlanPremium     Plan = "Premium"
	PlanTrimestriel Plan = "Trimestriel"
	PlanPermanent   Plan = "Permanent"
)

var planValidity = map[Plan]time.Duration{
	PlanPremium:     30 * 24 * time.Hour,
	PlanTrimestriel: 90 * 24 * time.Hour,
	PlanPermanent:   0,
}

// Plans lists the recognized plans.
func Plans() []Plan {
	return []Plan{PlanPremium, PlanTrimestriel, PlanPermanent}
}

// ParsePlan matches s against the recognized plans. Matching is exact.
func ParsePlan(s string) (Plan, error) {
	p := Plan(strings.TrimSpace(s))
	if _, ok := planValidity[p]; !ok {
		return "", ErrInvalidPlan.Msg("invalid plan type: " + s)
	}
	return p, nil
}

func (p Plan) String() string {
	return string(p)
}

// Code is the three-letter suffix embedded in key values.
func (p Plan) Code() string {
	return strings.ToUpper(string(p)[:3])
}

// ExpiresAt returns the expiry for a key created at created, or nil for plans
// that never expire.
func (p Plan) ExpiresAt(created time.Time) *time.Time {
	d := planValidity[p]
	if d == 0 {
		return nil
	}
	t := created.Add(d)
	return &t
}
