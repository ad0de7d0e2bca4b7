package attendance

import (
	"context"
	"fmt"
	"sort"

	"github.com/warp/attendance-engine/generic"
)

// ThresholdPolicy yields the worked-hours floor below which a shortfall is
// not actionable.
type ThresholdPolicy struct {
	Rulesets RulesetService

	// DefaultRulesetID is used for employees without a ruleset of their own.
	DefaultRulesetID RulesetID
}

// MinimumHours returns the flat ExpectedHours of the first quantity rule that
// does not derive its expectation from the contract, in Sequence order.
// A missing ruleset or rule means no floor (zero).
func (p *ThresholdPolicy) MinimumHours(ctx context.Context, emp Employee) (generic.Amount, error) {
	id := emp.RulesetID
	if id == "" {
		id = p.DefaultRulesetID
	}
	if id == "" || p.Rulesets == nil {
		return generic.ZeroHours(), nil
	}

	rs, err := p.Rulesets.Ruleset(ctx, id)
	if err != nil {
		return generic.Amount{}, fmt.Errorf("load ruleset %s: %w", id, err)
	}
	if rs == nil {
		return generic.ZeroHours(), nil
	}

	if rule, ok := rs.FloorRule(); ok {
		return rule.ExpectedHours, nil
	}
	return generic.ZeroHours(), nil
}

// FloorRule returns the first quantity rule without a contract-derived
// expectation.
func (rs Ruleset) FloorRule() (ThresholdRule, bool) {
	rules := make([]ThresholdRule, len(rs.Rules))
	copy(rules, rs.Rules)
	sort.SliceStable(rules, func(i, j int) bool { return rules[i].Sequence < rules[j].Sequence })

	for _, r := range rules {
		if r.BaseOff == RuleBaseQuantity && !r.ExpectedHoursFromContract {
			return r, true
		}
	}
	return ThresholdRule{}, false
}
