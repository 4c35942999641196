package domain

// HealingPattern is a learned (signature -> strategy) record. Updated after
// every healing attempt for its signature, never deleted by the engine.
type HealingPattern struct {
	Signature           string   `json:"signature"            db:"signature"`
	SampleMessage       string   `json:"sample_message"       db:"sample_message"`
	RecommendedStrategy Strategy `json:"recommended_strategy" db:"recommended_strategy"`
	SuccessRate         float64  `json:"success_rate"         db:"success_rate"`
	TimesAttempted      int      `json:"times_attempted"      db:"times_attempted"`
	TimesSucceeded      int      `json:"times_succeeded"      db:"times_succeeded"`
}

// TrustThreshold is the success rate a pattern must strictly exceed before
// the orchestrator reuses it without running diagnosis.
const TrustThreshold = 80.0

// Trusted reports whether the pattern may short-circuit diagnosis.
func (p *HealingPattern) Trusted() bool {
	return p.SuccessRate > TrustThreshold
}

// Reinforce applies one attempt outcome and recomputes the success rate as
// the cumulative ratio, clamped to [0, 100].
func (p *HealingPattern) Reinforce(success bool) {
	p.TimesAttempted++
	if success {
		p.TimesSucceeded++
	}
	if p.TimesSucceeded > p.TimesAttempted {
		p.TimesSucceeded = p.TimesAttempted
	}
	p.SuccessRate = float64(p.TimesSucceeded) / float64(p.TimesAttempted) * 100
	if p.SuccessRate < 0 {
		p.SuccessRate = 0
	}
	if p.SuccessRate > 100 {
		p.SuccessRate = 100
	}
}
