package domain

// Analysis length caps applied by the diagnostic analyzer.
const (
	MaxDiagnosisLen = 100
	MaxReasoningLen = 150
)

// AIAnalysis is the diagnostic verdict for one error event, produced either
// by the LLM or by the rule-based fallback.
type AIAnalysis struct {
	Diagnosis           string   `json:"diagnosis"`
	RecommendedStrategy Strategy `json:"recommended_strategy"`
	Confidence          float64  `json:"confidence"`
	Severity            Severity `json:"severity"`
	Reasoning           string   `json:"reasoning"`
	EstimatedFixTimeMs  int      `json:"estimated_fix_time_ms"`
}
