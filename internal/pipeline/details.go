package pipeline

import (
	"encoding/json"

	"github.com/dsa-core/dsa-core/internal/indicator"
	"github.com/dsa-core/dsa-core/internal/model"
)

// ReportDetails packages the raw LLM output alongside a JSON snapshot of
// the evidence bundle actually shown to the model, so a report can be
// audited after the fact without re-fetching data.
func ReportDetails(rawResult string, bundle *model.EvidenceBundle) model.ReportDetails {
	snapshot, _ := json.Marshal(bundle)
	return model.ReportDetails{RawResult: rawResult, ContextSnapshot: string(snapshot)}
}

func effectiveBiasThreshold(base float64, snap model.TechnicalSnapshot) float64 {
	return indicator.EffectiveBiasThreshold(base, snap)
}
