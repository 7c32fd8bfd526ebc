package query

import (
	"testing"

	"bvrag/pkg/llm"

	"github.com/stretchr/testify/assert"
)

func TestClassify_IntentPrecedenceOrder(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		intent Intent
	}{
		{"applicability beats everything", "100米货船是否需要配备几艘救生筏", IntentApplicability},
		{"comparison", "SOLAS III/31 和 SOLAS III/21 有什么区别", IntentComparison},
		{"specification", "消防泵的最小排量是多少", IntentSpecification},
		{"procedure", "如何进行救生艇降落演习", IntentProcedure},
		{"definition", "什么是破舱稳性", IntentDefinition},
		{"general fallback", "今天天气好吗", IntentGeneral},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.query)
			assert.Equal(t, tt.intent, got.Intent)
		})
	}
}

func TestClassify_ShipParameterPlusRequirementTermForcesApplicability(t *testing.T) {
	got := Classify("100米货船需要配备几艘救生筏")
	assert.Equal(t, IntentApplicability, got.Intent)
	assert.Equal(t, "broad", got.RetrievalStrategy)
	require100m := got.ShipInfo.LengthM
	if assert.NotNil(t, require100m) {
		assert.Equal(t, 100.0, *require100m)
	}
	assert.Equal(t, "cargo ship", got.ShipInfo.Type)
}

func TestClassify_GeneralFallbackUsesPrimaryModelHint(t *testing.T) {
	got := Classify("今天天气好吗")
	assert.Equal(t, llm.TierPrimary, got.ModelHint)
	assert.Equal(t, 8, got.TopK)
}

func TestClassify_ExtractsTonnage(t *testing.T) {
	got := Classify("3000吨的散货船适用哪些法规")
	if assert.NotNil(t, got.ShipInfo.TonnageGT) {
		assert.Equal(t, 3000.0, *got.ShipInfo.TonnageGT)
	}
	assert.Equal(t, "bulk carrier", got.ShipInfo.Type)
}

// TestClassify_BulkCarrierNeverResolvesToSubstringCargoShip guards against a
// regression to map-iteration-order ship-type matching: "散货船" (bulk
// carrier) contains "货船" (cargo ship) as a substring, so a keyed-by-map
// lookup could nondeterministically resolve either way depending on
// iteration order that run. The more specific term must always win, on
// every call in the same process.
func TestClassify_BulkCarrierNeverResolvesToSubstringCargoShip(t *testing.T) {
	for i := 0; i < 50; i++ {
		got := Classify("散货船是否需要配备救生艇")
		assert.Equal(t, "bulk carrier", got.ShipInfo.Type)
	}
}
