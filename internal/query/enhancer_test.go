package query

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnhance_ExpandsTerminologyAndAppendsRegulationHints(t *testing.T) {
	got := Enhance("救生筏的释放设备要求")

	assert.Contains(t, got.MatchedTerms, "liferaft")
	assert.Contains(t, got.MatchedTerms, "launching appliance")
	assert.Contains(t, got.RegulationHints, "SOLAS III")
	assert.Contains(t, got.RegulationHints, "LSA Code")
	assert.True(t, strings.HasPrefix(got.EnhancedQuery, "救生筏的释放设备要求"))
}

func TestEnhance_CargoShipWithLSATermsAddsFreeFallHints(t *testing.T) {
	got := Enhance("货船救生筏配备要求")

	assert.Contains(t, got.RegulationHints, "SOLAS III/31")
	assert.Contains(t, got.RegulationHints, "SOLAS III/32")
	assert.Contains(t, got.RegulationHints, "SOLAS III/16")
	assert.Contains(t, got.RegulationHints, "LSA Code Chapter 6")
	assert.Contains(t, got.MatchedTerms, "davit-launched liferaft")
	assert.Contains(t, got.MatchedTerms, "free-fall lifeboat")
}

func TestEnhance_PassengerShipAddsShipTypeHints(t *testing.T) {
	got := Enhance("客船的救生设备配备标准")

	assert.Contains(t, got.RegulationHints, "SOLAS III/21")
	assert.Contains(t, got.RegulationHints, "SOLAS III/22")
	assert.Contains(t, got.RegulationHints, "SOLAS III/16")
}

func TestEnhance_LengthThresholdTriggersFreeFallRule(t *testing.T) {
	got := Enhance("90米货船救生筏降落设备要求")

	assert.Contains(t, got.RegulationHints, "SOLAS III/31")
	assert.Contains(t, got.MatchedTerms, "85 metres")
	assert.Contains(t, got.MatchedTerms, "free-fall lifeboat")
}

func TestEnhance_LengthBelow85ButAbove80OnlyTriggersIII16(t *testing.T) {
	got := Enhance("82米货船救生筏降落设备要求")

	assert.NotContains(t, got.RegulationHints, "SOLAS III/31")
	assert.Contains(t, got.RegulationHints, "SOLAS III/16")
}

func TestEnhance_BilateralKeywordAddsSideHint(t *testing.T) {
	got := Enhance("救生筏两舷布置要求")

	assert.Contains(t, got.RegulationHints, "SOLAS III/31.1.4")
	assert.Contains(t, got.MatchedTerms, "each side")
}

func TestEnhance_NoMatchesReturnsQueryUnchanged(t *testing.T) {
	got := Enhance("今天天气怎么样")

	assert.Empty(t, got.MatchedTerms)
	assert.Empty(t, got.RegulationHints)
	assert.Equal(t, "今天天气怎么样", got.EnhancedQuery)
}
