package generation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPostCheckTableLookup_ShipTypeMismatch(t *testing.T) {
	query := "油轮的走廊与消防控制站之间的防火分隔是多少？"
	answer := "根据 SOLAS II-2/Reg 9 Table 9.5，走廊与消防控制站之间为 A-0。"

	got := PostCheckTableLookup(answer, query)
	assert.True(t, got.ShouldRegenerate)
	assert.Equal(t, "tanker", got.ShipTypeDetected)
	assert.Contains(t, got.CorrectionContext, "Table 9.7")
}

func TestPostCheckTableLookup_KnownValueMismatch(t *testing.T) {
	query := "货船控制站与居住区之间的防火分隔是多少？"
	answer := "根据 SOLAS II-2/Reg 9 Table 9.5，Category (1) × Category (3) 为 **A-0**。"

	got := PostCheckTableLookup(answer, query)
	assert.True(t, got.ShouldRegenerate)
	assert.Contains(t, got.CorrectionContext, "A-60")
}

func TestPostCheckTableLookup_CorrectAnswerDoesNotRegenerate(t *testing.T) {
	query := "货船控制站与走廊之间的防火分隔是多少？"
	answer := "根据 SOLAS II-2/Reg 9 Table 9.5，Category (1) × Category (2) 为 **A-0**。"

	got := PostCheckTableLookup(answer, query)
	assert.False(t, got.ShouldRegenerate)
}

func TestPostCheckTableLookup_NoTableReferenceSkipsCheck(t *testing.T) {
	got := PostCheckTableLookup("这是一个不涉及查表的回答。", "随便问问")
	assert.False(t, got.ShouldRegenerate)
	assert.Empty(t, got.TablesCited)
}
