package generation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSafetyPostCheck_LiferaftDavitCorrection(t *testing.T) {
	query := "我们的货船配备了 free-fall lifeboat，两舷是否还需要 davit？"
	dangerousAnswer := "由于已配备 free-fall lifeboat，两舷都不需要额外配备 davit-launched 救生筏。"

	got := SafetyPostCheck(dangerousAnswer, query)
	assert.Contains(t, got, "安全修正")
	assert.True(t, len(got) > len(dangerousAnswer))
}

func TestSafetyPostCheck_ODMECorrection(t *testing.T) {
	query := "货舱区的 ODME 排油有没有总量限制？"
	dangerousAnswer := "货舱区排油没有总量限制，只要瞬时排放率不超标即可。"

	got := SafetyPostCheck(dangerousAnswer, query)
	assert.Contains(t, got, "1/30,000")
}

func TestSafetyPostCheck_NoTriggerLeavesAnswerUnchanged(t *testing.T) {
	query := "请问消防控制站的防火等级是多少？"
	answer := "根据 SOLAS II-2/Reg 9 Table 9.5，控制站与走廊之间为 A-0。"

	got := SafetyPostCheck(answer, query)
	assert.Equal(t, answer, got)
}
