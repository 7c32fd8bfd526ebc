package generation

import (
	"regexp"

	"bvrag/pkg/log"
)

// safetyRule is a static (trigger-query, dangerous-answer, correction) triple
// ported verbatim from original_source/generation/generator.py's SAFETY_RULES —
// a deterministic backstop restoring spec.md §8's "refuse or call out the
// mismatch" invariant beyond prompt wording alone (see SPEC_FULL.md §4 notes).
type safetyRule struct {
	id              string
	triggerQuery    *regexp.Regexp
	dangerousAnswer *regexp.Regexp
	correction      string
	prepend         bool // false means append
}

var safetyRules = []safetyRule{
	{
		id:           "liferaft_davit",
		triggerQuery: regexp.MustCompile(`(?i)(free.?fall|自由抛落|自由降落).*(davit|降落|救生筏)`),
		dangerousAnswer: regexp.MustCompile(`(?i)(都不需要|都无需|均不需要|不需要.{0,5}davit|无需.{0,10}davit` +
			`|两舷.{0,10}不需要|两舷.{0,10}无需|都可以.{0,5}throw)`),
		correction: "⚠️ **安全修正**：即使配备了 free-fall lifeboat，根据 SOLAS III/31.1.2.2，" +
			"≥85m 货船仍须在**至少一舷**配备 davit-launched 救生筏。" +
			"Free-fall lifeboat 不免除 davit 要求。\n\n---\n\n",
		prepend: true,
	},
	{
		id:           "odme_no_limit",
		triggerQuery: regexp.MustCompile(`(?i)(ODME|排油|oil discharge|总排油量|排放.*油轮)`),
		dangerousAnswer: regexp.MustCompile(`(?i)(没有.{0,10}(总量|排油量|排油).{0,10}(限制|限值|要求)` +
			`|无.{0,5}(总量|排油).{0,5}限|不存在.{0,10}排油.{0,5}限)`),
		correction: "\n\n⚠️ **重要补充**：MARPOL Annex I Regulation 34 明确规定了货舱区排油限制——" +
			"每航次总排油量不得超过该批货油总量的 **1/30,000**（新船）或 1/15,000（旧船），" +
			"且瞬时排放率 ≤30 升/海里。",
		prepend: false,
	},
}

// SafetyPostCheck scans a generated answer for known-dangerous patterns and
// prepends/appends a deterministic correction when the triggering query
// context matches (spec.md §4.10 rule (d), expanded per SPEC_FULL.md).
func SafetyPostCheck(answer, userQuery string) string {
	for _, rule := range safetyRules {
		if !rule.triggerQuery.MatchString(userQuery) {
			continue
		}
		if !rule.dangerousAnswer.MatchString(answer) {
			continue
		}
		log.Infof("[SafetyPostCheck] rule '%s' triggered on a dangerous answer pattern", rule.id)
		if rule.prepend {
			answer = rule.correction + answer
		} else {
			answer = answer + rule.correction
		}
	}
	return answer
}
