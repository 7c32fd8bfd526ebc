package utility

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCategorize_MatchesFireSafetyKeyword(t *testing.T) {
	assert.Equal(t, CategoryFireSafety, Categorize("消防泵的最小排量是多少", nil))
}

func TestCategorize_MatchesLifesavingViaMatchedTerm(t *testing.T) {
	assert.Equal(t, CategoryLifesaving, Categorize("配备要求", []string{"liferaft"}))
}

func TestCategorize_MatchesPollutionKeyword(t *testing.T) {
	assert.Equal(t, CategoryPollution, Categorize("油水分离器的排放标准", nil))
}

func TestCategorize_MatchesNavigationKeyword(t *testing.T) {
	assert.Equal(t, CategoryNavigation, Categorize("雷达设备要求", nil))
}

func TestCategorize_FallsBackToGeneralWhenNoKeywordMatches(t *testing.T) {
	assert.Equal(t, CategoryGeneral, Categorize("今天天气怎么样", nil))
}

func TestCategorize_IsCaseInsensitiveForEnglishKeywords(t *testing.T) {
	assert.Equal(t, CategoryMachinery, Categorize("ENGINE overhaul schedule", nil))
}
