package generation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFixSourceLinks_ReplacesGenericLinkWithSpecificURL(t *testing.T) {
	answer := "依据 [SOLAS II-2/Reg 9] → https://www.imorules.com 查阅原文。"
	sources := []Source{
		{Breadcrumb: "SOLAS II-2/Reg 9", URL: "https://www.imorules.com/GUID-5765BBD5-xxxx.html"},
	}

	got := FixSourceLinks(answer, sources)
	assert.Contains(t, got, "https://www.imorules.com/GUID-5765BBD5-xxxx.html")
	assert.NotContains(t, got, "] → https://www.imorules.com ")
}

func TestFixSourceLinks_StripsLinkWhenNoSpecificURLAvailable(t *testing.T) {
	answer := "依据 [MARPOL Annex I/34] → https://imorules.com 查阅原文。"

	got := FixSourceLinks(answer, nil)
	assert.Contains(t, got, "[MARPOL Annex I/34]")
	assert.NotContains(t, got, "imorules.com")
}

func TestFixSourceLinks_LeavesSpecificGUIDLinksUntouched(t *testing.T) {
	answer := "参考 https://www.imorules.com/GUID-ABCDEF.html 获取详情。"

	got := FixSourceLinks(answer, nil)
	assert.Contains(t, got, "https://www.imorules.com/GUID-ABCDEF.html")
}

func TestCitationMatchesBreadcrumb_MatchesCompactFormAgainstLongFormBreadcrumb(t *testing.T) {
	got := CitationMatchesBreadcrumb("[SOLAS II-2/9.2.4]", "SOLAS II-2/Reg 9")
	assert.True(t, got)
}

func TestCitationMatchesBreadcrumb_NoOverlapReturnsFalse(t *testing.T) {
	got := CitationMatchesBreadcrumb("[MARPOL Annex I/34]", "SOLAS II-2/Reg 9")
	assert.False(t, got)
}
