package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppendUserTurn_SetsShipTypeAndMergesTopics(t *testing.T) {
	session := &Session{}
	AppendUserTurn(session, "100米货船需要配备几艘救生筏", "text")

	assert.Equal(t, "cargo ship", session.ActiveShipType)
	assert.NotEmpty(t, session.ActiveTopics)
	assert.Contains(t, session.ActiveTopics, "liferaft")
	assert.Len(t, session.Turns, 1)
	assert.Equal(t, "user", session.Turns[0].Role)
}

func TestAppendUserTurn_PreservesExistingShipTypeWhenNoneDetected(t *testing.T) {
	session := &Session{ActiveShipType: "cargo ship"}
	AppendUserTurn(session, "今天天气怎么样", "text")
	assert.Equal(t, "cargo ship", session.ActiveShipType)
}

func TestAppendAssistantTurn_ExtractsCitationsFromAnswerText(t *testing.T) {
	session := &Session{}
	AppendAssistantTurn(session, "依据 [SOLAS III/31] 该船应配备自由降落救生艇。", "text", TurnMetadata{})

	assert.Contains(t, session.ActiveRegulations, "SOLAS III/31")
	assert.Len(t, session.Turns, 1)
	assert.Equal(t, "assistant", session.Turns[0].Role)
}

func TestAppendAssistantTurn_MergesMetadataRetrievedRegulations(t *testing.T) {
	session := &Session{}
	AppendAssistantTurn(session, "答案文本", "text", TurnMetadata{RetrievedRegulations: []string{"MARPOL Annex I"}})
	assert.Contains(t, session.ActiveRegulations, "MARPOL Annex I")
}

func TestPushLRU_TrimsToMaxKeepingMostRecent(t *testing.T) {
	existing := []string{"A", "B", "C"}
	out := pushLRU(existing, []string{"D", "E"}, 4)
	assert.Equal(t, []string{"B", "C", "D", "E"}, out)
}

func TestPushLRU_SkipsDuplicatesAlreadyPresent(t *testing.T) {
	existing := []string{"A", "B"}
	out := pushLRU(existing, []string{"A", "C"}, 10)
	assert.Equal(t, []string{"A", "B", "C"}, out)
}

func TestPushLRU_SkipsEmptyStrings(t *testing.T) {
	out := pushLRU(nil, []string{"", "A"}, 10)
	assert.Equal(t, []string{"A"}, out)
}

func TestMergeTopics_DeduplicatesAcrossCalls(t *testing.T) {
	out := mergeTopics([]string{"liferaft"}, []string{"liferaft", "davit"})
	assert.Equal(t, []string{"liferaft", "davit"}, out)
}
