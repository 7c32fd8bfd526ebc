package utility

import (
	"context"
	"testing"

	"bvrag/pkg/tasks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingStore struct {
	rewards map[uint]float64
}

func newRecordingStore() *recordingStore {
	return &recordingStore{rewards: map[uint]float64{}}
}

func (s *recordingStore) GetUtilities(ctx context.Context, chunkIDs []uint, category Category) (map[uint]float64, error) {
	return nil, nil
}

func (s *recordingStore) ApplyReward(ctx context.Context, chunkID uint, category Category, reward float64) error {
	s.rewards[chunkID] = reward
	return nil
}

func TestApplyUtilityUpdate_RewardTableByConfidenceAndCitation(t *testing.T) {
	store := newRecordingStore()
	p := NewUpdateProcessor(store)

	err := p.ApplyUtilityUpdate(context.Background(), tasks.UtilityUpdateEvent{
		RetrievedChunkIDs: []uint{1, 2},
		CitedChunkIDs:     []uint{1},
		Confidence:        "high",
		QueryCategory:     "fire_safety",
	})
	require.NoError(t, err)
	assert.Equal(t, 1.0, store.rewards[1])
	assert.Equal(t, -0.1, store.rewards[2])
}

func TestApplyUtilityUpdate_MediumConfidenceRewardTable(t *testing.T) {
	store := newRecordingStore()
	p := NewUpdateProcessor(store)

	_ = p.ApplyUtilityUpdate(context.Background(), tasks.UtilityUpdateEvent{
		RetrievedChunkIDs: []uint{1, 2},
		CitedChunkIDs:     []uint{1},
		Confidence:        "medium",
	})
	assert.Equal(t, 0.5, store.rewards[1])
	assert.Equal(t, 0.0, store.rewards[2])
}

func TestApplyUtilityUpdate_LowConfidenceRewardTable(t *testing.T) {
	store := newRecordingStore()
	p := NewUpdateProcessor(store)

	_ = p.ApplyUtilityUpdate(context.Background(), tasks.UtilityUpdateEvent{
		RetrievedChunkIDs: []uint{1, 2},
		CitedChunkIDs:     []uint{1},
		Confidence:        "low",
	})
	assert.Equal(t, 0.0, store.rewards[1])
	assert.Equal(t, -0.3, store.rewards[2])
}

func TestApplyUtilityUpdate_RefusalOverrideForcesNegativeRewardRegardlessOfCitation(t *testing.T) {
	store := newRecordingStore()
	p := NewUpdateProcessor(store)

	_ = p.ApplyUtilityUpdate(context.Background(), tasks.UtilityUpdateEvent{
		RetrievedChunkIDs: []uint{1, 2},
		CitedChunkIDs:     []uint{1},
		Confidence:        "low",
		IsRefusal:         true,
	})
	assert.Equal(t, -0.5, store.rewards[1])
	assert.Equal(t, -0.5, store.rewards[2])
}

func TestApplyUtilityUpdate_DefaultsEmptyCategoryToGeneral(t *testing.T) {
	var seenCategory Category
	store := &capturingCategoryStore{apply: func(chunkID uint, category Category, reward float64) {
		seenCategory = category
	}}
	p := NewUpdateProcessor(store)

	_ = p.ApplyUtilityUpdate(context.Background(), tasks.UtilityUpdateEvent{
		RetrievedChunkIDs: []uint{1},
		Confidence:        "high",
		CitedChunkIDs:     []uint{1},
	})
	assert.Equal(t, CategoryGeneral, seenCategory)
}

type capturingCategoryStore struct {
	apply func(chunkID uint, category Category, reward float64)
}

func (s *capturingCategoryStore) GetUtilities(ctx context.Context, chunkIDs []uint, category Category) (map[uint]float64, error) {
	return nil, nil
}

func (s *capturingCategoryStore) ApplyReward(ctx context.Context, chunkID uint, category Category, reward float64) error {
	s.apply(chunkID, category, reward)
	return nil
}
