package utility

import (
	"context"

	"bvrag/pkg/kafka"
	"bvrag/pkg/log"
	"bvrag/pkg/tasks"
)

// UpdateProcessor implements kafka.UtilityUpdateProcessor, translating a
// consumed UtilityUpdateEvent into per-chunk EMA updates via the reward
// table in spec.md §4.6.
type UpdateProcessor struct {
	store Store
}

// NewUpdateProcessor constructs C6's update half.
func NewUpdateProcessor(store Store) *UpdateProcessor {
	return &UpdateProcessor{store: store}
}

var _ kafka.UtilityUpdateProcessor = (*UpdateProcessor)(nil)

// ApplyUtilityUpdate applies the reward table to every retrieved chunk.
//
// Refusal override: when confidence is low and the answer is a refusal,
// every retrieved chunk takes reward -0.5 regardless of citation, per
// spec.md §4.6 ("confidence == low and answer is a refusal → −0.5 for every
// retrieved chunk") — overriding original_source/retrieval/utility_reranker.py's
// narrower "all chunks on unable-to-answer" rule, which lacked the confidence gate.
func (p *UpdateProcessor) ApplyUtilityUpdate(ctx context.Context, event tasks.UtilityUpdateEvent) error {
	cited := make(map[uint]bool, len(event.CitedChunkIDs))
	for _, id := range event.CitedChunkIDs {
		cited[id] = true
	}
	category := Category(event.QueryCategory)
	if category == "" {
		category = CategoryGeneral
	}

	refusalOverride := event.Confidence == "low" && event.IsRefusal

	var firstErr error
	for _, chunkID := range event.RetrievedChunkIDs {
		reward := reward(cited[chunkID], event.Confidence)
		if refusalOverride {
			reward = -0.5
		}
		if err := p.store.ApplyReward(ctx, chunkID, category, reward); err != nil {
			log.Errorf("[UtilityUpdateProcessor] chunk %d 更新失败: %v", chunkID, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// reward implements spec.md §4.6's (was_cited, confidence) reward table.
func reward(wasCited bool, confidence string) float64 {
	switch confidence {
	case "high":
		if wasCited {
			return 1.0
		}
		return -0.1
	case "medium":
		if wasCited {
			return 0.5
		}
		return 0.0
	default: // low
		if wasCited {
			return 0.0
		}
		return -0.3
	}
}
