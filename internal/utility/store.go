package utility

import (
	"context"

	"bvrag/internal/apperr"
	"bvrag/internal/model"
	"bvrag/pkg/log"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const emaDecay = 0.9 // u ← 0.9·u + 0.1·reward (spec.md §4.6)
const emaLearningRate = 1 - emaDecay

// defaultUtility is the effective score of a chunk never observed for a category.
const defaultUtility = 0.5

// Store persists and serves per-(chunk, category) utility scores.
type Store interface {
	GetUtilities(ctx context.Context, chunkIDs []uint, category Category) (map[uint]float64, error)
	ApplyReward(ctx context.Context, chunkID uint, category Category, reward float64) error
}

type gormStore struct {
	db *gorm.DB
}

// NewStore constructs C6's persistence layer over the teacher's MySQL/GORM
// stack, replacing original_source/retrieval/utility_reranker.py's raw
// psycopg2 ON CONFLICT statement with a GORM clause.OnConflict upsert.
func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) GetUtilities(ctx context.Context, chunkIDs []uint, category Category) (map[uint]float64, error) {
	out := make(map[uint]float64, len(chunkIDs))
	if len(chunkIDs) == 0 {
		return out, nil
	}
	var rows []model.ChunkUtility
	err := s.db.WithContext(ctx).
		Where("chunk_id IN ? AND query_category = ?", chunkIDs, string(category)).
		Find(&rows).Error
	if err != nil {
		log.Errorf("[UtilityStore] 批量查询 utility 失败: %v", err)
		return nil, apperr.New(apperr.KindUnavailable, "utility.store", "utility store unavailable", nil)
	}
	for _, r := range rows {
		out[r.ChunkID] = r.UtilityScore
	}
	for _, id := range chunkIDs {
		if _, ok := out[id]; !ok {
			out[id] = defaultUtility
		}
	}
	return out, nil
}

// ApplyReward performs the EMA update for a single chunk. A chunk never
// observed for this category starts from defaultUtility, so its fresh row
// holds the EMA of 0.5 and the reward (mirrors original_source's
// "initial_utility" seeding).
func (s *gormStore) ApplyReward(ctx context.Context, chunkID uint, category Category, reward float64) error {
	success := 0
	if reward > 0 {
		success = 1
	}
	initial := clamp01(emaDecay*defaultUtility + emaLearningRate*reward)

	row := model.ChunkUtility{
		ChunkID:       chunkID,
		QueryCategory: string(category),
		UtilityScore:  initial,
		UseCount:      1,
		SuccessCount:  success,
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "chunk_id"}, {Name: "query_category"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"utility_score": gorm.Expr("GREATEST(0.0, LEAST(1.0, ? * chunk_utilities.utility_score + ? * ?))", emaDecay, emaLearningRate, reward),
			"use_count":     gorm.Expr("chunk_utilities.use_count + 1"),
			"success_count": gorm.Expr("chunk_utilities.success_count + ?", success),
			"last_used":     gorm.Expr("NOW()"),
		}),
	}).Create(&row).Error
	if err != nil {
		log.Errorf("[UtilityStore] 更新 chunk %d 的 utility 失败: %v", chunkID, err)
		return apperr.New(apperr.KindUnavailable, "utility.store", "utility store unavailable", nil)
	}
	return nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
