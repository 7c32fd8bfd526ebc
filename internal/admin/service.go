// Package admin implements the read-only operator endpoints behind
// /api/v1/admin/* (spec.md §6): corpus/session counters and utility-table
// aggregates, grounded on the teacher's internal/service/admin_service.go
// shape (a thin service struct wrapping repository-level queries) but built
// directly over gorm.DB/redis.Client/es rather than a repository layer,
// since these are one-off read aggregates, not a CRUD resource.
package admin

import (
	"context"

	"bvrag/internal/config"
	"bvrag/internal/model"
	"bvrag/pkg/es"
	"bvrag/pkg/log"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// Stats is the /api/v1/admin/stats response shape.
type Stats struct {
	TotalRegulations int64 `json:"total_regulations"`
	TotalChunks      int64 `json:"total_chunks"`
	VectorPoints     int64 `json:"vector_points"`
	Sessions         int64 `json:"sessions"`
}

// CategoryUtilityStats is one row of the /api/v1/admin/utility-stats response.
type CategoryUtilityStats struct {
	Category     string  `json:"category"`
	Count        int64   `json:"count"`
	MeanUtility  float64 `json:"mean_utility"`
	MeanUseCount float64 `json:"mean_use_count"`
	AboveHigh    int64   `json:"count_above_0_7"`
	BelowLow     int64   `json:"count_below_0_3"`
}

// Service backs the admin stats/utility-stats/session-inspection endpoints.
type Service struct {
	db        *gorm.DB
	redis     *redis.Client
	indexName string
}

// NewService constructs the admin stats service.
func NewService(db *gorm.DB, redisClient *redis.Client, esCfg config.ElasticsearchConfig) *Service {
	return &Service{db: db, redis: redisClient, indexName: esCfg.IndexName}
}

// Stats computes the corpus/session counters for GET /api/v1/admin/stats.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	var stats Stats

	if err := s.db.WithContext(ctx).Model(&model.Regulation{}).Count(&stats.TotalRegulations).Error; err != nil {
		log.Errorf("[AdminService] 统计法规总数失败: %v", err)
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(&model.Chunk{}).Count(&stats.TotalChunks).Error; err != nil {
		log.Errorf("[AdminService] 统计切片总数失败: %v", err)
		return nil, err
	}

	vectorPoints, err := es.CountDocuments(ctx, s.indexName)
	if err != nil {
		log.Errorf("[AdminService] 统计向量点数失败: %v", err)
		return nil, err
	}
	stats.VectorPoints = vectorPoints

	sessionCount, err := s.countSessions(ctx)
	if err != nil {
		log.Errorf("[AdminService] 统计会话数失败: %v", err)
		return nil, err
	}
	stats.Sessions = sessionCount

	return &stats, nil
}

// countSessions scans the session-key namespace rather than tracking a
// separate counter, since Redis key expiry (TTL) already keeps it accurate
// without a decrement path on session expiry.
func (s *Service) countSessions(ctx context.Context) (int64, error) {
	var count int64
	var cursor uint64
	for {
		keys, next, err := s.redis.Scan(ctx, cursor, "bvrag:session:*", 200).Result()
		if err != nil {
			return 0, err
		}
		count += int64(len(keys))
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return count, nil
}

// UtilityStats computes per-category aggregates for GET /api/v1/admin/utility-stats.
func (s *Service) UtilityStats(ctx context.Context) ([]CategoryUtilityStats, error) {
	var rows []CategoryUtilityStats
	err := s.db.WithContext(ctx).Model(&model.ChunkUtility{}).
		Select(
			"query_category as category",
			"COUNT(*) as count",
			"AVG(utility_score) as mean_utility",
			"AVG(use_count) as mean_use_count",
			"SUM(CASE WHEN utility_score > 0.7 THEN 1 ELSE 0 END) as above_high",
			"SUM(CASE WHEN utility_score < 0.3 THEN 1 ELSE 0 END) as below_low",
		).
		Group("query_category").
		Scan(&rows).Error
	if err != nil {
		log.Errorf("[AdminService] 统计 utility 聚合失败: %v", err)
		return nil, err
	}
	return rows, nil
}
