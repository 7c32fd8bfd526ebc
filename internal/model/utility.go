package model

import "time"

// ChunkUtility 对应于数据库中的 'chunk_utilities' 表：Utility Store 为
// 每个 (chunk, query_category) 维护的 EMA 学习状态，grounded on
// original_source/retrieval/utility_reranker.py's chunk_utilities table.
type ChunkUtility struct {
	ChunkID       uint      `gorm:"primaryKey;autoIncrement:false" json:"chunkId"`
	QueryCategory string    `gorm:"type:varchar(30);primaryKey" json:"queryCategory"`
	UtilityScore  float64   `gorm:"not null;default:0.5" json:"utilityScore"`
	UseCount      int       `gorm:"not null;default:0" json:"useCount"`
	SuccessCount  int       `gorm:"not null;default:0" json:"successCount"`
	LastUsed      time.Time `json:"lastUsed"`
}

func (ChunkUtility) TableName() string { return "chunk_utilities" }
