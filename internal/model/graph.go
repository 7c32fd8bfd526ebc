package model

import "time"

// Cross-reference relation types, per spec.md's Reference-Graph Client contract.
const (
	RelationParentChild   = "parent_child"
	RelationInterpretation = "interpretation"
	RelationAmendment      = "amendment"
	RelationCrossDocument  = "cross_document"
)

// CrossReference 对应于数据库中的 'cross_references' 表：法规条文之间的引用关系
// (父子层级、解释性说明、修正案、跨文件引用)，grounded on
// original_source/db/graph_queries.py's cross_references view.
type CrossReference struct {
	ID               uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	FromRegulationID uint      `gorm:"not null;index:idx_from_rel" json:"fromRegulationId"`
	ToRegulationID   uint      `gorm:"not null;index" json:"toRegulationId"`
	RelationType     string    `gorm:"type:varchar(30);not null;index:idx_from_rel" json:"relationType"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

func (CrossReference) TableName() string { return "cross_references" }

// Concept 对应于数据库中的 'concepts' 表：跨文件的共享主题/概念
// (如 "life-saving appliances", "oil discharge monitoring")。
type Concept struct {
	ID   uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name string `gorm:"type:varchar(200);not null;uniqueIndex" json:"name"`
}

func (Concept) TableName() string { return "concepts" }

// RegulationConcept 对应于数据库中的 'regulation_concepts' 关联表。
type RegulationConcept struct {
	RegulationID uint `gorm:"primaryKey" json:"regulationId"`
	ConceptID    uint `gorm:"primaryKey" json:"conceptId"`
}

func (RegulationConcept) TableName() string { return "regulation_concepts" }
