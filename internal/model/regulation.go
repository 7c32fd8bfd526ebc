// Package model 包含了应用的数据模型定义。
package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// Regulation 对应于数据库中的 'regulations' 表：一条可独立引用的法规条文
// (SOLAS 章节/规则、MARPOL 附则、IACS 统一要求、船级社规范条款等)。
type Regulation struct {
	ID             uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Document       string    `gorm:"type:varchar(100);not null;index" json:"document"` // e.g. "SOLAS", "MARPOL", "BV NR467"
	RegulationNo   string    `gorm:"type:varchar(100);not null;index" json:"regulationNo"`
	Title          string    `gorm:"type:varchar(500)" json:"title"`
	BreadcrumbPath string    `gorm:"type:varchar(500)" json:"breadcrumbPath"` // e.g. "SOLAS > Chapter II-2 > Regulation 10"
	AuthorityLevel string    `gorm:"type:varchar(30);not null;index" json:"authorityLevel"`
	Language       string    `gorm:"type:varchar(10);default:'en'" json:"language"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (Regulation) TableName() string { return "regulations" }

// Authority level constants, used by the hybrid retriever's authority weighting (SPEC_FULL.md §4.7).
const (
	AuthorityConvention      = "convention"       // SOLAS/MARPOL/STCW/COLREG article text
	AuthorityIACSResolution  = "iacs_resolution"  // IACS Unified Requirements/Interpretations
	AuthorityClassificationR = "classification"   // classification-society rule text
	AuthorityGuidanceNote    = "guidance"          // non-binding guidance/interpretation notes
	AuthorityUnknown         = "unknown"
)

// Applicability captures the ship-type/date gating a chunk's content is scoped to.
type Applicability struct {
	ShipTypesInclude    []string   `json:"shipTypesInclude,omitempty"`
	ShipTypesExclude    []string   `json:"shipTypesExclude,omitempty"`
	MinConstructionDate *time.Time `json:"minConstructionDate,omitempty"`
	MinLengthMeters     *float64   `json:"minLengthMeters,omitempty"`
	MinGrossTonnage     *float64   `json:"minGrossTonnage,omitempty"`
}

// ChunkMetadata is the structured metadata stored alongside a chunk's text,
// restoring the "applicability metadata" concept named in spec.md's GLOSSARY.
type ChunkMetadata struct {
	Applicability Applicability `json:"applicability"`
	ChunkType     string        `json:"chunkType"` // "requirement" | "definition" | "table" | "note"
	SourceURL     string        `json:"sourceUrl,omitempty"`
}

// Chunk 对应于数据库中的 'chunks' 表：法规条文切分出的检索单元。
type Chunk struct {
	ID           uint          `gorm:"primaryKey;autoIncrement" json:"id"`
	RegulationID uint          `gorm:"not null;index" json:"regulationId"`
	ChunkIndex   int           `gorm:"not null" json:"chunkIndex"`
	TextContent  string        `gorm:"type:text;not null" json:"textContent"`
	Metadata     ChunkMetadata `gorm:"type:json" json:"metadata"`
	CreatedAt    time.Time     `gorm:"autoCreateTime" json:"createdAt"`
}

func (Chunk) TableName() string { return "chunks" }

// Value implements driver.Valuer so GORM can persist ChunkMetadata as a JSON column.
func (m ChunkMetadata) Value() (driver.Value, error) {
	return json.Marshal(m)
}

// Scan implements sql.Scanner so GORM can hydrate ChunkMetadata from a JSON column.
func (m *ChunkMetadata) Scan(src interface{}) error {
	if src == nil {
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		s, ok := src.(string)
		if !ok {
			return errors.New("ChunkMetadata.Scan: unsupported source type")
		}
		b = []byte(s)
	}
	if len(b) == 0 {
		return nil
	}
	return json.Unmarshal(b, m)
}
