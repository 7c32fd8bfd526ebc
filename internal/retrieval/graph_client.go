package retrieval

import (
	"context"
	"errors"

	"bvrag/internal/apperr"
	"bvrag/internal/model"
	"bvrag/pkg/log"

	"gorm.io/gorm"
)

// maxParentChainDepth bounds get_parent_chain recursion (spec.md §9: "parent chain ≤ 20").
const maxParentChainDepth = 20

// GraphClient is C3: read-only, idempotent traversal of the cross-reference graph,
// grounded on original_source/db/graph_queries.py, reimplemented over MySQL/GORM
// (the teacher's relational store) instead of psycopg2/Postgres.
type GraphClient interface {
	GetByID(ctx context.Context, regulationID uint) (*model.Regulation, error)
	GetParentChain(ctx context.Context, regulationID uint) ([]model.Regulation, error)
	GetChildren(ctx context.Context, regulationID uint) ([]model.Regulation, error)
	GetCrossReferences(ctx context.Context, regulationID uint) ([]model.CrossReference, error)
	GetInterpretations(ctx context.Context, regulationID uint) ([]model.CrossReference, error)
	GetAmendments(ctx context.Context, regulationID uint) ([]model.CrossReference, error)
	GetRelatedByConcept(ctx context.Context, conceptName string) ([]model.Regulation, error)
}

type graphClient struct {
	db *gorm.DB
}

// NewGraphClient constructs C3.
func NewGraphClient(db *gorm.DB) GraphClient {
	return &graphClient{db: db}
}

// GetByID fetches a single regulation by its primary key, used by the hybrid
// retriever's graph-expansion step to resolve a cross-reference's target.
func (g *graphClient) GetByID(ctx context.Context, regulationID uint) (*model.Regulation, error) {
	var reg model.Regulation
	err := g.db.WithContext(ctx).First(&reg, regulationID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		log.Errorf("[GraphClient] get_by_id 失败: %v", err)
		return nil, apperr.New(apperr.KindUnavailable, "retrieval.graph", "reference-graph store unavailable", apperr.ErrGraphUnavailable)
	}
	return &reg, nil
}

// parentRow is a row returned by the recursive parent-chain CTE below.
type parentRow struct {
	model.Regulation
	Depth int
}

// GetParentChain returns ancestors ordered root-to-leaf, bounded recursion depth.
// Cross-references here are modelled via the regulation's own self-referential
// breadcrumb hierarchy is NOT used (regulations have no parent_id column in this
// schema, unlike the original's tree); instead ancestry is derived by walking
// RelationParentChild edges in CrossReference, MySQL 8+ recursive CTE.
func (g *graphClient) GetParentChain(ctx context.Context, regulationID uint) ([]model.Regulation, error) {
	const q = `
	WITH RECURSIVE chain AS (
		SELECT r.id, r.document, r.regulation_no, r.title, r.breadcrumb_path,
		       r.authority_level, r.language, r.created_at, r.updated_at, 0 AS depth
		FROM regulations r
		WHERE r.id = ?
		UNION ALL
		SELECT p.id, p.document, p.regulation_no, p.title, p.breadcrumb_path,
		       p.authority_level, p.language, p.created_at, p.updated_at, c.depth + 1
		FROM chain c
		JOIN cross_references cr ON cr.to_regulation_id = c.id AND cr.relation_type = ?
		JOIN regulations p ON p.id = cr.from_regulation_id
		WHERE c.depth < ?
	)
	SELECT id, document, regulation_no, title, breadcrumb_path, authority_level, language, created_at, updated_at, depth
	FROM chain WHERE depth > 0 ORDER BY depth DESC`

	var rows []parentRow
	if err := g.db.WithContext(ctx).Raw(q, regulationID, model.RelationParentChild, maxParentChainDepth).Scan(&rows).Error; err != nil {
		log.Errorf("[GraphClient] get_parent_chain 失败: %v", err)
		return nil, apperr.New(apperr.KindUnavailable, "retrieval.graph", "reference-graph store unavailable", apperr.ErrGraphUnavailable)
	}
	out := make([]model.Regulation, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Regulation)
	}
	return out, nil
}

func (g *graphClient) GetChildren(ctx context.Context, regulationID uint) ([]model.Regulation, error) {
	var regs []model.Regulation
	err := g.db.WithContext(ctx).
		Joins("JOIN cross_references cr ON cr.to_regulation_id = regulations.id").
		Where("cr.from_regulation_id = ? AND cr.relation_type = ?", regulationID, model.RelationParentChild).
		Find(&regs).Error
	if err != nil {
		log.Errorf("[GraphClient] get_children 失败: %v", err)
		return nil, apperr.New(apperr.KindUnavailable, "retrieval.graph", "reference-graph store unavailable", apperr.ErrGraphUnavailable)
	}
	return regs, nil
}

func (g *graphClient) GetCrossReferences(ctx context.Context, regulationID uint) ([]model.CrossReference, error) {
	var refs []model.CrossReference
	err := g.db.WithContext(ctx).
		Where("from_regulation_id = ? OR to_regulation_id = ?", regulationID, regulationID).
		Find(&refs).Error
	if err != nil {
		log.Errorf("[GraphClient] get_cross_references 失败: %v", err)
		return nil, apperr.New(apperr.KindUnavailable, "retrieval.graph", "reference-graph store unavailable", apperr.ErrGraphUnavailable)
	}
	return refs, nil
}

func (g *graphClient) GetInterpretations(ctx context.Context, regulationID uint) ([]model.CrossReference, error) {
	return g.filteredCrossReferences(ctx, regulationID, model.RelationInterpretation)
}

func (g *graphClient) GetAmendments(ctx context.Context, regulationID uint) ([]model.CrossReference, error) {
	return g.filteredCrossReferences(ctx, regulationID, model.RelationAmendment)
}

func (g *graphClient) filteredCrossReferences(ctx context.Context, regulationID uint, relationType string) ([]model.CrossReference, error) {
	var refs []model.CrossReference
	err := g.db.WithContext(ctx).
		Where("(from_regulation_id = ? OR to_regulation_id = ?) AND relation_type = ?", regulationID, regulationID, relationType).
		Find(&refs).Error
	if err != nil {
		log.Errorf("[GraphClient] 查询关系 %s 失败: %v", relationType, err)
		return nil, apperr.New(apperr.KindUnavailable, "retrieval.graph", "reference-graph store unavailable", apperr.ErrGraphUnavailable)
	}
	return refs, nil
}

// GetRelatedByConcept returns regulations linked to a named concept, ordered
// by document then regulation identifier.
func (g *graphClient) GetRelatedByConcept(ctx context.Context, conceptName string) ([]model.Regulation, error) {
	var regs []model.Regulation
	err := g.db.WithContext(ctx).
		Joins("JOIN regulation_concepts rc ON rc.regulation_id = regulations.id").
		Joins("JOIN concepts c ON c.id = rc.concept_id").
		Where("c.name = ?", conceptName).
		Order("regulations.document, regulations.regulation_no").
		Find(&regs).Error
	if err != nil {
		log.Errorf("[GraphClient] get_related_by_concept 失败: %v", err)
		return nil, apperr.New(apperr.KindUnavailable, "retrieval.graph", "reference-graph store unavailable", apperr.ErrGraphUnavailable)
	}
	return regs, nil
}
