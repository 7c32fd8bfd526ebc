// Package es 提供了与 Elasticsearch 交互的客户端功能：承载 C1（向量检索）
// 与 C2（词法检索）两条检索腿共用的单一索引。
package es

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"bvrag/internal/config"
	"bvrag/pkg/log"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

var ESClient *elasticsearch.Client

// ChunkDocument 是存储在 Elasticsearch 中的法规条文切片文档，承载向量与全文两种检索方式。
type ChunkDocument struct {
	ChunkID        uint      `json:"chunk_id"`
	RegulationID   uint      `json:"regulation_id"`
	Document       string    `json:"document"`
	RegulationNo   string    `json:"regulation_no"`
	BreadcrumbPath string    `json:"breadcrumb_path"`
	AuthorityLevel string    `json:"authority_level"`
	TextContent    string    `json:"text_content"`
	Vector         []float32 `json:"vector"`
	ChunkType      string    `json:"chunk_type"`
}

// InitES 初始化 Elasticsearch 客户端
func InitES(esCfg config.ElasticsearchConfig) error {
	cfg := elasticsearch.Config{
		Addresses: []string{esCfg.Addresses},
		Username:  esCfg.Username,
		Password:  esCfg.Password,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}
	client, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return err
	}
	ESClient = client
	return createIndexIfNotExists(esCfg.IndexName)
}

// createIndexIfNotExists 检查索引是否存在，如果不存在则创建它。
func createIndexIfNotExists(indexName string) error {
	res, err := ESClient.Indices.Exists([]string{indexName})
	if err != nil {
		log.Errorf("检查索引是否存在时出错: %v", err)
		return err
	}
	if !res.IsError() && res.StatusCode == http.StatusOK {
		log.Infof("索引 '%s' 已存在", indexName)
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		log.Errorf("检查索引 '%s' 是否存在时收到意外的状态码: %d", indexName, res.StatusCode)
		return fmt.Errorf("检查索引是否存在时收到意外的状态码: %d", res.StatusCode)
	}

	// regulation_chunks 的映射：1024 维稠密向量（匹配 embedding 配置），
	// ik 中英双语分词用于法规原文/译文的词法检索。
	mapping := `{
		"mappings": {
			"properties": {
				"chunk_id": { "type": "long" },
				"regulation_id": { "type": "long" },
				"document": { "type": "keyword" },
				"regulation_no": { "type": "keyword" },
				"breadcrumb_path": {
					"type": "text",
					"analyzer": "ik_max_word",
					"search_analyzer": "ik_smart"
				},
				"authority_level": { "type": "keyword" },
				"chunk_type": { "type": "keyword" },
				"text_content": {
					"type": "text",
					"analyzer": "ik_max_word",
					"search_analyzer": "ik_smart"
				},
				"vector": {
					"type": "dense_vector",
					"dims": 1024,
					"index": true,
					"similarity": "cosine"
				}
			}
		}
	}`

	res, err = ESClient.Indices.Create(
		indexName,
		ESClient.Indices.Create.WithBody(strings.NewReader(mapping)),
	)
	if err != nil {
		log.Errorf("创建索引 '%s' 失败: %v", indexName, err)
		return err
	}
	if res.IsError() {
		log.Errorf("创建索引 '%s' 时 Elasticsearch 返回错误: %s", indexName, res.String())
		return errors.New("创建索引时 Elasticsearch 返回错误")
	}

	log.Infof("索引 '%s' 创建成功", indexName)
	return nil
}

// IndexDocument 将单个切片文档索引到 Elasticsearch。
func IndexDocument(ctx context.Context, indexName string, doc ChunkDocument) error {
	docBytes, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	req := esapi.IndexRequest{
		Index:      indexName,
		DocumentID: fmt.Sprintf("%d", doc.ChunkID),
		Body:       bytes.NewReader(docBytes),
		Refresh:    "true",
	}

	res, err := req.Do(ctx, ESClient)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		log.Errorf("索引文档到 Elasticsearch 出错: %s", res.String())
		return errors.New("failed to index document")
	}

	return nil
}

// rawSearchHit is the subset of an ES search hit shared by both KNN and lexical queries.
type rawSearchHit struct {
	Score  float64       `json:"_score"`
	Source ChunkDocument `json:"_source"`
}

type searchResponse struct {
	Hits struct {
		Hits []rawSearchHit `json:"hits"`
	} `json:"hits"`
}

// SearchKNN runs a k-NN dense_vector query against the index (C1 Vector Index Client).
func SearchKNN(ctx context.Context, indexName string, vector []float32, k int) ([]rawSearchHit, error) {
	body := map[string]interface{}{
		"knn": map[string]interface{}{
			"field":         "vector",
			"query_vector":  vector,
			"k":             k,
			"num_candidates": k * 10,
		},
		"size": k,
	}
	return runSearch(ctx, indexName, body)
}

// SearchLexical runs a BM25-equivalent multi_match query against the index (C2 Lexical Index Client).
func SearchLexical(ctx context.Context, indexName string, query string, k int) ([]rawSearchHit, error) {
	body := map[string]interface{}{
		"size": k,
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  query,
				"fields": []string{"text_content^1.0", "breadcrumb_path^2.0"},
			},
		},
	}
	return runSearch(ctx, indexName, body)
}

// SearchByRegulationNumber resolves an exact regulation/chapter identifier, e.g. "SOLAS II-2/10".
func SearchByRegulationNumber(ctx context.Context, indexName string, regNo string, k int) ([]rawSearchHit, error) {
	body := map[string]interface{}{
		"size": k,
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"should": []map[string]interface{}{
					{"term": map[string]interface{}{"regulation_no": regNo}},
					{"match_phrase": map[string]interface{}{"breadcrumb_path": regNo}},
				},
				"minimum_should_match": 1,
			},
		},
	}
	return runSearch(ctx, indexName, body)
}

func runSearch(ctx context.Context, indexName string, body map[string]interface{}) ([]rawSearchHit, error) {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	res, err := ESClient.Search(
		ESClient.Search.WithContext(ctx),
		ESClient.Search.WithIndex(indexName),
		ESClient.Search.WithBody(bytes.NewReader(bodyBytes)),
	)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("elasticsearch search error: %s", res.String())
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}
	return parsed.Hits.Hits, nil
}

// Hit is the public alias used outside this package.
type Hit = rawSearchHit

// CountDocuments returns the index's total document count, used by the admin
// stats endpoint's "vector_points" figure (spec.md §6).
func CountDocuments(ctx context.Context, indexName string) (int64, error) {
	res, err := ESClient.Count(
		ESClient.Count.WithContext(ctx),
		ESClient.Count.WithIndex(indexName),
	)
	if err != nil {
		return 0, err
	}
	defer res.Body.Close()

	if res.IsError() {
		return 0, fmt.Errorf("elasticsearch count error: %s", res.String())
	}

	var parsed struct {
		Count int64 `json:"count"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return 0, fmt.Errorf("failed to decode count response: %w", err)
	}
	return parsed.Count, nil
}
