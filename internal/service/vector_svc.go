package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"qrm_chatbot_api/pkg/utils"
)

// Embedder 文本向量化（langchaingo embeddings.Embedder 满足此接口）
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorSearcher 商品向量检索
type VectorSearcher interface {
	// SearchProductIDs 返回按相似度排序的 WooCommerce 商品 ID
	SearchProductIDs(ctx context.Context, siteName string, siteID int64, query string, limit int) ([]int64, error)
	Heartbeat(ctx context.Context) error
}

// ==================== Chroma REST 客户端 ====================

// VectorService 通过 Chroma HTTP API 检索商品向量，集合名为 <site>_products
type VectorService struct {
	client      *resty.Client
	embedder    Embedder
	collections *utils.Cache[string, string] // 集合名 -> 集合 ID
	logger      *zap.Logger
}

func NewVectorService(client *resty.Client, embedder Embedder, logger *zap.Logger) *VectorService {
	return &VectorService{
		client:      client,
		embedder:    embedder,
		collections: utils.NewCache[string, string](0),
		logger:      logger,
	}
}

type chromaCollection struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type chromaQueryReq struct {
	QueryEmbeddings [][]float32    `json:"query_embeddings"`
	NResults        int            `json:"n_results"`
	Where           map[string]any `json:"where,omitempty"`
	Include         []string       `json:"include"`
}

type chromaQueryResp struct {
	IDs       [][]string                     `json:"ids"`
	Metadatas [][]map[string]json.RawMessage `json:"metadatas"`
	Distances [][]float64                    `json:"distances"`
}

type chromaError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Heartbeat 健康检查
func (s *VectorService) Heartbeat(ctx context.Context) error {
	resp, err := s.client.R().SetContext(ctx).Get("/api/v1/heartbeat")
	if err != nil {
		return fmt.Errorf("向量库不可达: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("向量库异常 [%d]", resp.StatusCode())
	}
	return nil
}

func (s *VectorService) SearchProductIDs(ctx context.Context, siteName string, siteID int64, query string, limit int) ([]int64, error) {
	collectionID, err := s.collectionID(ctx, siteName+"_products")
	if err != nil {
		return nil, err
	}

	embedding, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("生成查询向量失败: %w", err)
	}

	var result chromaQueryResp
	var apiErr chromaError
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(chromaQueryReq{
			QueryEmbeddings: [][]float32{embedding},
			NResults:        limit,
			Where:           map[string]any{"site_id": siteID},
			Include:         []string{"metadatas", "distances"},
		}).
		SetResult(&result).
		SetError(&apiErr).
		Post("/api/v1/collections/" + collectionID + "/query")
	if err != nil {
		return nil, fmt.Errorf("向量检索请求失败: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("向量检索失败 [%d]: %s%s", resp.StatusCode(), apiErr.Error, apiErr.Message)
	}

	if len(result.Metadatas) == 0 {
		return nil, nil
	}

	ids := make([]int64, 0, len(result.Metadatas[0]))
	for _, meta := range result.Metadatas[0] {
		id, ok := metadataInt(meta["product_id"])
		if !ok {
			s.logger.Debug("向量结果缺少 product_id", zap.String("collection", siteName+"_products"))
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// collectionID 集合 ID 不会变化，首次查询后缓存
func (s *VectorService) collectionID(ctx context.Context, name string) (string, error) {
	if id, ok := s.collections.Get(name); ok {
		return id, nil
	}

	var coll chromaCollection
	resp, err := s.client.R().SetContext(ctx).SetResult(&coll).Get("/api/v1/collections/" + name)
	if err != nil {
		return "", fmt.Errorf("查询向量集合失败: %w", err)
	}
	if resp.IsError() || coll.ID == "" {
		return "", fmt.Errorf("向量集合 %s 不存在 [%d]", name, resp.StatusCode())
	}

	s.collections.Set(name, coll.ID)
	return coll.ID, nil
}

// metadataInt product_id 可能以数字或字符串写入
func metadataInt(raw json.RawMessage) (int64, bool) {
	if len(raw) == 0 {
		return 0, false
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if id, err := n.Int64(); err == nil {
			return id, true
		}
		if f, err := n.Float64(); err == nil {
			return int64(f), true
		}
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if id, err := strconv.ParseInt(s, 10, 64); err == nil {
			return id, true
		}
	}
	return 0, false
}
