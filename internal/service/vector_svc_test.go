package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"

	"qrm_chatbot_api/pkg/utils"
)

type staticEmbedder struct{ calls int }

func (e *staticEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	e.calls++
	return []float32{0.1, 0.2, 0.3}, nil
}

// newChromaServer 模拟 Chroma v1 接口
func newChromaServer(t *testing.T, collectionLookups *int32) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/heartbeat", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"nanosecond heartbeat": 1}`))
	})
	mux.HandleFunc("/api/v1/collections/store1_products", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(collectionLookups, 1)
		_, _ = w.Write([]byte(`{"id":"c-123","name":"store1_products"}`))
	})
	mux.HandleFunc("/api/v1/collections/store9_products", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"NotFoundError"}`))
	})
	mux.HandleFunc("/api/v1/collections/c-123/query", func(w http.ResponseWriter, r *http.Request) {
		var req chromaQueryReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("解析请求失败: %v", err)
		}
		if req.NResults != 3 || len(req.QueryEmbeddings) != 1 {
			t.Errorf("query = %+v", req)
		}
		if siteID, _ := req.Where["site_id"].(float64); siteID != 1 {
			t.Errorf("where = %v, want site_id=1", req.Where)
		}
		_, _ = w.Write([]byte(`{
			"ids": [["a","b","c","d"]],
			"metadatas": [[{"product_id": 102}, {"product_id": "101"}, {"name": "no id"}, {"product_id": 103.0}]],
			"distances": [[0.1, 0.2, 0.3, 0.4]]
		}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestVectorService_SearchProductIDs(t *testing.T) {
	var lookups int32
	srv := newChromaServer(t, &lookups)
	embedder := &staticEmbedder{}
	svc := NewVectorService(utils.NewHTTPClient(utils.HTTPClientOptions{BaseURL: srv.URL}), embedder, zap.NewNop())

	for i := 0; i < 2; i++ {
		ids, err := svc.SearchProductIDs(context.Background(), "store1", 1, "vinyl", 3)
		if err != nil {
			t.Fatalf("SearchProductIDs() error = %v", err)
		}
		want := []int64{102, 101, 103}
		if len(ids) != len(want) {
			t.Fatalf("ids = %v, want %v", ids, want)
		}
		for j := range want {
			if ids[j] != want[j] {
				t.Errorf("ids[%d] = %d, want %d", j, ids[j], want[j])
			}
		}
	}

	if n := atomic.LoadInt32(&lookups); n != 1 {
		t.Errorf("集合 ID 应缓存, lookups = %d", n)
	}
	if embedder.calls != 2 {
		t.Errorf("embed calls = %d, want 2", embedder.calls)
	}
}

func TestVectorService_Errors(t *testing.T) {
	var lookups int32
	srv := newChromaServer(t, &lookups)
	svc := NewVectorService(utils.NewHTTPClient(utils.HTTPClientOptions{BaseURL: srv.URL}), &staticEmbedder{}, zap.NewNop())

	if _, err := svc.SearchProductIDs(context.Background(), "store9", 9, "vinyl", 3); err == nil {
		t.Error("集合不存在时应返回错误")
	}
	if err := svc.Heartbeat(context.Background()); err != nil {
		t.Errorf("Heartbeat() error = %v", err)
	}

	srv.Close()
	if err := svc.Heartbeat(context.Background()); err == nil {
		t.Error("服务关闭后 Heartbeat 应失败")
	}
}

func TestMetadataInt(t *testing.T) {
	tests := map[string]struct {
		want int64
		ok   bool
	}{
		`101`:     {101, true},
		`"102"`:   {102, true},
		`103.0`:   {103, true},
		`"abc"`:   {0, false},
		`null`:    {0, false},
		`{"x":1}`: {0, false},
	}
	for raw, tt := range tests {
		got, ok := metadataInt(json.RawMessage(raw))
		if got != tt.want || ok != tt.ok {
			t.Errorf("metadataInt(%s) = %d, %v; want %d, %v", raw, got, ok, tt.want, tt.ok)
		}
	}
}
