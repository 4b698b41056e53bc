package service

import (
	"context"
	"errors"
	"testing"

	"qrm_chatbot_api/internal/api/dto"
	"qrm_chatbot_api/internal/model"
)

func TestKnowledgeService_SearchProducts_SQL(t *testing.T) {
	db := setupServiceTestDB(t)
	seedStore(t, db)
	svc := newTestServices(t, db, nil, nil).knowledge

	resp, err := svc.SearchProducts(context.Background(), &dto.ProductSearchReq{Query: "vinyl"})
	if err != nil {
		t.Fatalf("SearchProducts() error = %v", err)
	}
	if resp.Source != SearchSourceSQL {
		t.Errorf("source = %s, want sql", resp.Source)
	}
	if resp.Count != 1 || resp.Products[0].WooID != 101 {
		t.Fatalf("products = %+v", resp.Products)
	}
	if resp.Products[0].Price != "$100.00" || !resp.Products[0].InStock {
		t.Errorf("price/in_stock = %s/%v", resp.Products[0].Price, resp.Products[0].InStock)
	}
}

func TestKnowledgeService_SearchProducts_Vector(t *testing.T) {
	db := setupServiceTestDB(t)
	seedStore(t, db)
	vector := &fakeVector{ids: []int64{102, 999, 101, 102}}
	svc := newTestServices(t, db, nil, vector).knowledge

	resp, err := svc.SearchProducts(context.Background(), &dto.ProductSearchReq{Query: "quiet room", SiteName: "store1", Limit: 5})
	if err != nil {
		t.Fatalf("SearchProducts() error = %v", err)
	}
	if resp.Source != SearchSourceVector {
		t.Errorf("source = %s, want vector", resp.Source)
	}
	// 保持相似度顺序，忽略不存在的商品，去重
	if resp.Count != 2 || resp.Products[0].WooID != 102 || resp.Products[1].WooID != 101 {
		t.Errorf("products = %+v", resp.Products)
	}
}

func TestKnowledgeService_SearchProducts_VectorFallback(t *testing.T) {
	db := setupServiceTestDB(t)
	seedStore(t, db)

	tests := []struct {
		name   string
		vector *fakeVector
	}{
		{"向量检索出错", &fakeVector{err: errors.New("chroma down")}},
		{"向量检索无结果", &fakeVector{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestServices(t, db, nil, tt.vector).knowledge
			resp, err := svc.SearchProducts(context.Background(), &dto.ProductSearchReq{Query: "foam"})
			if err != nil {
				t.Fatalf("SearchProducts() error = %v", err)
			}
			if tt.vector.calls != 1 {
				t.Errorf("vector calls = %d, want 1", tt.vector.calls)
			}
			if resp.Source != SearchSourceSQL || resp.Count != 1 {
				t.Errorf("应回退到 SQL 检索, got %s/%d", resp.Source, resp.Count)
			}
		})
	}
}

func TestKnowledgeService_UnknownSite(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := newTestServices(t, db, nil, nil).knowledge

	if _, err := svc.SearchProducts(context.Background(), &dto.ProductSearchReq{Query: "x", SiteName: "nope"}); !errors.Is(err, ErrSiteNotFound) {
		t.Errorf("SearchProducts err = %v, want ErrSiteNotFound", err)
	}
	if _, err := svc.GetCategories(context.Background(), "nope"); !errors.Is(err, ErrSiteNotFound) {
		t.Errorf("GetCategories err = %v, want ErrSiteNotFound", err)
	}
}

func TestKnowledgeService_GetProduct(t *testing.T) {
	db := setupServiceTestDB(t)
	seedStore(t, db)
	svc := newTestServices(t, db, nil, nil).knowledge

	p, err := svc.GetProduct(context.Background(), "store1", 103)
	if err != nil {
		t.Fatalf("GetProduct() error = %v", err)
	}
	if len(p.Variations) != 2 {
		t.Errorf("len(variations) = %d, want 2", len(p.Variations))
	}
	if p.Price != "from $19.00" {
		t.Errorf("price = %s, want from $19.00", p.Price)
	}

	if _, err := svc.GetProduct(context.Background(), "store1", 404); !errors.Is(err, ErrProductNotFound) {
		t.Errorf("err = %v, want ErrProductNotFound", err)
	}
}

func TestKnowledgeService_GetCategories(t *testing.T) {
	db := setupServiceTestDB(t)
	seedStore(t, db)
	svc := newTestServices(t, db, nil, nil).knowledge

	resp, err := svc.GetCategories(context.Background(), "store1")
	if err != nil {
		t.Fatalf("GetCategories() error = %v", err)
	}
	if len(resp.Categories) != 2 || resp.Categories[0].Name != "Acoustics" || resp.Categories[0].ID != 8 {
		t.Errorf("categories = %+v", resp.Categories)
	}
}

func TestDisplayPrice(t *testing.T) {
	tests := []struct {
		name    string
		product model.Product
		want    string
	}{
		{"简单商品", model.Product{Price: "12.5"}, "$12.50"},
		{"无价格", model.Product{}, "Price on request"},
		{"无法解析", model.Product{Price: "POA"}, "POA"},
		{"可变商品取最低价", model.Product{Price: "99", Variations: []model.ProductVariation{{Price: "30"}, {Price: ""}, {Price: "12.25"}}}, "from $12.25"},
		{"规格都没有价格", model.Product{Price: "40", Variations: []model.ProductVariation{{Price: ""}}}, "$40.00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DisplayPrice(tt.product); got != tt.want {
				t.Errorf("DisplayPrice() = %q, want %q", got, tt.want)
			}
		})
	}
}
