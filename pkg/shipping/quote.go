package shipping

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrSiteNotFound 站点不存在
var ErrSiteNotFound = errors.New("site not found")

// Site 报价所需的站点信息
type Site struct {
	ID   int64
	Name string
}

// Store 报价依赖的只读数据源
type Store interface {
	RateStore
	// FindSite 站点不存在时返回 ErrSiteNotFound
	FindSite(ctx context.Context, name string) (*Site, error)
	// ListZones 返回站点下的区域及其配送方式
	ListZones(ctx context.Context, siteID int64) ([]Zone, error)
}

// QuoteRequest 报价请求
type QuoteRequest struct {
	SiteName  string
	Site      *Site // 调用方已查到站点时传入，跳过 FindSite
	Cart      []CartProduct
	Postcode  string
	CartTotal *decimal.Decimal // nil 表示未知
}

// Quote 一条运费报价
type Quote struct {
	MethodID    string           `json:"method_id"`
	MethodType  string           `json:"method_type"`
	Title       string           `json:"title"`
	ZoneID      int64            `json:"zone_id"`
	ZoneName    string           `json:"zone_name"`
	Cost        string           `json:"cost"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	CostType    string           `json:"cost_type"`
	RawCost     string           `json:"raw_cost"`
	Description string           `json:"description,omitempty"`
}

// IsFree 是否免运费
func (q Quote) IsFree() bool {
	return q.Amount != nil && q.Amount.IsZero()
}

// Quoter 运费报价器
type Quoter struct {
	store    Store
	resolver *Resolver
	logger   *zap.Logger
}

// Option 报价器选项
type Option func(*Quoter)

// WithLogger 注入日志
func WithLogger(logger *zap.Logger) Option {
	return func(q *Quoter) {
		if logger != nil {
			q.logger = logger
		}
	}
}

// WithParser 注入费用解析函数（例如带缓存的实现）
func WithParser(parse ParseFunc) Option {
	return func(q *Quoter) {
		q.resolver = NewResolver(q.store, parse)
	}
}

// NewQuoter 创建报价器
func NewQuoter(store Store, opts ...Option) *Quoter {
	q := &Quoter{
		store:    store,
		resolver: NewResolver(store, nil),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Quote 生成报价列表：区域顺序 > 方式顺序，仅启用的方式，不去重，不截断。
// 站点不存在返回空列表；区域加载失败原样返回错误；单个方式失败则跳过并记录日志。
func (q *Quoter) Quote(ctx context.Context, req QuoteRequest) ([]Quote, error) {
	site := req.Site
	if site == nil {
		found, err := q.store.FindSite(ctx, req.SiteName)
		if err != nil {
			if errors.Is(err, ErrSiteNotFound) {
				return []Quote{}, nil
			}
			return nil, err
		}
		site = found
	}

	zones, err := q.store.ListZones(ctx, site.ID)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(zones, func(i, j int) bool { return zones[i].Order < zones[j].Order })
	zones = FilterZones(req.Postcode, zones)

	quotes := make([]Quote, 0)
	for _, zone := range zones {
		for _, method := range zone.Methods {
			if !method.Enabled {
				continue
			}

			res, err := q.resolver.Resolve(ctx, method, req.Cart, req.CartTotal)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return nil, ctxErr
				}
				q.logger.Warn("配送方式费用解析失败，已跳过",
					zap.String("site", site.Name),
					zap.Int64("zone_id", zone.ID),
					zap.Int64("method_id", method.ID),
					zap.Error(err),
				)
				continue
			}

			quotes = append(quotes, buildQuote(zone, method, res))
		}
	}

	return quotes, nil
}

func buildQuote(zone Zone, method Method, res Resolution) Quote {
	quote := Quote{
		MethodID:    fmt.Sprintf("%d_%d", zone.ID, method.ID),
		MethodType:  method.MethodType,
		Title:       method.DisplayTitle(),
		ZoneID:      zone.ID,
		ZoneName:    zone.Name,
		Cost:        res.Cost.Display(),
		CostType:    res.CostType(),
		RawCost:     res.Expression.Raw,
		Description: res.Cost.Label,
	}
	if res.Cost.State == StateResolved {
		amount := res.Cost.Amount
		quote.Amount = &amount
	}
	return quote
}
