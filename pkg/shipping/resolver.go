package shipping

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// Method 配送方式（flat_rate / free_shipping / local_pickup ...）
type Method struct {
	ID          int64
	InstanceID  string // WooCommerce instance id
	MethodType  string
	Title       string
	MethodTitle string
	Enabled     bool
	Cost        string          // 旧版 cost 列，settings 为空时使用
	Settings    json.RawMessage // WooCommerce settings JSON
}

// DisplayTitle 优先使用商家自定义标题
func (m Method) DisplayTitle() string {
	if strings.TrimSpace(m.Title) != "" {
		return m.Title
	}
	return m.MethodTitle
}

// CartProduct 购物车中的商品，只关心运费类别
type CartProduct struct {
	ProductID       int64
	ShippingClass   string
	ShippingClassID *int64
}

// ClassRate 配送方式在某运费类别下的费率；ShippingClassID 为 nil 表示"无类别"默认费率
type ClassRate struct {
	MethodID        int64
	ShippingClassID *int64
	Cost            string
}

// RateStore 费率查询
type RateStore interface {
	// ClassRates 返回方式在指定类别下的费率
	ClassRates(ctx context.Context, methodID int64, classIDs []int64) ([]ClassRate, error)
	// DefaultClassRate 返回"无类别"费率，没有时返回 nil, nil
	DefaultClassRate(ctx context.Context, methodID int64) (*ClassRate, error)
}

// ParseFunc 费用解析函数，便于注入带缓存的实现
type ParseFunc func(raw string) CostExpression

// RateSource 费率来源
type RateSource string

const (
	SourceClassRate   RateSource = "class_rate"
	SourceNoClassRate RateSource = "no_class_rate"
	SourceBaseCost    RateSource = "base_cost"
)

// 费用类型标签
const (
	CostTypeFixed      = "fixed"
	CostTypePercentage = "percentage"
	CostTypeClassBased = "class_based"
	CostTypeBracketed  = "bracketed"
)

// Resolution 单个配送方式的费用结果
type Resolution struct {
	Expression CostExpression
	Cost       EvaluatedCost
	Source     RateSource
}

// CostType 类别费率命中为 class_based，否则按表达式类型
func (r Resolution) CostType() string {
	if r.Source == SourceClassRate {
		return CostTypeClassBased
	}
	switch r.Expression.Kind {
	case KindPercentage:
		return CostTypePercentage
	case KindBracketed:
		return CostTypeBracketed
	default:
		return CostTypeFixed
	}
}

// Resolver 费率解析器
type Resolver struct {
	store RateStore
	parse ParseFunc
}

// NewResolver parse 为 nil 时使用 ParseCost
func NewResolver(store RateStore, parse ParseFunc) *Resolver {
	if parse == nil {
		parse = ParseCost
	}
	return &Resolver{store: store, parse: parse}
}

// Resolve 解析配送方式在当前购物车下的费用。
// 优先级：类别费率（取最大） > 无类别费率 > settings 中的基础费用。
func (r *Resolver) Resolve(ctx context.Context, method Method, cart []CartProduct, cartTotal *decimal.Decimal) (Resolution, error) {
	classIDs := lo.Uniq(lo.FilterMap(cart, func(p CartProduct, _ int) (int64, bool) {
		if p.ShippingClassID == nil {
			return 0, false
		}
		return *p.ShippingClassID, true
	}))

	if len(classIDs) > 0 {
		rates, err := r.store.ClassRates(ctx, method.ID, classIDs)
		if err != nil {
			return Resolution{}, fmt.Errorf("查询类别费率失败: %w", err)
		}
		if best, ok := r.maxRate(rates, cartTotal); ok {
			return best, nil
		}
	}

	def, err := r.store.DefaultClassRate(ctx, method.ID)
	if err != nil {
		return Resolution{}, fmt.Errorf("查询无类别费率失败: %w", err)
	}
	if def != nil {
		expr := r.parse(def.Cost)
		return Resolution{Expression: expr, Cost: expr.Evaluate(cartTotal), Source: SourceNoClassRate}, nil
	}

	raw, err := BaseCost(method)
	if err != nil {
		return Resolution{}, err
	}
	expr := r.parse(raw)
	return Resolution{Expression: expr, Cost: expr.Evaluate(cartTotal), Source: SourceBaseCost}, nil
}

// maxRate 多个类别时取最贵的一个；区间与"结账时计算"按下限比较，返回原值
func (r *Resolver) maxRate(rates []ClassRate, cartTotal *decimal.Decimal) (Resolution, bool) {
	var (
		best  Resolution
		found bool
	)
	for _, rate := range rates {
		expr := r.parse(rate.Cost)
		cost := expr.Evaluate(cartTotal)
		if !found || cost.LowerBound().GreaterThan(best.Cost.LowerBound()) {
			best = Resolution{Expression: expr, Cost: cost, Source: SourceClassRate}
			found = true
		}
	}
	return best, found
}

// BaseCost 从 settings 中取 cost 字段，兼容 {"value": "10"}、"10" 和 10 三种写法
func BaseCost(method Method) (string, error) {
	raw := bytes.TrimSpace(method.Settings)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return method.Cost, nil
	}

	var settings map[string]json.RawMessage
	if err := json.Unmarshal(raw, &settings); err != nil {
		return "", fmt.Errorf("配送方式 %d 的 settings 格式错误: %w", method.ID, err)
	}

	field, ok := settings["cost"]
	if !ok {
		return method.Cost, nil
	}
	return costFieldString(field)
}

func costFieldString(field json.RawMessage) (string, error) {
	field = bytes.TrimSpace(field)
	if len(field) == 0 || bytes.Equal(field, []byte("null")) {
		return "", nil
	}

	switch field[0] {
	case '{':
		var wrapped struct {
			Value json.RawMessage `json:"value"`
		}
		if err := json.Unmarshal(field, &wrapped); err != nil {
			return "", fmt.Errorf("cost 字段格式错误: %w", err)
		}
		return costFieldString(wrapped.Value)
	case '"':
		var s string
		if err := json.Unmarshal(field, &s); err != nil {
			return "", fmt.Errorf("cost 字段格式错误: %w", err)
		}
		return s, nil
	default:
		var n json.Number
		if err := json.Unmarshal(field, &n); err != nil {
			return "", fmt.Errorf("cost 字段格式错误: %w", err)
		}
		return n.String(), nil
	}
}
