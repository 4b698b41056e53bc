package shipping

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// ==================== 费用表达式 ====================

// CostKind 费用表达式类型
type CostKind int

const (
	KindFixed      CostKind = iota // 固定金额
	KindPercentage                 // 购物车金额百分比
	KindBracketed                  // WooCommerce [fee] 短代码，带上下限
)

func (k CostKind) String() string {
	switch k {
	case KindPercentage:
		return "percentage"
	case KindBracketed:
		return "bracketed"
	default:
		return "fixed"
	}
}

// CostExpression 解析后的费用表达式，创建后不可变
type CostExpression struct {
	Kind    CostKind
	Amount  decimal.Decimal // KindFixed
	Percent decimal.Decimal // KindPercentage / KindBracketed
	MinFee  decimal.Decimal // KindBracketed，默认 0
	MaxFee  decimal.Decimal // KindBracketed，HasMax=false 表示无上限
	HasMax  bool

	// Raw 原始字符串
	Raw string
	// Label 无法解析出数字时保留的原文，调用方可原样展示
	Label string
}

var (
	feeTagPattern   = regexp.MustCompile(`(?i)\[fee\b([^\]]*)\]`)
	feeAttrPattern  = regexp.MustCompile(`(?i)([a-z_]+)\s*=\s*(?:"([^"]*)"|'([^']*)'|([^\s\]]+))`)
	leadingNumber   = regexp.MustCompile(`^\s*(-?\d+(?:\.\d+)?)`)
	anyNumber       = regexp.MustCompile(`-?\d+(?:\.\d+)?`)
	plainNumber     = regexp.MustCompile(`^-?\d+(?:\.\d+)?$`)
	moneyCleaner    = strings.NewReplacer("$", "", ",", "")
	percentStripper = strings.NewReplacer("%", "", ",", "")
)

// ParseCost 将 WooCommerce 的原始费用字符串解析为 CostExpression。
// 永不失败：无法识别的输入降级为 0 元的 KindFixed。
func ParseCost(raw string) CostExpression {
	trimmed := strings.TrimSpace(raw)

	if expr, ok := parseBracketed(trimmed); ok {
		expr.Raw = raw
		return expr
	}

	if strings.Contains(trimmed, "%") {
		if m := leadingNumber.FindStringSubmatch(moneyCleaner.Replace(percentStripper.Replace(trimmed))); m != nil {
			if pct, err := decimal.NewFromString(m[1]); err == nil {
				return CostExpression{Kind: KindPercentage, Percent: pct, Raw: raw}
			}
		}
	}

	cleaned := strings.TrimSpace(moneyCleaner.Replace(trimmed))
	if cleaned == "" {
		return CostExpression{Kind: KindFixed, Amount: decimal.Zero, Raw: raw}
	}
	if plainNumber.MatchString(cleaned) {
		if amount, err := decimal.NewFromString(cleaned); err == nil {
			return CostExpression{Kind: KindFixed, Amount: amount, Raw: raw}
		}
	}

	// 尽力提取第一个数字，例如 "10 * [qty]"
	if m := anyNumber.FindString(cleaned); m != "" {
		if amount, err := decimal.NewFromString(m); err == nil {
			return CostExpression{Kind: KindFixed, Amount: amount, Raw: raw}
		}
	}

	return CostExpression{Kind: KindFixed, Amount: decimal.Zero, Raw: raw, Label: trimmed}
}

// parseBracketed 解析 [fee percent="10" min_fee="30" max_fee="75"]，percent 缺失视为不匹配
func parseBracketed(s string) (CostExpression, bool) {
	tag := feeTagPattern.FindStringSubmatch(s)
	if tag == nil {
		return CostExpression{}, false
	}

	attrs := make(map[string]string, 3)
	for _, m := range feeAttrPattern.FindAllStringSubmatch(tag[1], -1) {
		val := m[2]
		if val == "" {
			val = m[3]
		}
		if val == "" {
			val = m[4]
		}
		attrs[strings.ToLower(m[1])] = strings.TrimSpace(val)
	}

	pct, ok := parseDecimalAttr(attrs, "percent")
	if !ok {
		return CostExpression{}, false
	}

	expr := CostExpression{Kind: KindBracketed, Percent: pct, MinFee: decimal.Zero}
	if v, ok := parseDecimalAttr(attrs, "min_fee"); ok {
		expr.MinFee = v
	}
	if v, ok := parseDecimalAttr(attrs, "max_fee"); ok {
		expr.MaxFee = v
		expr.HasMax = true
	}
	return expr, true
}

func parseDecimalAttr(attrs map[string]string, key string) (decimal.Decimal, bool) {
	raw, ok := attrs[key]
	if !ok || raw == "" {
		return decimal.Zero, false
	}
	cleaned := strings.TrimSpace(moneyCleaner.Replace(percentStripper.Replace(raw)))
	if !plainNumber.MatchString(cleaned) {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// ==================== 求值 ====================

// CostState 求值结果状态
type CostState int

const (
	StateResolved   CostState = iota // 已得到确定金额
	StateUnresolved                  // 缺少购物车金额，结账时计算
	StateRange                       // 缺少购物车金额，仅知道区间
)

// CalculatedAtCheckout 百分比费用在没有购物车金额时的展示文本
const CalculatedAtCheckout = "Calculated at checkout"

var hundred = decimal.NewFromInt(100)

// EvaluatedCost 费用求值结果
type EvaluatedCost struct {
	State  CostState
	Amount decimal.Decimal // StateResolved
	Min    decimal.Decimal // StateRange
	Max    decimal.Decimal // StateRange 且 HasMax
	HasMax bool
	Label  string
}

// Evaluate 按购物车金额求值，cartTotal 为 nil 表示未知
func (e CostExpression) Evaluate(cartTotal *decimal.Decimal) EvaluatedCost {
	switch e.Kind {
	case KindPercentage:
		if cartTotal == nil {
			return EvaluatedCost{State: StateUnresolved}
		}
		return EvaluatedCost{State: StateResolved, Amount: cartTotal.Mul(e.Percent).Div(hundred)}

	case KindBracketed:
		if cartTotal == nil {
			return EvaluatedCost{State: StateRange, Min: e.MinFee, Max: e.MaxFee, HasMax: e.HasMax}
		}
		fee := cartTotal.Mul(e.Percent).Div(hundred)
		if e.HasMax && fee.GreaterThan(e.MaxFee) {
			fee = e.MaxFee
		}
		// 下限优先，兼容 min > max 的脏数据
		if fee.LessThan(e.MinFee) {
			fee = e.MinFee
		}
		return EvaluatedCost{State: StateResolved, Amount: fee}

	default:
		return EvaluatedCost{State: StateResolved, Amount: e.Amount, Label: e.Label}
	}
}

// LowerBound 用于比较大小：区间取下限，未定取 0
func (c EvaluatedCost) LowerBound() decimal.Decimal {
	switch c.State {
	case StateRange:
		return c.Min
	case StateUnresolved:
		return decimal.Zero
	default:
		return c.Amount
	}
}

// Display 展示文本："$12.50"、"$30.00 - $75.00"、"From $30.00" 或 "Calculated at checkout"
func (c EvaluatedCost) Display() string {
	switch c.State {
	case StateUnresolved:
		return CalculatedAtCheckout
	case StateRange:
		if !c.HasMax {
			return "From " + FormatMoney(c.Min)
		}
		return FormatMoney(c.Min) + " - " + FormatMoney(c.Max)
	default:
		return FormatMoney(c.Amount)
	}
}

// FormatMoney 格式化为 "$X.XX"
func FormatMoney(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}
