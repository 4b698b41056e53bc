package shipping

import (
	"strconv"
	"strings"
)

// ==================== 区域定义 ====================

// 位置类型
const (
	LocationPostcode = "postcode"
	LocationState    = "state"
	LocationCity     = "city"
	LocationRegion   = "region"
	LocationCountry  = "country"
)

// Location 区域内的一条位置规则，对应 WooCommerce zone_locations
type Location struct {
	Code string `json:"code"`
	Type string `json:"type"`
}

// Zone 配送区域
type Zone struct {
	ID        int64
	Name      string
	Order     int
	Locations []Location // 为空表示匹配所有地址
	Methods   []Method
}

// ==================== 邮编表 ====================

type postcodeRange struct {
	lo, hi int
}

func (r postcodeRange) contains(pc int) bool {
	return pc >= r.lo && pc <= r.hi
}

// stateRanges Australia Post 州/领地邮编分配（含邮政信箱段）
var stateRanges = map[string][]postcodeRange{
	"NSW": {{1000, 1999}, {2000, 2599}, {2619, 2899}, {2921, 2999}},
	"ACT": {{200, 299}, {2600, 2618}, {2900, 2920}},
	"VIC": {{3000, 3999}, {8000, 8999}},
	"QLD": {{4000, 4999}, {9000, 9999}},
	"SA":  {{5000, 5999}},
	"WA":  {{6000, 6999}},
	"TAS": {{7000, 7999}},
	"NT":  {{800, 999}},
}

// stateAliases 州全称到缩写
var stateAliases = map[string]string{
	"NEW SOUTH WALES":              "NSW",
	"AUSTRALIAN CAPITAL TERRITORY": "ACT",
	"VICTORIA":                     "VIC",
	"QUEENSLAND":                   "QLD",
	"SOUTH AUSTRALIA":              "SA",
	"WESTERN AUSTRALIA":            "WA",
	"TASMANIA":                     "TAS",
	"NORTHERN TERRITORY":           "NT",
}

// cityRanges 城市/地区邮编段。
// WOOLLOONGONG 是线上数据里的真实拼写，与 WOLLONGONG 同时保留。
var cityRanges = map[string][]postcodeRange{
	"MELBOURNE":      {{3000, 3207}, {8000, 8399}},
	"SYDNEY":         {{2000, 2234}, {2555, 2574}, {2740, 2786}},
	"BRISBANE":       {{4000, 4207}, {4300, 4305}, {4500, 4519}},
	"PERTH":          {{6000, 6199}},
	"ADELAIDE":       {{5000, 5199}},
	"HOBART":         {{7000, 7099}},
	"CANBERRA":       {{2600, 2620}, {2900, 2914}},
	"DARWIN":         {{800, 832}},
	"GOLD COAST":     {{4207, 4228}},
	"SUNSHINE COAST": {{4550, 4575}},
	"NEWCASTLE":      {{2280, 2310}},
	"WOLLONGONG":     {{2500, 2534}},
	"WOOLLOONGONG":   {{2500, 2534}},
	"GEELONG":        {{3211, 3232}},
	"ST KILDA":       {{3182, 3183}},
}

// metroRanges 名称含 RADIUS/METRO 的区域使用的都市圈范围
var metroRanges = map[string][]postcodeRange{
	"MELBOURNE":    {{3000, 3207}},
	"SYDNEY":       {{2000, 2234}},
	"BRISBANE":     {{4000, 4207}},
	"PERTH":        {{6000, 6199}},
	"ADELAIDE":     {{5000, 5199}},
	"HOBART":       {{7000, 7099}},
	"CANBERRA":     {{2600, 2620}},
	"DARWIN":       {{800, 832}},
	"GEELONG":      {{3211, 3232}},
	"NEWCASTLE":    {{2280, 2310}},
	"WOLLONGONG":   {{2500, 2534}},
	"WOOLLOONGONG": {{2500, 2534}},
}

// ==================== 匹配 ====================

// ParsePostcode 解析澳洲邮编（3~4 位纯数字），失败返回 false
func ParsePostcode(postcode string) (int, bool) {
	s := strings.TrimSpace(postcode)
	if len(s) < 3 || len(s) > 4 {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

// ZoneMatches 判断邮编是否落在区域内。
// 无位置规则的区域匹配任何输入；非法邮编不会匹配任何规则。
func ZoneMatches(postcode string, zone Zone) bool {
	if len(zone.Locations) == 0 {
		return true
	}

	pc, ok := ParsePostcode(postcode)
	if !ok {
		return false
	}
	input := strings.TrimSpace(postcode)

	for _, loc := range zone.Locations {
		switch strings.ToLower(strings.TrimSpace(loc.Type)) {
		case LocationPostcode:
			if matchPostcodeRule(strings.TrimSpace(loc.Code), input, pc) {
				return true
			}
		case LocationState, LocationCity, LocationRegion:
			if matchNamedArea(loc.Code, zone.Name, pc) {
				return true
			}
		case LocationCountry:
			if normalizeCode(loc.Code) == "AU" {
				return true
			}
		}
	}
	return false
}

// FilterZones 按邮编过滤区域，保持原有顺序。
// 邮编为空或非法时返回全部；没有任何区域命中时同样返回全部。
func FilterZones(postcode string, zones []Zone) []Zone {
	if _, ok := ParsePostcode(postcode); !ok {
		return zones
	}

	matched := make([]Zone, 0, len(zones))
	for _, z := range zones {
		if ZoneMatches(postcode, z) {
			matched = append(matched, z)
		}
	}
	if len(matched) == 0 {
		return zones
	}
	return matched
}

// matchPostcodeRule 精确匹配，兼容 WooCommerce 的 "3000...3999" 区间和 "30*" 通配
func matchPostcodeRule(rule, input string, pc int) bool {
	if rule == input {
		return true
	}
	if lo, hi, found := strings.Cut(rule, "..."); found {
		a, okA := ParsePostcode(lo)
		b, okB := ParsePostcode(hi)
		return okA && okB && pc >= a && pc <= b
	}
	if prefix, found := strings.CutSuffix(rule, "*"); found && prefix != "" {
		return strings.HasPrefix(input, prefix)
	}
	return false
}

// matchNamedArea 州/城市查表；两张表都查不到时走区域名称启发式
func matchNamedArea(code, zoneName string, pc int) bool {
	key := normalizeCode(code)
	if alias, ok := stateAliases[key]; ok {
		key = alias
	}

	stateList, inState := stateRanges[key]
	cityList, inCity := cityRanges[key]
	if inState || inCity {
		return inRanges(stateList, pc) || inRanges(cityList, pc)
	}

	return matchMetroHeuristic(zoneName, pc)
}

// matchMetroHeuristic 区域名含 RADIUS 或 METRO 时，用名称中出现的城市的都市圈范围匹配
func matchMetroHeuristic(zoneName string, pc int) bool {
	name := strings.ToUpper(zoneName)
	if !strings.Contains(name, "RADIUS") && !strings.Contains(name, "METRO") {
		return false
	}
	for city, ranges := range metroRanges {
		if strings.Contains(name, city) && inRanges(ranges, pc) {
			return true
		}
	}
	return false
}

func inRanges(ranges []postcodeRange, pc int) bool {
	for _, r := range ranges {
		if r.contains(pc) {
			return true
		}
	}
	return false
}

// normalizeCode "AU:VIC" -> "VIC"，"gold_coast" -> "GOLD COAST"
func normalizeCode(code string) string {
	s := strings.ToUpper(strings.TrimSpace(code))
	if i := strings.LastIndex(s, ":"); i >= 0 {
		s = s[i+1:]
	}
	s = strings.NewReplacer("_", " ", "-", " ").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}
