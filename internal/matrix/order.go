package matrix

import (
	"math"
	"sort"
	"strings"

	"hazelinvoice/backend/internal/domain"
)

var priorityTokens = []string{
	"autoliv", "autolive", "taiyo", "gmc", "global", "uct", "knowles", "knowless",
	"merasenko", "teradyne", "jpkitchen", "jpmorgan", "cebukitchen", "cebukit",
	"bakery", "wlahug", "mitsumi", "feeder", "mphokim", "phokim",
}

// NormalizeName lowercases name and keeps only letters and digits.
func NormalizeName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// OutletRank is the index of the first priority token matching name, or
// math.MaxInt when none matches.
func OutletRank(name string) int {
	normalized := NormalizeName(name)
	if normalized == "" {
		return math.MaxInt
	}
	for i, token := range priorityTokens {
		if strings.Contains(normalized, token) || strings.Contains(token, normalized) {
			return i
		}
	}
	return math.MaxInt
}

// SortOutlets orders outlets by priority rank, then name.
func SortOutlets(outlets []domain.Outlet) {
	sort.SliceStable(outlets, func(i, j int) bool {
		ri, rj := OutletRank(outlets[i].Name), OutletRank(outlets[j].Name)
		if ri != rj {
			return ri < rj
		}
		return outlets[i].Name < outlets[j].Name
	})
}

// SortProducts orders products by name, then id.
func SortProducts(products []domain.Product) {
	sort.SliceStable(products, func(i, j int) bool {
		if products[i].Name != products[j].Name {
			return products[i].Name < products[j].Name
		}
		return products[i].ID < products[j].ID
	})
}

// Matcher attributes receipts to outlets. Receipts carrying an outlet id match
// by id; legacy receipts without one match by case-insensitive name.
type Matcher struct {
	byID   map[int64]struct{}
	byName map[string]int64
}

func NewMatcher(outlets []domain.Outlet) Matcher {
	m := Matcher{
		byID:   make(map[int64]struct{}, len(outlets)),
		byName: make(map[string]int64, len(outlets)),
	}
	for _, o := range outlets {
		m.byID[o.ID] = struct{}{}
		key := strings.ToLower(strings.TrimSpace(o.Name))
		if _, exists := m.byName[key]; !exists {
			m.byName[key] = o.ID
		}
	}
	return m
}

// Match returns the outlet a receipt belongs to.
func (m Matcher) Match(r domain.Receipt) (int64, bool) {
	if r.OutletID != nil {
		_, ok := m.byID[*r.OutletID]
		return *r.OutletID, ok
	}
	name := strings.ToLower(strings.TrimSpace(r.OutletName))
	if name == "" {
		return 0, false
	}
	id, ok := m.byName[name]
	return id, ok
}
