// Package rules implements the ordered category-rule matcher. Rules are
// evaluated in stored order and the first match wins; a rule matches only if
// every predicate present in its match set is satisfied.
package rules

import (
	"strings"

	"github.com/stepanyanprod-creator/finance-bot/internal/core"
)

func containsAny(haystack string, needles []string) bool {
	low := strings.ToLower(haystack)
	for _, n := range needles {
		n = strings.TrimSpace(strings.ToLower(n))
		if n == "" {
			continue
		}
		if strings.Contains(low, n) {
			return true
		}
	}
	return false
}

// Matches reports whether the candidate satisfies every predicate of the
// rule's match set. An empty match set matches everything.
func Matches(r core.Rule, c core.Candidate) bool {
	m := r.Match

	if len(m.MerchantContains) > 0 && !containsAny(c.Merchant, m.MerchantContains) {
		return false
	}
	if len(m.ItemContains) > 0 && !containsAny(c.ItemText(), m.ItemContains) {
		return false
	}
	if m.CurrencyIs != "" && !strings.EqualFold(strings.TrimSpace(c.Currency), strings.TrimSpace(m.CurrencyIs)) {
		return false
	}
	if m.PaymentIs != "" && !strings.EqualFold(strings.TrimSpace(c.PaymentMethod), strings.TrimSpace(m.PaymentIs)) {
		return false
	}
	if m.TotalMin != nil && c.Total.LessThan(*m.TotalMin) {
		return false
	}
	if m.TotalMax != nil && c.Total.GreaterThan(*m.TotalMax) {
		return false
	}
	return true
}

// Resolve walks the rules in order and returns the category of the first
// matching rule whose category validates against the taxonomy for the
// candidate's sign. Matches with an invalid category are skipped rather than
// surfaced, so a stale rule never assigns a category outside the taxonomy.
func Resolve(c core.Candidate, list []core.Rule) (string, bool) {
	for _, r := range list {
		if !Matches(r, c) {
			continue
		}
		if name, ok := core.NormalizeCategoryForTotal(r.Category, c.Total); ok {
			return name, true
		}
	}
	return "", false
}

// NextID returns the smallest unused positive rule id.
func NextID(list []core.Rule) int {
	used := make(map[int]bool, len(list))
	for _, r := range list {
		used[r.ID] = true
	}
	id := 1
	for used[id] {
		id++
	}
	return id
}
