package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Category is one entry of the fixed taxonomy. The catalog is immutable;
// rules and transactions validate against it, never extend it.
type Category struct {
	ID       string
	Name     string
	Emoji    string
	Keywords []string
}

// ExpenseCategories is the closed catalog valid for negative totals.
var ExpenseCategories = []Category{
	{ID: "nutrition", Name: "Nutrition", Emoji: "🍎", Keywords: []string{
		"bread", "milk", "meat", "chicken", "fish", "vegetables", "fruit",
		"cheese", "yogurt", "eggs", "pasta", "rice", "flour", "sugar",
		"rewe", "lidl", "aldi", "edeka", "kaufland", "netto", "penny",
		"supermarket", "grocery",
	}},
	{ID: "housing", Name: "Housing", Emoji: "🏠", Keywords: []string{
		"rent", "landlord", "utilities", "electricity", "gas", "water",
		"heating", "furniture", "repair", "appliance",
	}},
	{ID: "household", Name: "Household", Emoji: "🧽", Keywords: []string{
		"detergent", "toilet paper", "napkins", "sponge", "dishes",
		"towels", "vacuum", "cleaning", "dm", "rossmann",
	}},
	{ID: "transport", Name: "Transport", Emoji: "🚗", Keywords: []string{
		"fuel", "petrol", "diesel", "parking", "bus", "metro", "taxi",
		"train", "flight", "ticket", "shell", "esso", "uber", "bolt",
	}},
	{ID: "utilities", Name: "Utilities & Telecom", Emoji: "📱", Keywords: []string{
		"internet", "mobile", "phone", "sim", "roaming", "wifi", "router",
		"vodafone", "telekom", "o2",
	}},
	{ID: "health", Name: "Health & Beauty", Emoji: "💊", Keywords: []string{
		"pharmacy", "apotheke", "medicine", "vitamins", "doctor", "dentist",
		"shampoo", "cosmetics", "fitness", "gym", "yoga", "pool",
	}},
	{ID: "clothing", Name: "Clothing & Shoes", Emoji: "👕", Keywords: []string{
		"shirt", "jeans", "dress", "jacket", "shoes", "sneakers", "socks",
		"h&m", "zara", "uniqlo", "adidas", "nike",
	}},
	{ID: "education", Name: "Education", Emoji: "📚", Keywords: []string{
		"book", "course", "training", "seminar", "tuition", "language",
		"udemy", "coursera",
	}},
	{ID: "entertainment", Name: "Entertainment", Emoji: "🎭", Keywords: []string{
		"cinema", "movie", "concert", "theater", "museum", "game", "hobby",
		"netflix", "spotify", "steam",
	}},
	{ID: "eating_out", Name: "Eating Out", Emoji: "🍽️", Keywords: []string{
		"restaurant", "cafe", "bar", "pizza", "sushi", "burger", "coffee",
		"mcdonalds", "delivery", "lieferando",
	}},
	{ID: "gifts", Name: "Gifts & Charity", Emoji: "🎁", Keywords: []string{
		"gift", "present", "birthday", "donation", "charity", "flowers",
	}},
	{ID: "electronics", Name: "Electronics", Emoji: "💻", Keywords: []string{
		"laptop", "phone", "tablet", "monitor", "keyboard", "cable",
		"charger", "mediamarkt", "saturn",
	}},
	{ID: "software", Name: "Software", Emoji: "🖥️", Keywords: []string{
		"license", "subscription", "saas", "cloud", "hosting", "domain",
	}},
	{ID: "banking", Name: "Banking", Emoji: "🏦", Keywords: []string{
		"fee", "commission", "interest", "exchange", "atm", "withdrawal",
	}},
	{ID: "other", Name: "Other", Emoji: "📦", Keywords: nil},
}

// IncomeCategories is the closed catalog valid for positive totals.
var IncomeCategories = []Category{
	{ID: "salary", Name: "Salary", Emoji: "💼", Keywords: []string{
		"salary", "wage", "payroll", "bonus",
	}},
	{ID: "freelance", Name: "Freelance", Emoji: "🧑‍💻", Keywords: []string{
		"freelance", "invoice", "contract", "client",
	}},
	{ID: "business", Name: "Business", Emoji: "🏢", Keywords: []string{
		"revenue", "sales", "dividend payout",
	}},
	{ID: "investments", Name: "Investments", Emoji: "📈", Keywords: []string{
		"dividend", "coupon", "interest", "capital gain",
	}},
	{ID: "gifts_income", Name: "Gifts Received", Emoji: "🎉", Keywords: []string{
		"gift", "present",
	}},
	{ID: "refunds", Name: "Refunds", Emoji: "↩️", Keywords: []string{
		"refund", "return", "cashback", "reimbursement",
	}},
	{ID: "rent_income", Name: "Rental Income", Emoji: "🔑", Keywords: []string{
		"rent", "tenant", "lease",
	}},
	{ID: "social", Name: "Social Benefits", Emoji: "🏛️", Keywords: []string{
		"benefit", "allowance", "pension", "kindergeld",
	}},
	{ID: "other_income", Name: "Other Income", Emoji: "💰", Keywords: nil},
}

func findCategory(catalog []Category, s string) (Category, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Category{}, false
	}
	for _, c := range catalog {
		if strings.EqualFold(c.ID, s) || strings.EqualFold(c.Name, s) {
			return c, true
		}
	}
	return Category{}, false
}

// NormalizeExpenseCategory resolves a name or id against the expense catalog
// and returns the canonical display name.
func NormalizeExpenseCategory(s string) (string, bool) {
	c, ok := findCategory(ExpenseCategories, s)
	if !ok {
		return "", false
	}
	return c.Name, true
}

// NormalizeIncomeCategory resolves a name or id against the income catalog.
func NormalizeIncomeCategory(s string) (string, bool) {
	c, ok := findCategory(IncomeCategories, s)
	if !ok {
		return "", false
	}
	return c.Name, true
}

// NormalizeCategoryForTotal validates a category against the taxonomy that
// matches the sign of total: negative totals are expenses, positive income.
// Zero totals accept either taxonomy.
func NormalizeCategoryForTotal(s string, total decimal.Decimal) (string, bool) {
	if total.IsNegative() {
		return NormalizeExpenseCategory(s)
	}
	if total.IsPositive() {
		return NormalizeIncomeCategory(s)
	}
	if name, ok := NormalizeExpenseCategory(s); ok {
		return name, true
	}
	return NormalizeIncomeCategory(s)
}

// NormalizeAnyCategory resolves against either catalog; rules may target
// expense or income categories.
func NormalizeAnyCategory(s string) (string, bool) {
	if name, ok := NormalizeExpenseCategory(s); ok {
		return name, true
	}
	return NormalizeIncomeCategory(s)
}

// SuggestCategory scans the candidate's merchant and item text for taxonomy
// keywords and returns the first hit. Used as a fallback when no rule
// matches. Keyword order inside the catalog decides ties.
func SuggestCategory(c Candidate) (string, bool) {
	catalog := ExpenseCategories
	if c.Total.IsPositive() {
		catalog = IncomeCategories
	}
	haystack := strings.ToLower(c.Merchant + " " + c.ItemText() + " " + c.Notes)
	if strings.TrimSpace(haystack) == "" {
		return "", false
	}
	for _, cat := range catalog {
		for _, kw := range cat.Keywords {
			if strings.Contains(haystack, strings.ToLower(kw)) {
				return cat.Name, true
			}
		}
	}
	return "", false
}
