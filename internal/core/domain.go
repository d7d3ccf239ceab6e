package core

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	SourceManual   = "manual"
	SourcePhoto    = "photo"
	SourceVoice    = "voice"
	SourceTransfer = "transfer"
	SourceImport   = "import"
)

// DateLayout is the calendar-date format used everywhere in the ledger.
const DateLayout = "2006-01-02"

type (
	// Transaction is one row of the append-only log. Identity is positional:
	// a row is addressed by its distance from the end of the log.
	Transaction struct {
		Date          string
		Merchant      string
		Total         decimal.Decimal // signed: positive = inflow, negative = outflow
		Currency      string
		Category      string
		PaymentMethod string
		Source        string
		Notes         string
		TransferGroup string // shared by both legs of a transfer, empty otherwise
	}

	// Account is a named per-user money holder (bank account, wallet, card).
	Account struct {
		Name     string
		Currency string
		Amount   decimal.Decimal
	}

	// LineItem is one receipt position, as delivered by the recognition layer.
	LineItem struct {
		Name  string          `json:"name"`
		Qty   decimal.Decimal `json:"qty"`
		Price decimal.Decimal `json:"price"`
	}

	// Candidate is a structured transaction proposal from the chat layer or
	// the recognition service, before it is appended to the log.
	Candidate struct {
		Date          string          `json:"date"`
		Merchant      string          `json:"merchant"`
		Total         decimal.Decimal `json:"total"`
		Currency      string          `json:"currency"`
		Category      string          `json:"category,omitempty"`
		PaymentMethod string          `json:"payment_method,omitempty"`
		Items         []LineItem      `json:"items,omitempty"`
		Notes         string          `json:"notes,omitempty"`
	}

	// MatchSpec is the predicate set of a categorization rule. Every predicate
	// present must be satisfied for the rule to match.
	MatchSpec struct {
		MerchantContains []string         `json:"merchant_contains,omitempty"`
		ItemContains     []string         `json:"item_contains,omitempty"`
		CurrencyIs       string           `json:"currency_is,omitempty"`
		PaymentIs        string           `json:"payment_is,omitempty"`
		TotalMin         *decimal.Decimal `json:"total_min,omitempty"`
		TotalMax         *decimal.Decimal `json:"total_max,omitempty"`
	}

	// Rule maps a predicate set to a category. The id is stable once assigned.
	Rule struct {
		ID       int       `json:"id"`
		Category string    `json:"category"`
		Match    MatchSpec `json:"match"`
	}

	// FieldChanges carries a partial row update for edit operations. Nil
	// fields are left untouched.
	FieldChanges struct {
		Date          *string `json:"date,omitempty"`
		Merchant      *string `json:"merchant,omitempty"`
		Total         *string `json:"total,omitempty"`
		Currency      *string `json:"currency,omitempty"`
		Category      *string `json:"category,omitempty"`
		PaymentMethod *string `json:"payment_method,omitempty"`
		Notes         *string `json:"notes,omitempty"`
	}
)

var (
	ErrInvalidRecord     = errors.New("invalid record")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrNoSuchRecord      = errors.New("no such record")
	ErrNoSuchAccount     = errors.New("no such account")
	ErrDuplicateAccount  = errors.New("account already exists")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrSameAccount       = errors.New("same account")
	ErrInvalidCategory   = errors.New("invalid category")
	ErrNoSuchRule        = errors.New("no such rule")
)

// IsTransfer reports whether the row is a leg of an account transfer.
// Transfer legs are excluded from income/expense aggregates.
func (t Transaction) IsTransfer() bool {
	return t.TransferGroup != "" || t.Source == SourceTransfer
}

// Validate checks the minimal shape every appended row must have.
func (t Transaction) Validate() error {
	if _, err := time.Parse(DateLayout, t.Date); err != nil {
		return ErrInvalidRecord
	}
	if err := ValidateCurrency(t.Currency); err != nil {
		return err
	}
	return nil
}

// ValidateCurrency accepts a 3-letter uppercase currency code.
func ValidateCurrency(code string) error {
	if len(code) != 3 {
		return ErrInvalidRecord
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return ErrInvalidRecord
		}
	}
	return nil
}

// ItemText concatenates the line-item names for rule matching.
func (c Candidate) ItemText() string {
	if len(c.Items) == 0 {
		return ""
	}
	parts := make([]string, 0, len(c.Items))
	for _, it := range c.Items {
		if it.Name != "" {
			parts = append(parts, it.Name)
		}
	}
	return strings.Join(parts, " ")
}

var accountNameBlocklist = regexp.MustCompile(`[<>:"/\\|?*]`)

// ValidAccountName rejects empty names and names with path/markup characters.
func ValidAccountName(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}
	return !accountNameBlocklist.MatchString(name)
}

// BalanceKey builds an aggregate key: "CUR" or "CATEGORY@CUR".
func BalanceKey(category, currency string) string {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if category == "" {
		return currency
	}
	return category + "@" + currency
}
