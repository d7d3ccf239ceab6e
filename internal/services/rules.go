package services

import (
	"context"
	"fmt"

	"github.com/stepanyanprod-creator/finance-bot/internal/core"
	"github.com/stepanyanprod-creator/finance-bot/internal/log"
	"github.com/stepanyanprod-creator/finance-bot/internal/rules"
)

// Rules returns the user's categorization rules in evaluation order.
func (l *Ledger) Rules(ctx context.Context, userID int64) ([]core.Rule, error) {
	return l.store.Rules(ctx, userID)
}

// AddRule appends a rule mapping a predicate set to a category. The category
// must exist in either taxonomy; the rule gets the smallest unused positive id.
func (l *Ledger) AddRule(ctx context.Context, userID int64, category string, match core.MatchSpec) (core.Rule, error) {
	unlock := l.lockUser(userID)
	defer unlock()

	name, ok := core.NormalizeAnyCategory(category)
	if !ok {
		return core.Rule{}, fmt.Errorf("category %q: %w", category, core.ErrInvalidCategory)
	}

	list, err := l.store.Rules(ctx, userID)
	if err != nil {
		return core.Rule{}, fmt.Errorf("load rules: %w", err)
	}
	r := core.Rule{ID: rules.NextID(list), Category: name, Match: match}
	list = append(list, r)
	if err := l.store.SaveRules(ctx, userID, list); err != nil {
		return core.Rule{}, fmt.Errorf("save rules: %w", err)
	}

	l.logger.Info("rule added",
		log.FieldUserID, userID,
		log.FieldRuleID, r.ID,
		log.FieldCategory, r.Category)
	return r, nil
}

// DeleteRule removes the rule with the given id. Remaining rules keep their
// ids and their order; the freed id becomes reusable.
func (l *Ledger) DeleteRule(ctx context.Context, userID int64, id int) error {
	unlock := l.lockUser(userID)
	defer unlock()

	list, err := l.store.Rules(ctx, userID)
	if err != nil {
		return fmt.Errorf("load rules: %w", err)
	}
	kept := list[:0:0]
	for _, r := range list {
		if r.ID != id {
			kept = append(kept, r)
		}
	}
	if len(kept) == len(list) {
		return core.ErrNoSuchRule
	}
	if err := l.store.SaveRules(ctx, userID, kept); err != nil {
		return fmt.Errorf("save rules: %w", err)
	}

	l.logger.Info("rule deleted", log.FieldUserID, userID, log.FieldRuleID, id)
	return nil
}

// ResolveCategory reports what category the engine would assign a candidate:
// rules first, keyword suggestion second. Dry-run helper for the chat layer.
func (l *Ledger) ResolveCategory(ctx context.Context, userID int64, c core.Candidate) (string, bool, error) {
	list, err := l.store.Rules(ctx, userID)
	if err != nil {
		return "", false, fmt.Errorf("load rules: %w", err)
	}
	if name, ok := rules.Resolve(c, list); ok {
		return name, true, nil
	}
	name, ok := core.SuggestCategory(c)
	return name, ok, nil
}
