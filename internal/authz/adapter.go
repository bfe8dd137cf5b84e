package authz

import (
	"context"
	"fmt"

	"github.com/casbin/casbin/v2/model"
	"github.com/casbin/casbin/v2/persist"
	"github.com/uptrace/bun"

	"github.com/terraconstructs/pluggableauth/internal/db/models"
)

// BunAdapter stores casbin rules in the policy_rules table.
type BunAdapter struct {
	db *bun.DB
}

var _ persist.Adapter = (*BunAdapter)(nil)

// NewBunAdapter expects the policy_rules table to exist.
func NewBunAdapter(db *bun.DB) *BunAdapter {
	return &BunAdapter{db: db}
}

func ruleFor(ptype string, rule []string) *models.PolicyRule {
	r := &models.PolicyRule{Ptype: ptype}
	fields := []*string{&r.V0, &r.V1, &r.V2}
	for i, v := range rule {
		if i >= len(fields) {
			break
		}
		*fields[i] = v
	}
	return r
}

func values(r *models.PolicyRule) []string {
	vals := []string{r.V0, r.V1, r.V2}
	for len(vals) > 0 && vals[len(vals)-1] == "" {
		vals = vals[:len(vals)-1]
	}
	return vals
}

// LoadPolicy loads every stored rule into m.
func (a *BunAdapter) LoadPolicy(m model.Model) error {
	var rules []*models.PolicyRule
	if err := a.db.NewSelect().Model(&rules).Order("ptype", "v0", "v1", "v2").Scan(context.Background()); err != nil {
		return fmt.Errorf("load policy rules: %w", err)
	}
	for _, r := range rules {
		vals := values(r)
		if len(vals) == 0 {
			continue
		}
		if err := m.AddPolicy("p", r.Ptype, vals); err != nil {
			return fmt.Errorf("load policy rule: %w", err)
		}
	}
	return nil
}

// SavePolicy replaces the stored rules with the policy in m.
func (a *BunAdapter) SavePolicy(m model.Model) error {
	var rules []*models.PolicyRule
	for ptype, assertion := range m["p"] {
		for _, rule := range assertion.Policy {
			rules = append(rules, ruleFor(ptype, rule))
		}
	}
	return a.db.RunInTx(context.Background(), nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*models.PolicyRule)(nil)).Where("1 = 1").Exec(ctx); err != nil {
			return fmt.Errorf("clear policy rules: %w", err)
		}
		if len(rules) == 0 {
			return nil
		}
		if _, err := tx.NewInsert().Model(&rules).Exec(ctx); err != nil {
			return fmt.Errorf("save policy rules: %w", err)
		}
		return nil
	})
}

// AddPolicy stores one rule. Adding an existing rule is not an error.
func (a *BunAdapter) AddPolicy(_ string, ptype string, rule []string) error {
	_, err := a.db.NewInsert().
		Model(ruleFor(ptype, rule)).
		On("CONFLICT DO NOTHING").
		Exec(context.Background())
	if err != nil {
		return fmt.Errorf("add policy rule: %w", err)
	}
	return nil
}

// RemovePolicy deletes one rule.
func (a *BunAdapter) RemovePolicy(_ string, ptype string, rule []string) error {
	r := ruleFor(ptype, rule)
	_, err := a.db.NewDelete().
		Model((*models.PolicyRule)(nil)).
		Where("ptype = ?", r.Ptype).
		Where("v0 = ?", r.V0).
		Where("v1 = ?", r.V1).
		Where("v2 = ?", r.V2).
		Exec(context.Background())
	if err != nil {
		return fmt.Errorf("remove policy rule: %w", err)
	}
	return nil
}

// RemoveFilteredPolicy deletes rules matching the non-empty fieldValues
// starting at fieldIndex.
func (a *BunAdapter) RemoveFilteredPolicy(_ string, ptype string, fieldIndex int, fieldValues ...string) error {
	q := a.db.NewDelete().Model((*models.PolicyRule)(nil)).Where("ptype = ?", ptype)
	for i, v := range fieldValues {
		col := fieldIndex + i
		if v == "" || col > 2 {
			continue
		}
		q = q.Where("? = ?", bun.Ident(fmt.Sprintf("v%d", col)), v)
	}
	if _, err := q.Exec(context.Background()); err != nil {
		return fmt.Errorf("remove filtered policy rules: %w", err)
	}
	return nil
}
