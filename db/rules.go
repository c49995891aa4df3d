package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/vibarr/vibarr/errs"
	"github.com/vibarr/vibarr/models"
)

const ruleColumns = `id, user_id, name, trigger, conditions, actions, priority, enabled,
	last_triggered_at, trigger_count, created_at, updated_at`

func scanRule(row interface{ Scan(...any) error }) (*models.AutomationRule, error) {
	r := &models.AutomationRule{}
	var (
		conditions, actions sql.NullString
		lastTriggered       sql.NullTime
	)
	err := row.Scan(&r.ID, &r.UserID, &r.Name, &r.Trigger, &conditions, &actions,
		&r.Priority, &r.Enabled, &lastTriggered, &r.TriggerCount, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	jsonScan(conditions, &r.Conditions)
	jsonScan(actions, &r.Actions)
	r.LastTriggeredAt = nullTimePtr(lastTriggered)
	return r, nil
}

// CreateRule inserts an automation rule and returns its id.
func (db *DB) CreateRule(r *models.AutomationRule) (int64, error) {
	now := time.Now().UTC()
	res, err := db.Exec(`
	INSERT INTO automation_rules (user_id, name, trigger, conditions, actions, priority, enabled,
		last_triggered_at, trigger_count, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, NULL, 0, ?, ?)`,
		r.UserID, r.Name, string(r.Trigger), jsonString(r.Conditions), jsonString(r.Actions),
		r.Priority, r.Enabled, now, now)
	if err != nil {
		return 0, fmt.Errorf("insert rule: %w", err)
	}
	return res.LastInsertId()
}

// GetRule fetches one rule by id.
func (db *DB) GetRule(id int64) (*models.AutomationRule, error) {
	r, err := scanRule(db.QueryRow(`SELECT `+ruleColumns+` FROM automation_rules WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("rule %d: %w", id, errs.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get rule %d: %w", id, err)
	}
	return r, nil
}

// ListRules returns a user's rules, highest priority first and oldest first
// within a priority, which is also the evaluation order.
func (db *DB) ListRules(userID int64) ([]*models.AutomationRule, error) {
	rows, err := db.Query(`SELECT `+ruleColumns+` FROM automation_rules
		WHERE user_id = ? ORDER BY priority DESC, created_at ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()
	return collectRules(rows)
}

// EnabledRulesFor returns every enabled rule bound to one trigger across all
// users, in evaluation order.
func (db *DB) EnabledRulesFor(trigger models.RuleTrigger) ([]*models.AutomationRule, error) {
	rows, err := db.Query(`SELECT `+ruleColumns+` FROM automation_rules
		WHERE enabled = 1 AND trigger = ? ORDER BY priority DESC, created_at ASC`, string(trigger))
	if err != nil {
		return nil, fmt.Errorf("rules for trigger %s: %w", trigger, err)
	}
	defer rows.Close()
	return collectRules(rows)
}

func collectRules(rows *sql.Rows) ([]*models.AutomationRule, error) {
	var out []*models.AutomationRule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// UpdateRule overwrites a rule definition.
func (db *DB) UpdateRule(r *models.AutomationRule) error {
	res, err := db.Exec(`
	UPDATE automation_rules SET name = ?, trigger = ?, conditions = ?, actions = ?, priority = ?, enabled = ?, updated_at = ?
	WHERE id = ?`,
		r.Name, string(r.Trigger), jsonString(r.Conditions), jsonString(r.Actions), r.Priority, r.Enabled,
		time.Now().UTC(), r.ID)
	if err != nil {
		return fmt.Errorf("update rule %d: %w", r.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("rule %d: %w", r.ID, errs.ErrNotFound)
	}
	return nil
}

// SetRuleEnabled toggles a rule without touching its definition.
func (db *DB) SetRuleEnabled(id int64, enabled bool) error {
	res, err := db.Exec(`UPDATE automation_rules SET enabled = ?, updated_at = ? WHERE id = ?`,
		enabled, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("toggle rule %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("rule %d: %w", id, errs.ErrNotFound)
	}
	return nil
}

// TouchRuleTriggered stamps a match and bumps the trigger counter.
func (db *DB) TouchRuleTriggered(id int64) error {
	_, err := db.Exec(`UPDATE automation_rules SET last_triggered_at = ?, trigger_count = trigger_count + 1 WHERE id = ?`,
		time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("touch rule %d: %w", id, err)
	}
	return nil
}

// DeleteRule removes a rule.
func (db *DB) DeleteRule(id int64) error {
	res, err := db.Exec(`DELETE FROM automation_rules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete rule %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("rule %d: %w", id, errs.ErrNotFound)
	}
	return nil
}
