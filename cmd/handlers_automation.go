package main

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/vibarr/vibarr/errs"
	"github.com/vibarr/vibarr/models"
	"github.com/vibarr/vibarr/rules"
	"github.com/vibarr/vibarr/session"
)

func (app *application) handleListRules(w http.ResponseWriter, r *http.Request) {
	userID, _ := session.GetUserID(r.Context())
	list, err := app.database.ListRules(userID)
	if err != nil {
		httpError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{"rules": list})
}

func (app *application) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	userID, _ := session.GetUserID(r.Context())

	var rule models.AutomationRule
	if err := decodeJSON(r, &rule); err != nil {
		httpError(w, err)
		return
	}
	rule.UserID = userID
	if err := validateRule(&rule); err != nil {
		httpError(w, err)
		return
	}

	id, err := app.database.CreateRule(&rule)
	if err != nil {
		httpError(w, err)
		return
	}
	created, err := app.database.GetRule(id)
	if err != nil {
		httpError(w, err)
		return
	}
	app.logger.Info("automation rule created", "rule", id, "name", created.Name, "trigger", created.Trigger)
	jsonResponse(w, http.StatusCreated, created)
}

func (app *application) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	existing, err := app.ownRule(r)
	if err != nil {
		httpError(w, err)
		return
	}

	var rule models.AutomationRule
	if err := decodeJSON(r, &rule); err != nil {
		httpError(w, err)
		return
	}
	rule.ID = existing.ID
	rule.UserID = existing.UserID
	if err := validateRule(&rule); err != nil {
		httpError(w, err)
		return
	}

	if err := app.database.UpdateRule(&rule); err != nil {
		httpError(w, err)
		return
	}
	updated, err := app.database.GetRule(rule.ID)
	if err != nil {
		httpError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, updated)
}

func (app *application) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	rule, err := app.ownRule(r)
	if err != nil {
		httpError(w, err)
		return
	}
	if err := app.database.DeleteRule(rule.ID); err != nil {
		httpError(w, err)
		return
	}
	jsonResponse(w, http.StatusNoContent, nil)
}

// handleTestRule dry-runs a rule's conditions against a caller-supplied
// context. Nothing is dispatched; no actions fire.
func (app *application) handleTestRule(w http.ResponseWriter, r *http.Request) {
	rule, err := app.ownRule(r)
	if err != nil {
		httpError(w, err)
		return
	}

	rctx := rules.Context{}
	if err := decodeJSON(r, &rctx); err != nil {
		httpError(w, err)
		return
	}

	jsonResponse(w, http.StatusOK, map[string]any{
		"matched":    rules.Evaluate(rule.Conditions, rctx),
		"conditions": rules.Explain(rule.Conditions, rctx),
	})
}

// ownRule loads the path rule and enforces ownership. Admins may touch any
// rule; everyone else only their own.
func (app *application) ownRule(r *http.Request) (*models.AutomationRule, error) {
	id, err := pathID(r, "id")
	if err != nil {
		return nil, err
	}
	rule, err := app.database.GetRule(id)
	if err != nil {
		return nil, err
	}
	user, err := app.currentUser(r)
	if err != nil {
		return nil, err
	}
	if rule.UserID != user.ID && !user.IsAdmin {
		return nil, fmt.Errorf("rule %d belongs to another user: %w", id, errs.ErrForbidden)
	}
	return rule, nil
}

func validateRule(rule *models.AutomationRule) error {
	rule.Name = strings.TrimSpace(rule.Name)
	if rule.Name == "" {
		return fmt.Errorf("rule name required: %w", errs.ErrInvalid)
	}
	if !rule.Trigger.Valid() {
		return fmt.Errorf("unknown trigger %q: %w", rule.Trigger, errs.ErrInvalid)
	}
	for _, cond := range rule.Conditions {
		if !cond.Operator.Valid() {
			return fmt.Errorf("unknown operator %q: %w", cond.Operator, errs.ErrInvalid)
		}
	}
	if len(rule.Actions) == 0 {
		return fmt.Errorf("rule needs at least one action: %w", errs.ErrInvalid)
	}
	for _, action := range rule.Actions {
		if !action.Type.Valid() {
			return fmt.Errorf("unknown action %q: %w", action.Type, errs.ErrInvalid)
		}
	}
	return nil
}

func (app *application) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	userID, _ := session.GetUserID(r.Context())
	limit := queryInt(r, "limit", 50)
	if limit > 200 {
		limit = 200
	}

	list, err := app.database.ListNotifications(userID, queryBool(r, "unread", false), limit)
	if err != nil {
		httpError(w, err)
		return
	}
	unread, err := app.database.UnreadNotificationCount(userID)
	if err != nil {
		httpError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{
		"notifications": list,
		"unread":        unread,
	})
}

func (app *application) handleReadNotification(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpError(w, err)
		return
	}
	if err := app.database.MarkNotificationRead(id); err != nil {
		httpError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{"status": "read", "id": id})
}

func (app *application) handleReadAllNotifications(w http.ResponseWriter, r *http.Request) {
	userID, _ := session.GetUserID(r.Context())
	if err := app.database.MarkAllNotificationsRead(userID); err != nil {
		httpError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}
