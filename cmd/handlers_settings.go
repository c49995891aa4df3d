package main

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/vibarr/vibarr/errs"
	"github.com/vibarr/vibarr/models"
	"github.com/vibarr/vibarr/settings"
)

// maskedValue is what the settings listing substitutes for secrets; a PUT
// echoing it back must not overwrite the stored secret.
const maskedValue = "********"

func (app *application) handleListSettings(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, app.store.All())
}

// handlePutSettings bulk-writes settings. The store fires its change hooks,
// which rebuild affected integration clients and nudge the scheduler.
func (app *application) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var values map[string]string
	if err := decodeJSON(r, &values); err != nil {
		httpError(w, err)
		return
	}

	known := settings.Defaults()
	for key, value := range values {
		if _, ok := known[key]; !ok {
			jsonError(w, http.StatusBadRequest, fmt.Sprintf("unknown setting %q", key))
			return
		}
		if value == maskedValue {
			delete(values, key)
		}
	}
	if len(values) == 0 {
		jsonError(w, http.StatusBadRequest, "no settings to write")
		return
	}

	if err := app.store.SetMany(values); err != nil {
		httpError(w, err)
		return
	}
	app.logger.Info("settings updated", "keys", len(values))
	jsonResponse(w, http.StatusOK, app.store.All())
}

func (app *application) handleGetSetting(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	value, ok := app.store.All()[key]
	if !ok {
		jsonError(w, http.StatusNotFound, fmt.Sprintf("unknown setting %q", key))
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{
		"key":   key,
		"value": value,
	})
}

func (app *application) handleListQualityProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := app.database.ListQualityProfiles()
	if err != nil {
		httpError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{"profiles": profiles})
}

func (app *application) handleCreateQualityProfile(w http.ResponseWriter, r *http.Request) {
	var profile models.QualityProfile
	if err := decodeJSON(r, &profile); err != nil {
		httpError(w, err)
		return
	}
	if err := validateQualityProfile(&profile); err != nil {
		httpError(w, err)
		return
	}

	id, err := app.database.CreateQualityProfile(&profile)
	if err != nil {
		httpError(w, err)
		return
	}
	created, err := app.database.GetQualityProfile(id)
	if err != nil {
		httpError(w, err)
		return
	}
	jsonResponse(w, http.StatusCreated, created)
}

func (app *application) handleUpdateQualityProfile(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpError(w, err)
		return
	}
	if _, err := app.database.GetQualityProfile(id); err != nil {
		httpError(w, err)
		return
	}

	var profile models.QualityProfile
	if err := decodeJSON(r, &profile); err != nil {
		httpError(w, err)
		return
	}
	profile.ID = id
	if err := validateQualityProfile(&profile); err != nil {
		httpError(w, err)
		return
	}

	if err := app.database.UpdateQualityProfile(&profile); err != nil {
		httpError(w, err)
		return
	}
	updated, err := app.database.GetQualityProfile(id)
	if err != nil {
		httpError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, updated)
}

func (app *application) handleDeleteQualityProfile(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpError(w, err)
		return
	}
	if err := app.database.DeleteQualityProfile(id); err != nil {
		httpError(w, err)
		return
	}
	jsonResponse(w, http.StatusNoContent, nil)
}

func validateQualityProfile(p *models.QualityProfile) error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return fmt.Errorf("profile name required: %w", errs.ErrInvalid)
	}
	for _, format := range p.PreferredFormats {
		if !models.KnownFormat(format) {
			return fmt.Errorf("unknown format %q: %w", format, errs.ErrInvalid)
		}
	}
	return nil
}
