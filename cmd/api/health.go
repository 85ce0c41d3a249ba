package main

import (
	"net/http"

	"mpesa/internal/store"
)

// healthCheckHandler godoc
//
//	@Summary	Health check
//	@Tags		ops
//	@Produce	json
//	@Success	200	{object}	map[string]any
//	@Security	BasicAuth
//	@Router		/health [get]
func (app *application) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	cfg := app.mpesa.Configuration()
	_, nop := app.journal.(store.NopJournal)

	data := map[string]any{
		"status":     "ok",
		"env":        app.config.env,
		"version":    version,
		"mode":       cfg.Mode,
		"configured": cfg.Validate() == nil,
		"journal":    !nop,
	}

	if err := app.jsonResponse(w, http.StatusOK, data); err != nil {
		app.internalServerError(w, r, err)
	}
}
