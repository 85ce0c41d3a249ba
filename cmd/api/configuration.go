package main

import (
	"net/http"

	"mpesa/internal/mpesa"
)

// ConfigurationView is the gateway configuration with secrets withheld.
type ConfigurationView struct {
	Mode                mpesa.Mode `json:"mode"`
	Origin              string     `json:"origin"`
	ServiceProviderCode string     `json:"service_provider_code"`
	APIKeySet           bool       `json:"api_key_set"`
	PublicKeySet        bool       `json:"public_key_set"`
	Missing             []string   `json:"missing,omitempty"`
}

func newConfigurationView(cfg mpesa.Config) ConfigurationView {
	view := ConfigurationView{
		Mode:                cfg.Mode,
		Origin:              cfg.Origin,
		ServiceProviderCode: cfg.ServiceProviderCode,
		APIKeySet:           cfg.APIKey != "",
		PublicKeySet:        cfg.PublicKey != "",
	}
	if cerr, ok := cfg.Validate().(*mpesa.ConfigurationError); ok {
		view.Missing = cerr.Missing
	}
	return view
}

// UpdateConfigurationPayload fields left empty keep their current value.
type UpdateConfigurationPayload struct {
	Mode                string `json:"mode" validate:"omitempty,oneof=sandbox production"`
	APIKey              string `json:"api_key"`
	PublicKey           string `json:"public_key"`
	Origin              string `json:"origin"`
	ServiceProviderCode string `json:"service_provider_code" validate:"omitempty,numeric"`
}

// getConfigurationHandler godoc
//
//	@Summary	Current gateway configuration
//	@Tags		mpesa
//	@Produce	json
//	@Success	200	{object}	ConfigurationView
//	@Security	ApiKeyAuth
//	@Router		/mpesa/configuration [get]
func (app *application) getConfigurationHandler(w http.ResponseWriter, r *http.Request) {
	if err := app.jsonResponse(w, http.StatusOK, newConfigurationView(app.mpesa.Configuration())); err != nil {
		app.internalServerError(w, r, err)
	}
}

// updateConfigurationHandler godoc
//
//	@Summary		Update gateway configuration
//	@Description	Merges the given fields into the running configuration. A new key pair is checked before it is accepted.
//	@Tags			mpesa
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		UpdateConfigurationPayload	true	"Fields to change"
//	@Success		200		{object}	ConfigurationView
//	@Failure		400		{object}	error
//	@Security		ApiKeyAuth
//	@Router			/mpesa/configuration [patch]
func (app *application) updateConfigurationHandler(w http.ResponseWriter, r *http.Request) {
	var payload UpdateConfigurationPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	partial := mpesa.Config{
		Mode:                mpesa.Mode(payload.Mode),
		APIKey:              payload.APIKey,
		PublicKey:           payload.PublicKey,
		Origin:              payload.Origin,
		ServiceProviderCode: payload.ServiceProviderCode,
	}

	if partial.APIKey != "" || partial.PublicKey != "" {
		merged := app.mpesa.Configuration()
		if partial.APIKey != "" {
			merged.APIKey = partial.APIKey
		}
		if partial.PublicKey != "" {
			merged.PublicKey = partial.PublicKey
		}
		if merged.APIKey != "" && merged.PublicKey != "" {
			if _, err := mpesa.DeriveToken(merged.APIKey, merged.PublicKey); err != nil {
				app.badRequestResponse(w, r, err)
				return
			}
		}
	}

	app.mpesa.UpdateConfiguration(partial)
	app.logger.Infow("mpesa configuration updated", "operator", getOperatorFromContext(r),
		"mode", app.mpesa.Configuration().Mode)

	if err := app.jsonResponse(w, http.StatusOK, newConfigurationView(app.mpesa.Configuration())); err != nil {
		app.internalServerError(w, r, err)
	}
}
