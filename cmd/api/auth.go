package main

import (
	"fmt"
	"net/http"

	"mpesa/internal/auth"
)

// TokenResponse is returned by both token endpoints.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	Operator     string `json:"operator"`
}

// createTokenHandler godoc
//
//	@Summary		Issue operator tokens
//	@Description	Exchanges the operator's basic credentials for an access and refresh token pair.
//	@Tags			authentication
//	@Produce		json
//	@Success		200	{object}	TokenResponse
//	@Failure		401	{object}	error
//	@Failure		500	{object}	error
//	@Security		BasicAuth
//	@Router			/authentication/token [post]
func (app *application) createTokenHandler(w http.ResponseWriter, r *http.Request) {
	operator := getOperatorFromContext(r)
	if operator == "" {
		app.unauthorizedErrorResponse(w, r, fmt.Errorf("no operator in context"))
		return
	}

	app.issueTokens(w, r, operator)
}

type RefreshPayload struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// refreshTokenHandler godoc
//
//	@Summary		Refresh authentication tokens
//	@Description	Validates the provided refresh token and issues new access and refresh tokens.
//	@Tags			authentication
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		RefreshPayload	true	"Refresh token payload"
//	@Success		200		{object}	TokenResponse
//	@Failure		400		{object}	error
//	@Failure		401		{object}	error
//	@Router			/authentication/refresh [post]
func (app *application) refreshTokenHandler(w http.ResponseWriter, r *http.Request) {
	var payload RefreshPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	token, err := app.authenticator.ValidateRefreshToken(payload.RefreshToken)
	if err != nil {
		app.unauthorizedErrorResponse(w, r, fmt.Errorf("invalid refresh token: %w", err))
		return
	}

	operator, err := auth.Subject(token)
	if err != nil {
		app.unauthorizedErrorResponse(w, r, err)
		return
	}

	// only the configured operator may keep refreshing
	if operator != app.config.auth.basic.Username {
		app.unauthorizedErrorResponse(w, r, fmt.Errorf("unknown operator %q", operator))
		return
	}

	app.issueTokens(w, r, operator)
}

func (app *application) issueTokens(w http.ResponseWriter, r *http.Request, operator string) {
	accessToken, refreshToken, err := app.authenticator.GenerateTokens(operator)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Operator:     operator,
	}); err != nil {
		app.internalServerError(w, r, err)
	}
}
