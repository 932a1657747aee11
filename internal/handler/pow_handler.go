/*
Package handler provides the HTTP handlers and routing setup for the chat server.

This file exposes the proof-of-work challenge that gates anonymous guest handshakes.
*/
package handler

import (
	"net/http"

	"propchat/internal/pkg/errs"
	"propchat/internal/pkg/logx"
	"propchat/internal/pkg/pow"
	"propchat/internal/pkg/req"
	"propchat/internal/pkg/resp"
)

type PowVerifyInput struct {
	Nonce   string `json:"nonce"`
	Counter string `json:"counter"`
}

// HandlePowChallenge issues a new challenge. Required is false when the gate is disabled.
func HandlePowChallenge(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		challenge := deps.Pow.NewChallenge()

		resp.RespondSuccess(w, r, map[string]any{
			"nonce":      challenge.Nonce,
			"difficulty": challenge.Difficulty,
			"required":   deps.Pow.Enabled(),
		})
	}
}

// HandlePowVerify exchanges a solved challenge for a single-use proof token.
func HandlePowVerify(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input PowVerifyInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if input.Nonce == "" || input.Counter == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		token, err := deps.Pow.Verify(input.Nonce, input.Counter)
		if err != nil {
			logx.Info("Proof of work rejected", "error", err.Error())
			resp.RespondError(w, r, errs.NewError(errs.ErrPowChallengeInvalid))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"token":     token,
			"expiresIn": int(pow.ProofTokenDuration.Seconds()),
		})
	}
}
