// Leasing Velocity Backend - Leasing Analytics Sync and Dashboard Service
// Copyright 2026 Stoa Group Engineering
// SPDX-License-Identifier: MIT

package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/stoagroup/leasing-backend/internal/logging"
	"github.com/stoagroup/leasing-backend/internal/sync"
)

const signatureHeader = "X-Webhook-Signature"

// maxWebhookBody caps the webhook payload. Domo triggers carry a small
// JSON notification, not data.
const maxWebhookBody = 1 << 20

// webhookRunTimeout bounds the background sync a webhook kicks off.
const webhookRunTimeout = 30 * time.Minute

// Webhook accepts a Domo-originated trigger and starts a full sync in
// the background. The caller gets 202 immediately; Domo's webhook
// sender does not wait for multi-minute syncs.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_BODY", "failed to read webhook body", err)
		return
	}

	if secret := h.cfg.Security.WebhookSecret; secret != "" {
		if !verifyWebhookSignature(secret, body, r.Header.Get(signatureHeader)) {
			respondError(w, http.StatusUnauthorized, "INVALID_SIGNATURE", "webhook signature verification failed", nil)
			return
		}
	}

	// Detach from the request context: the trigger outlives the HTTP
	// exchange.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), webhookRunTimeout)
		defer cancel()

		report, err := h.coordinator.Run(ctx, sync.Options{})
		switch {
		case errors.Is(err, sync.ErrSyncInProgress):
			logging.Info().Msg("Webhook sync skipped, a run is already executing")
		case err != nil:
			logging.Error().Err(err).Msg("Webhook-triggered sync failed to start")
		default:
			logging.Info().
				Int("synced", report.Synced).
				Int("skipped", report.Skipped).
				Int("errors", len(report.Errors)).
				Msg("Webhook-triggered sync finished")
		}
	}()

	respondJSON(w, http.StatusAccepted, map[string]any{"accepted": true})
}
