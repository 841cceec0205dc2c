package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"posbot/src/auth"
	"posbot/src/commands"
	"posbot/src/model"

	logger "github.com/sirupsen/logrus"
)

type statusReader interface {
	Status() commands.Status
}

type positionsReader interface {
	Positions(ctx context.Context) ([]model.Position, error)
}

type settingsWriter interface {
	statusReader
	SetWatch(on bool) error
	SetThreshold(v float64) error
	SetCooldown(seconds int64) error
}

type watchPayload struct {
	Enabled *bool `json:"enabled"`
}

type thresholdPayload struct {
	Value *float64 `json:"value"`
}

type cooldownPayload struct {
	Seconds *int64 `json:"seconds"`
}

// StatusHandler returns the watcher status.
func StatusHandler(svc statusReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Status())
	}
}

// PositionsHandler fetches a fresh snapshot from the exchange. Tracked state is not touched.
func PositionsHandler(svc positionsReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		positions, err := svc.Positions(r.Context())
		if err != nil {
			logger.WithError(err).Error("failed to fetch positions")
			http.Error(w, "Failed to fetch positions: "+err.Error(), http.StatusBadGateway)
			return
		}
		if positions == nil {
			positions = []model.Position{}
		}
		writeJSON(w, http.StatusOK, positions)
	}
}

func WatchHandler(svc settingsWriter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload watchPayload
		if !decodePayload(w, r, &payload) {
			return
		}
		if payload.Enabled == nil {
			http.Error(w, "enabled is required", http.StatusBadRequest)
			return
		}
		applySetting(w, r, svc, "watch", svc.SetWatch(*payload.Enabled))
	}
}

func ThresholdHandler(svc settingsWriter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload thresholdPayload
		if !decodePayload(w, r, &payload) {
			return
		}
		if payload.Value == nil {
			http.Error(w, "value is required", http.StatusBadRequest)
			return
		}
		applySetting(w, r, svc, "threshold", svc.SetThreshold(*payload.Value))
	}
}

func CooldownHandler(svc settingsWriter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload cooldownPayload
		if !decodePayload(w, r, &payload) {
			return
		}
		if payload.Seconds == nil {
			http.Error(w, "seconds is required", http.StatusBadRequest)
			return
		}
		applySetting(w, r, svc, "cooldown", svc.SetCooldown(*payload.Seconds))
	}
}

func decodePayload(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		logger.WithError(err).Warn("invalid command payload")
		http.Error(w, "Invalid payload", http.StatusBadRequest)
		return false
	}
	return true
}

// applySetting maps the service result onto the response: 400 for rejected values, 500 when the state could not be saved.
func applySetting(w http.ResponseWriter, r *http.Request, svc statusReader, setting string, err error) {
	caller, _ := auth.GetCallerFromContext(r.Context())
	switch {
	case err == nil:
		logger.WithFields(logger.Fields{"setting": setting, "caller": caller}).Info("setting changed over HTTP")
		writeJSON(w, http.StatusOK, svc.Status())
	case commands.IsValidation(err):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		logger.WithError(err).WithField("setting", setting).Error("failed to save setting")
		http.Error(w, "Failed to save state", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.WithError(err).Error("failed to encode response")
	}
}
