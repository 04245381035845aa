// Package api provides HTTP handlers for DietCoach endpoints.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/BTreeMap/DietCoach/internal/models"
	"github.com/BTreeMap/DietCoach/internal/summary"
)

// healthHandler provides a health check endpoint for monitoring and load balancing
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	healthData := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	writeJSONResponse(w, http.StatusOK, healthData)
}

// chatMessageHandler handles POST /api/v1/chat/message
func (s *Server) chatMessageHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	userID := userIDFromRequest(r)
	slog.Debug("Server.chatMessageHandler: processing chat message", "userID", userID)

	var req models.ChatMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.chatMessageHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		slog.Warn("Server.chatMessageHandler: validation failed", "error", err, "userID", userID)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}
	persona := req.Persona
	if persona == "" {
		persona = models.DefaultPersona
	}

	reply, err := s.coach.ProcessMessage(r.Context(), userID, req.Content, persona)
	if err != nil {
		slog.Error("Server.chatMessageHandler: pipeline failed", "error", err, "userID", userID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to process message"))
		return
	}
	slog.Info("Server.chatMessageHandler: message processed", "userID", userID, "intent", reply.Intent)
	writeJSONResponse(w, http.StatusOK, models.Success(reply))
}

// chatHistoryHandler handles GET /api/v1/chat/history
func (s *Server) chatHistoryHandler(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromRequest(r)
	limit := parseLimitParam(r)
	slog.Debug("Server.chatHistoryHandler: fetching history", "userID", userID, "limit", limit)

	messages, err := s.coach.History(userID, limit)
	if err != nil {
		slog.Error("Server.chatHistoryHandler: failed", "error", err, "userID", userID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to fetch chat history"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(models.ChatHistory{
		Messages: messages,
		Total:    len(messages),
	}))
}

// chatClearHandler handles DELETE /api/v1/chat/history
func (s *Server) chatClearHandler(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromRequest(r)
	slog.Debug("Server.chatClearHandler: clearing history", "userID", userID)

	if err := s.coach.ClearHistory(userID); err != nil {
		slog.Error("Server.chatClearHandler: failed", "error", err, "userID", userID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to clear chat history"))
		return
	}
	slog.Info("Server.chatClearHandler: history cleared", "userID", userID)
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Chat history cleared", nil))
}

// medicationAskHandler handles POST /api/v1/medication/ask
func (s *Server) medicationAskHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	userID := userIDFromRequest(r)
	slog.Debug("Server.medicationAskHandler: processing question", "userID", userID)

	var req models.MedicationAskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.medicationAskHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		slog.Warn("Server.medicationAskHandler: validation failed", "error", err, "userID", userID)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	answer, err := s.medication.Ask(r.Context(), userID, req.Query, req.IncludeHealthContext)
	if err != nil {
		slog.Error("Server.medicationAskHandler: failed", "error", err, "userID", userID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to answer medication question"))
		return
	}
	slog.Info("Server.medicationAskHandler: question answered", "userID", userID, "is_emergency", answer.IsEmergency)
	writeJSONResponse(w, http.StatusOK, models.Success(answer))
}

// medicationHistoryHandler handles GET /api/v1/medication/history
func (s *Server) medicationHistoryHandler(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromRequest(r)
	limit := parseLimitParam(r)
	slog.Debug("Server.medicationHistoryHandler: fetching history", "userID", userID, "limit", limit)

	messages, err := s.medication.History(userID, limit)
	if err != nil {
		slog.Error("Server.medicationHistoryHandler: failed", "error", err, "userID", userID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to fetch medication history"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(models.ChatHistory{
		Messages: messages,
		Total:    len(messages),
	}))
}

// medicationClearHandler handles DELETE /api/v1/medication/history
func (s *Server) medicationClearHandler(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromRequest(r)
	slog.Debug("Server.medicationClearHandler: clearing history", "userID", userID)

	if err := s.medication.ClearHistory(userID); err != nil {
		slog.Error("Server.medicationClearHandler: failed", "error", err, "userID", userID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to clear medication history"))
		return
	}
	slog.Info("Server.medicationClearHandler: history cleared", "userID", userID)
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Medication history cleared", nil))
}

// summaryTodayHandler handles GET /api/v1/summary/today
func (s *Server) summaryTodayHandler(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromRequest(r)
	slog.Debug("Server.summaryTodayHandler invoked", "userID", userID)

	report, err := s.summaries.Today(userID)
	if err != nil {
		slog.Error("Server.summaryTodayHandler: failed", "error", err, "userID", userID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to build today summary"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(report))
}

// summaryWeeklyHandler handles GET /api/v1/summary/weekly
func (s *Server) summaryWeeklyHandler(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromRequest(r)
	slog.Debug("Server.summaryWeeklyHandler invoked", "userID", userID)

	report, err := s.summaries.Weekly(userID)
	if err != nil {
		slog.Error("Server.summaryWeeklyHandler: failed", "error", err, "userID", userID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to build weekly summary"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(report))
}

// summaryAdherenceHandler handles GET /api/v1/summary/medication-adherence
func (s *Server) summaryAdherenceHandler(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromRequest(r)
	days := parseIntParam(r, "days", 0)
	slog.Debug("Server.summaryAdherenceHandler invoked", "userID", userID, "days", days)

	report, err := s.summaries.Adherence(userID, days)
	if err != nil {
		slog.Error("Server.summaryAdherenceHandler: failed", "error", err, "userID", userID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to build adherence summary"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(report))
}

// summaryMonthlyHandler handles GET /api/v1/summary/monthly
func (s *Server) summaryMonthlyHandler(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromRequest(r)
	year := parseIntParam(r, "year", 0)
	month := parseIntParam(r, "month", 0)
	slog.Debug("Server.summaryMonthlyHandler invoked", "userID", userID, "year", year, "month", month)

	report, err := s.summaries.Monthly(userID, year, month)
	if err != nil {
		if errors.Is(err, summary.ErrInvalidMonth) || errors.Is(err, summary.ErrFutureMonth) {
			slog.Warn("Server.summaryMonthlyHandler: rejected", "error", err, "userID", userID, "year", year, "month", month)
			writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
			return
		}
		slog.Error("Server.summaryMonthlyHandler: failed", "error", err, "userID", userID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to build monthly report"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(report))
}

// parseLimitParam reads the history page size; the services apply default
// and maximum bounds.
func parseLimitParam(r *http.Request) int {
	return parseIntParam(r, "limit", 0)
}

// parseIntParam reads one integer query parameter, falling back to the
// default on absence or garbage.
func parseIntParam(r *http.Request, name string, defaultValue int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		slog.Debug("parseIntParam: invalid value, using default", "param", name, "value", raw)
		return defaultValue
	}
	return value
}
