package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"bridgeflow-backend/internal/heatmap"
	"bridgeflow-backend/internal/models"
	"bridgeflow-backend/internal/pipeline"
	"bridgeflow-backend/internal/stats"
	"bridgeflow-backend/internal/utils"

	"go.uber.org/zap"
)

// apiError is the body of every error response
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// parseRequest reads a dashboard request from the query string. Values are validated by the coordinator.
func parseRequest(r *http.Request) (pipeline.Request, error) {
	q := r.URL.Query()
	req := pipeline.Request{
		Period:      stats.Period(q.Get("period")),
		Flow:        models.FlowFilter(q.Get("flow")),
		Value:       stats.ValueField(q.Get("value")),
		Metric:      heatmap.Metric(q.Get("metric")),
		Granularity: stats.Granularity(q.Get("granularity")),
	}
	for _, v := range q["tokens"] {
		for _, t := range strings.Split(v, ",") {
			if t = strings.TrimSpace(t); t != "" {
				req.Tokens = append(req.Tokens, t)
			}
		}
	}
	if v := q.Get("end"); v != "" {
		end, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return req, utils.WrapError(err, utils.ErrorTypeValidation, "BAD_END", "end must be an RFC 3339 timestamp", utils.ServerComponent)
		}
		req.End = end
	}
	return req, nil
}

// build parses the request and runs the coordinator, writing the error response on failure
func (s *Server) build(w http.ResponseWriter, r *http.Request) (*pipeline.Dashboard, bool) {
	req, err := parseRequest(r)
	if err == nil {
		var dash *pipeline.Dashboard
		if dash, err = s.builder.Build(r.Context(), req); err == nil {
			return dash, true
		}
	}
	s.writeError(w, err)
	return nil, false
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if dash, ok := s.build(w, r); ok {
		s.writeJSON(w, http.StatusOK, dash)
	}
}

func (s *Server) handleVolume(w http.ResponseWriter, r *http.Request) {
	dash, ok := s.build(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"period":      dash.Period,
		"window":      dash.Window,
		"granularity": dash.Granularity,
		"series":      dash.Volume,
	})
}

func (s *Server) handleCumulative(w http.ResponseWriter, r *http.Request) {
	dash, ok := s.build(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"period":      dash.Period,
		"window":      dash.Window,
		"granularity": dash.Granularity,
		"series":      dash.Cumulative,
	})
}

func (s *Server) handleHeatmap(w http.ResponseWriter, r *http.Request) {
	if dash, ok := s.build(w, r); ok {
		s.writeJSON(w, http.StatusOK, dash.Heatmap)
	}
}

func (s *Server) handleTotals(w http.ResponseWriter, r *http.Request) {
	dash, ok := s.build(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"period":   dash.Period,
		"window":   dash.Window,
		"previous": dash.Previous,
		"totals":   dash.Totals,
	})
}

// handleHealth returns health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"clients": s.hub.ClientCount(),
		"uptime":  time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Debug("Failed to write response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	body := apiError{Code: "INTERNAL_ERROR", Message: "internal error"}
	status := http.StatusInternalServerError

	var appErr *utils.AppError
	if errors.As(err, &appErr) {
		switch appErr.Type {
		case utils.ErrorTypeValidation:
			status = http.StatusBadRequest
			body = apiError{Code: appErr.Code, Message: err.Error()}
		case utils.ErrorTypeUpstream:
			status = http.StatusBadGateway
			body = apiError{Code: appErr.Code, Message: appErr.Message}
		}
	}
	if status != http.StatusBadRequest {
		utils.LogError(s.logger, "Request failed", err)
	}
	s.writeJSON(w, status, map[string]apiError{"error": body})
}
