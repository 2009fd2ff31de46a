package main

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"safety-monitor/db"
	"safety-monitor/distress"
	"safety-monitor/models"
	"safety-monitor/observe"
	"safety-monitor/utils"

	socketio "github.com/googollee/go-socket.io"
	"github.com/mdobak/go-xerrors"
)

type apiError struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	if w.Header().Get("Access-Control-Allow-Origin") == "" {
		w.Header().Set("Access-Control-Allow-Origin", "*")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("failed to encode JSON response: %v", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, apiError{Message: message})
}

// preflight sets the CORS headers and reports whether the request is fully
// handled (OPTIONS, or a method outside allowed).
func preflight(w http.ResponseWriter, r *http.Request, allowed ...string) bool {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	w.Header().Set("Access-Control-Allow-Methods", strings.Join(append(allowed, http.MethodOptions), ", "))
	w.Header().Set("Access-Control-Allow-Credentials", "true")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return true
	}
	for _, m := range allowed {
		if r.Method == m {
			return false
		}
	}
	writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	return true
}

func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := strings.TrimSpace(r.URL.Query().Get("user"))
	if userID == "" {
		writeJSONError(w, http.StatusBadRequest, "user query parameter is required")
		return "", false
	}
	return userID, true
}

func queryLimit(r *http.Request, fallback int) int {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		return fallback
	}
	return limit
}

func queryBool(r *http.Request, key string) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get(key))
	return v
}

func queryFloat(r *http.Request, key string) *float64 {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil
	}
	return &v
}

func (a *app) writeAnalysis(ctx context.Context, w http.ResponseWriter, req models.AnalysisRequest) {
	resp, err := a.analyze(ctx, req)
	if err != nil {
		switch {
		case errors.Is(err, errMissingClassification):
			writeJSONError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, errClassifierFailed):
			a.logger.ErrorContext(ctx, "classifier failed", slog.Any("error", xerrors.New(err)))
			writeJSONError(w, http.StatusBadGateway, "audio classification unavailable")
		default:
			a.logger.ErrorContext(ctx, "analysis failed", slog.Any("error", xerrors.New(err)))
			writeJSONError(w, http.StatusInternalServerError, "analysis failed")
		}
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *app) newAnalyzeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if preflight(w, r, http.MethodPost) {
			return
		}
		ctx := r.Context()

		var req models.AnalysisRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			a.logger.ErrorContext(ctx, "failed to parse request body", slog.Any("error", err))
			writeJSONError(w, http.StatusBadRequest, "invalid request payload")
			return
		}

		a.writeAnalysis(ctx, w, req)
	}
}

type scenarioInfo struct {
	Name           string                  `json:"name"`
	Classification distress.Classification `json:"classification"`
}

func (a *app) newScenarioListHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if preflight(w, r, http.MethodGet) {
			return
		}
		writeJSON(w, http.StatusOK, scenarioList())
	}
}

func scenarioList() []scenarioInfo {
	names := distress.ScenarioNames()
	list := make([]scenarioInfo, 0, len(names))
	for _, name := range names {
		c, _ := distress.Scenario(name)
		list = append(list, scenarioInfo{Name: name, Classification: c})
	}
	return list
}

// newScenarioHandler runs a preset: /api/scenarios/{name}?spike=&keyword=&lat=&lng=&user=
func (a *app) newScenarioHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if preflight(w, r, http.MethodGet, http.MethodPost) {
			return
		}

		req, err := scenarioRequest(models.ScenarioRequest{
			Scenario:      r.PathValue("name"),
			UserID:        r.URL.Query().Get("user"),
			Accelerometer: queryBool(r, "spike"),
			Keyword:       queryBool(r, "keyword"),
			Latitude:      queryFloat(r, "lat"),
			Longitude:     queryFloat(r, "lng"),
		})
		if err != nil {
			writeJSONError(w, http.StatusNotFound, err.Error())
			return
		}

		a.writeAnalysis(r.Context(), w, req)
	}
}

func (a *app) newDetectionsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if preflight(w, r, http.MethodGet) {
			return
		}
		ctx := r.Context()

		entries, err := a.journal.Recent(queryLimit(r, 0))
		if err != nil {
			a.logger.ErrorContext(ctx, "failed to load detections", slog.Any("error", xerrors.New(err)))
			writeJSONError(w, http.StatusInternalServerError, "failed to load detections")
			return
		}

		writeJSON(w, http.StatusOK, entries)
	}
}

func (a *app) newEventsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if preflight(w, r, http.MethodGet) {
			return
		}
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		ctx := r.Context()

		events, err := a.store.GetRecentDetectionEvents(ctx, userID, queryLimit(r, 10))
		if err != nil {
			a.logger.ErrorContext(ctx, "failed to load detection events", slog.Any("error", xerrors.New(err)))
			writeJSONError(w, http.StatusInternalServerError, "failed to load detection events")
			return
		}
		if events == nil {
			events = []models.DetectionEvent{}
		}

		writeJSON(w, http.StatusOK, events)
	}
}

func (a *app) newActiveAlertsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if preflight(w, r, http.MethodGet) {
			return
		}
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		ctx := r.Context()

		active, err := a.alerts.ActiveAlerts(ctx, userID)
		if err != nil {
			a.logger.ErrorContext(ctx, "failed to load active alerts", slog.Any("error", xerrors.New(err)))
			writeJSONError(w, http.StatusInternalServerError, "failed to load alerts")
			return
		}
		if active == nil {
			active = []models.SafetyAlert{}
		}

		writeJSON(w, http.StatusOK, active)
	}
}

func (a *app) newRespondHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if preflight(w, r, http.MethodPost) {
			return
		}
		ctx := r.Context()

		var req models.SafetyResponse
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AlertID == "" {
			writeJSONError(w, http.StatusBadRequest, "alertId is required")
			return
		}

		alert, err := a.alerts.RespondToSafetyCheck(ctx, req.AlertID, req.IsSafe, req.Message)
		if err != nil {
			if errors.Is(err, db.ErrNotFound) {
				writeJSONError(w, http.StatusNotFound, "alert not found")
				return
			}
			a.logger.ErrorContext(ctx, "failed to record safety response", slog.Any("error", xerrors.New(err)))
			writeJSONError(w, http.StatusInternalServerError, "failed to record response")
			return
		}

		writeJSON(w, http.StatusOK, alert)
	}
}

func (a *app) newSettingsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if preflight(w, r, http.MethodGet, http.MethodPut) {
			return
		}
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		ctx := r.Context()

		if r.Method == http.MethodPut {
			// Fields missing from the body keep their current values.
			settings, err := a.alerts.Settings(ctx, userID)
			if err != nil {
				a.logger.ErrorContext(ctx, "failed to load settings", slog.Any("error", xerrors.New(err)))
				writeJSONError(w, http.StatusInternalServerError, "failed to load settings")
				return
			}
			if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
				writeJSONError(w, http.StatusBadRequest, "invalid settings payload")
				return
			}
			if settings.SensitivityThreshold < 0 || settings.SensitivityThreshold > 1 {
				writeJSONError(w, http.StatusBadRequest, "sensitivity_threshold must be within [0,1]")
				return
			}
			if settings.FalseAlarmCooldownMinutes < 0 {
				writeJSONError(w, http.StatusBadRequest, "false_alarm_cooldown_minutes must not be negative")
				return
			}
			settings.UserID = userID
			if err := a.store.SaveUserSettings(ctx, settings); err != nil {
				a.logger.ErrorContext(ctx, "failed to save settings", slog.Any("error", xerrors.New(err)))
				writeJSONError(w, http.StatusInternalServerError, "failed to save settings")
				return
			}
		}

		settings, err := a.alerts.Settings(ctx, userID)
		if err != nil {
			a.logger.ErrorContext(ctx, "failed to load settings", slog.Any("error", xerrors.New(err)))
			writeJSONError(w, http.StatusInternalServerError, "failed to load settings")
			return
		}
		writeJSON(w, http.StatusOK, settings)
	}
}

type contactRequest struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
	Priority int    `json:"priority"`
	Active   *bool  `json:"active"`
}

func (a *app) newContactsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if preflight(w, r, http.MethodGet, http.MethodPost) {
			return
		}
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		ctx := r.Context()

		if r.Method == http.MethodPost {
			var req contactRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeJSONError(w, http.StatusBadRequest, "invalid contact payload")
				return
			}
			req.Name = strings.TrimSpace(req.Name)
			if req.Name == "" || (req.Phone == "" && req.Email == "") {
				writeJSONError(w, http.StatusBadRequest, "name and a phone or email are required")
				return
			}

			contact := models.EmergencyContact{
				UserID:   userID,
				Name:     req.Name,
				Phone:    strings.TrimSpace(req.Phone),
				Email:    strings.TrimSpace(req.Email),
				Priority: req.Priority,
				Active:   req.Active == nil || *req.Active,
			}
			if err := a.store.AddEmergencyContact(ctx, &contact); err != nil {
				a.logger.ErrorContext(ctx, "failed to add contact", slog.Any("error", xerrors.New(err)))
				writeJSONError(w, http.StatusInternalServerError, "failed to add contact")
				return
			}
			writeJSON(w, http.StatusCreated, contact)
			return
		}

		contacts, err := a.store.GetEmergencyContacts(ctx, userID)
		if err != nil {
			a.logger.ErrorContext(ctx, "failed to load contacts", slog.Any("error", xerrors.New(err)))
			writeJSONError(w, http.StatusInternalServerError, "failed to load contacts")
			return
		}
		if contacts == nil {
			contacts = []models.EmergencyContact{}
		}
		writeJSON(w, http.StatusOK, contacts)
	}
}

type chatRequest struct {
	Message string                    `json:"message"`
	Result  *distress.DetectionResult `json:"result,omitempty"`
}

type chatResponse struct {
	Reply string `json:"reply"`
}

func (a *app) newChatHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if preflight(w, r, http.MethodPost) {
			return
		}
		if a.chat == nil {
			writeJSONError(w, http.StatusServiceUnavailable, "assistant not configured")
			return
		}
		ctx := r.Context()

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Message) == "" {
			writeJSONError(w, http.StatusBadRequest, "message is required")
			return
		}

		reply, err := a.chat.GenerateResponse(ctx, req.Message, req.Result)
		if err != nil {
			a.logger.ErrorContext(ctx, "assistant failed", slog.Any("error", xerrors.New(err)))
			writeJSONError(w, http.StatusBadGateway, "assistant unavailable")
			return
		}
		writeJSON(w, http.StatusOK, chatResponse{Reply: reply})
	}
}

type healthResponse struct {
	Status     string `json:"status"`
	Classifier string `json:"classifier"`
}

func (a *app) newHealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "ok", Classifier: "not configured"}
		if a.classifier != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := a.classifier.HealthCheck(ctx); err != nil {
				resp.Classifier = "unreachable"
			} else {
				resp.Classifier = "ok"
			}
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// routes builds the HTTP mux. socketServer may be nil.
func (a *app) routes(socketServer http.Handler) http.Handler {
	mux := http.NewServeMux()
	if socketServer != nil {
		mux.Handle("/socket.io/", socketServer)
	}
	mux.HandleFunc("/api/analyze", a.newAnalyzeHandler())
	mux.HandleFunc("/api/scenarios", a.newScenarioListHandler())
	mux.HandleFunc("/api/scenarios/{name}", a.newScenarioHandler())
	mux.HandleFunc("/api/detections", a.newDetectionsHandler())
	mux.HandleFunc("/api/events", a.newEventsHandler())
	mux.HandleFunc("/api/alerts/active", a.newActiveAlertsHandler())
	mux.HandleFunc("/api/alerts/respond", a.newRespondHandler())
	mux.HandleFunc("/api/settings", a.newSettingsHandler())
	mux.HandleFunc("/api/contacts", a.newContactsHandler())
	mux.HandleFunc("/api/chat", a.newChatHandler())
	mux.HandleFunc("/healthz", a.newHealthHandler())
	mux.Handle("/metrics", observe.Handler())

	return observe.Middleware(a.metrics)(mux)
}

func serve(protocol, port string) {
	protocol = strings.ToLower(protocol)
	ctx := context.Background()
	logger := utils.GetLogger()

	shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "safety-monitor"})
	if err != nil {
		log.Fatalf("failed to initialise metrics: %v", err)
	}
	defer shutdown(context.Background())

	a, cleanup, err := buildApp(ctx)
	if err != nil {
		log.Fatalf("failed to start: %v", err)
	}
	defer cleanup()

	server := newSocketServer(newSocketController(a))
	go func() {
		if err := server.Serve(); err != nil {
			log.Fatalf("socketio listen error: %s\n", err)
		}
	}()
	defer server.Close()

	logger.InfoContext(ctx, "safety monitor ready",
		slog.String("protocol", protocol),
		slog.String("port", port),
		slog.Bool("classifier", a.classifier != nil),
		slog.Bool("assistant", a.chat != nil),
		slog.Bool("tts", a.tts != nil),
	)

	serveHTTP(server, protocol == "https", port, a.routes(server))
}

func serveHTTP(socketServer *socketio.Server, serveHTTPS bool, port string, handler http.Handler) {
	if handler == nil {
		handler = socketServer
	}
	if serveHTTPS {
		httpsAddr := ":" + port
		httpsServer := &http.Server{
			Addr: httpsAddr,
			TLSConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
			Handler: handler,
		}

		certKey := utils.GetEnv("CERT_KEY", "")
		certFile := utils.GetEnv("CERT_FILE", "")
		if certKey == "" || certFile == "" {
			log.Fatal("Missing cert: set CERT_KEY and CERT_FILE")
		}

		log.Printf("Starting HTTPS server on %s\n", httpsAddr)
		if err := httpsServer.ListenAndServeTLS(certFile, certKey); err != nil {
			log.Fatalf("HTTPS server ListenAndServeTLS: %v", err)
		}
	}

	log.Printf("Starting HTTP server on port %v", port)
	if err := http.ListenAndServe(":"+port, handler); err != nil {
		log.Fatalf("HTTP server ListenAndServe: %v", err)
	}
}
