package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"safety-monitor/alerts"
	"safety-monitor/classifier"
	"safety-monitor/db"
	"safety-monitor/detections"
	"safety-monitor/distress"
	"safety-monitor/models"
	"safety-monitor/observe"
	"safety-monitor/tts"
	"safety-monitor/utils"

	"github.com/mdobak/go-xerrors"
)

var (
	errMissingClassification = errors.New("classification or samples required")
	errClassifierFailed      = errors.New("audio classification failed")
)

// assistant is the safety chat backend.
type assistant interface {
	GenerateResponse(ctx context.Context, message string, result *distress.DetectionResult) (string, error)
	GenerateResponseStream(ctx context.Context, message string, result *distress.DetectionResult, onChunk func(string) error) error
}

// app holds everything the transports need. Optional collaborators are nil
// when not configured.
type app struct {
	engine     *distress.Engine
	alerts     *alerts.Service
	store      db.DBClient
	journal    *detections.Journal
	classifier *classifier.Client
	chat       assistant
	tts        *tts.GoogleTTSClient
	metrics    *observe.Metrics
	logger     *slog.Logger
}

type analysisResponse struct {
	Result      distress.DetectionResult `json:"result"`
	Explanation string                   `json:"explanation"`
	Valid       bool                     `json:"valid"`
	Alert       *models.SafetyAlert      `json:"alert,omitempty"`
	AudioLevel  *float64                 `json:"audio_level,omitempty"`
}

// analyze runs one request through classification, the engine and the alert
// pipeline. Storage failures are logged and never withhold the verdict.
func (a *app) analyze(ctx context.Context, req models.AnalysisRequest) (analysisResponse, error) {
	started := time.Now()

	var resp analysisResponse
	if len(req.Samples) > 0 {
		level := classifier.AudioLevel(req.Samples)
		resp.AudioLevel = &level
	}

	var scores distress.Classification
	switch {
	case req.Classification != nil:
		scores = *req.Classification
	case len(req.Samples) > 0 && a.classifier != nil:
		c, err := a.classifier.Classify(ctx, req.Samples)
		if err != nil {
			a.metrics.RecordClassifierError(ctx)
			return analysisResponse{}, fmt.Errorf("%w: %w", errClassifierFailed, err)
		}
		scores = c
	default:
		return analysisResponse{}, errMissingClassification
	}

	// Out-of-range scores are reported but still analyzed.
	resp.Valid = a.engine.Validate(scores)

	input := distress.AnalysisInput{
		Classification: scores,
		Accelerometer:  req.Accelerometer,
		Location:       req.Location(),
		Keywords:       req.Keywords,
	}
	if req.UserID != "" {
		settings, err := a.alerts.Settings(ctx, req.UserID)
		if err != nil {
			a.logger.WarnContext(ctx, "using unfiltered input, settings unavailable",
				slog.String("user_id", req.UserID),
				slog.Any("error", xerrors.New(err)),
			)
		} else {
			input = alerts.ApplySettings(input, settings)
		}
	}

	resp.Result = a.engine.Analyze(input)
	resp.Explanation = a.engine.Explain(resp.Result)
	a.metrics.RecordAnalysis(ctx, string(resp.Result.DistressLevel), time.Since(started))

	if a.journal != nil {
		if _, err := a.journal.Append(resp.Result, req.UserID); err != nil {
			a.logger.ErrorContext(ctx, "failed to journal detection", slog.Any("error", xerrors.New(err)))
		}
	}

	alert, err := a.alerts.HandleDetection(ctx, resp.Result, req.UserID)
	if err != nil {
		a.logger.ErrorContext(ctx, "alert pipeline failed", slog.Any("error", xerrors.New(err)))
	}
	resp.Alert = alert

	a.logger.InfoContext(ctx, "analysis complete",
		slog.String("distress_level", string(resp.Result.DistressLevel)),
		slog.Bool("detection", resp.Result.Detection),
		slog.Bool("valid", resp.Valid),
		slog.Bool("alert", alert != nil),
		slog.Float64("latency_ms", time.Since(started).Seconds()*1000),
	)

	return resp, nil
}

// scenarioRequest turns a preset into an ordinary analysis request.
func scenarioRequest(req models.ScenarioRequest) (models.AnalysisRequest, error) {
	var loc *distress.Location
	if req.Latitude != nil && req.Longitude != nil {
		loc = &distress.Location{Latitude: *req.Latitude, Longitude: *req.Longitude}
	}

	input, err := distress.BuildScenarioInput(req.Scenario, req.Accelerometer, req.Keyword, loc)
	if err != nil {
		return models.AnalysisRequest{}, err
	}

	return models.AnalysisRequest{
		UserID:         req.UserID,
		Classification: &input.Classification,
		Accelerometer:  input.Accelerometer,
		Latitude:       req.Latitude,
		Longitude:      req.Longitude,
		Keywords:       input.Keywords,
	}, nil
}

func newApp(engine *distress.Engine, alertService *alerts.Service, store db.DBClient, journal *detections.Journal) *app {
	return &app{
		engine:  engine,
		alerts:  alertService,
		store:   store,
		journal: journal,
		logger:  utils.GetLogger(),
	}
}
