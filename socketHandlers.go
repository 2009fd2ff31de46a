package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"safety-monitor/distress"
	"safety-monitor/models"

	socketio "github.com/googollee/go-socket.io"
	"github.com/googollee/go-socket.io/engineio"
	"github.com/googollee/go-socket.io/engineio/transport"
	"github.com/googollee/go-socket.io/engineio/transport/polling"
	"github.com/googollee/go-socket.io/engineio/transport/websocket"
	"github.com/mdobak/go-xerrors"
)

// emitter is the part of socketio.Conn the controller uses.
type emitter interface {
	ID() string
	Emit(eventName string, v ...interface{})
}

type socketController struct {
	app *app
}

type monitorInfo struct {
	Scenarios []scenarioInfo  `json:"scenarios"`
	Policy    distress.Policy `json:"policy"`
}

type safetyPrompt struct {
	AlertID string `json:"alertId,omitempty"`
	Message string `json:"message"`
	// Audio is base64 MP3.
	Audio string `json:"audio"`
}

func newSocketController(a *app) *socketController {
	return &socketController{app: a}
}

func (c *socketController) emitError(socket emitter, message string) {
	socket.Emit("analysisError", map[string]string{"message": message})
}

func (c *socketController) emitMonitorInfo(socket emitter) {
	socket.Emit("monitorInfo", monitorInfo{
		Scenarios: scenarioList(),
		Policy:    c.app.engine.Policy(),
	})
}

func (c *socketController) handleAnalyze(ctx context.Context, socket emitter, payload string) {
	logger := c.app.logger

	if payload == "" {
		c.emitError(socket, "no analysis data received")
		return
	}

	var req models.AnalysisRequest
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		logger.ErrorContext(ctx, "failed to parse analyze payload", slog.Any("error", xerrors.New(err)))
		c.emitError(socket, "invalid analysis payload")
		return
	}

	c.runAnalysis(ctx, socket, req)
}

func (c *socketController) handleRunScenario(ctx context.Context, socket emitter, payload string) {
	var scenario models.ScenarioRequest
	if err := json.Unmarshal([]byte(payload), &scenario); err != nil {
		c.emitError(socket, "invalid scenario payload")
		return
	}

	req, err := scenarioRequest(scenario)
	if err != nil {
		c.emitError(socket, err.Error())
		return
	}

	c.runAnalysis(ctx, socket, req)
}

func (c *socketController) runAnalysis(ctx context.Context, socket emitter, req models.AnalysisRequest) {
	logger := c.app.logger

	resp, err := c.app.analyze(ctx, req)
	if err != nil {
		logger.ErrorContext(ctx, "socket analysis failed",
			slog.String("socketID", socket.ID()),
			slog.Any("error", xerrors.New(err)),
		)
		c.emitError(socket, err.Error())
		return
	}

	socket.Emit("detection", resp)
	logger.InfoContext(ctx, "emitted detection",
		slog.String("socketID", socket.ID()),
		slog.String("distress_level", string(resp.Result.DistressLevel)),
	)

	if resp.Result.DistressLevel == distress.LevelLow {
		c.emitSafetyPrompt(ctx, socket, resp)
	}
}

// emitSafetyPrompt speaks the safety-check question when TTS is configured.
func (c *socketController) emitSafetyPrompt(ctx context.Context, socket emitter, resp analysisResponse) {
	if c.app.tts == nil {
		return
	}

	ttsCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	audio, err := c.app.tts.SynthesizeText(ttsCtx, resp.Result.MessageForUser)
	if err != nil {
		c.app.logger.WarnContext(ctx, "failed to synthesize safety prompt", slog.Any("error", xerrors.New(err)))
		return
	}

	prompt := safetyPrompt{
		Message: resp.Result.MessageForUser,
		Audio:   base64.StdEncoding.EncodeToString(audio),
	}
	if resp.Alert != nil {
		prompt.AlertID = resp.Alert.ID
	}
	socket.Emit("safetyPrompt", prompt)
}

func (c *socketController) handleRespondSafetyCheck(ctx context.Context, socket emitter, payload string) {
	var req models.SafetyResponse
	if err := json.Unmarshal([]byte(payload), &req); err != nil || req.AlertID == "" {
		c.emitError(socket, "alertId is required")
		return
	}

	alert, err := c.app.alerts.RespondToSafetyCheck(ctx, req.AlertID, req.IsSafe, req.Message)
	if err != nil {
		c.app.logger.ErrorContext(ctx, "failed to record safety response", slog.Any("error", xerrors.New(err)))
		c.emitError(socket, "failed to record safety response")
		return
	}

	socket.Emit("alertUpdated", alert)
}

type chatChunk struct {
	Text string `json:"text"`
}

// handleChat streams the assistant's reply as chatChunk events followed by a
// single chatDone carrying the whole reply.
func (c *socketController) handleChat(ctx context.Context, socket emitter, payload string) {
	if c.app.chat == nil {
		socket.Emit("chatError", map[string]string{"message": "assistant not configured"})
		return
	}

	var req chatRequest
	if err := json.Unmarshal([]byte(payload), &req); err != nil || strings.TrimSpace(req.Message) == "" {
		socket.Emit("chatError", map[string]string{"message": "message is required"})
		return
	}

	var reply strings.Builder
	err := c.app.chat.GenerateResponseStream(ctx, req.Message, req.Result, func(text string) error {
		reply.WriteString(text)
		socket.Emit("chatChunk", chatChunk{Text: text})
		return nil
	})
	if err != nil {
		c.app.logger.ErrorContext(ctx, "assistant stream failed",
			slog.String("socketID", socket.ID()),
			slog.Any("error", xerrors.New(err)),
		)
		socket.Emit("chatError", map[string]string{"message": "assistant unavailable"})
		return
	}

	socket.Emit("chatDone", chatResponse{Reply: reply.String()})
}

// guarded runs fn off the event loop and reports panics to the client.
func (c *socketController) guarded(socket emitter, event string, fn func(ctx context.Context)) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("panic in %s for socket %s: %v\n", event, socket.ID(), r)
				c.emitError(socket, "internal server error during processing")
			}
		}()
		fn(context.Background())
	}()
}

func newSocketServer(controller *socketController) *socketio.Server {
	allowOriginFunc := func(r *http.Request) bool {
		return true
	}

	server := socketio.NewServer(&engineio.Options{
		PingTimeout:  60 * time.Second,
		PingInterval: 25 * time.Second,
		Transports: []transport.Transport{
			&websocket.Transport{
				CheckOrigin: allowOriginFunc,
			},
			&polling.Transport{
				CheckOrigin: allowOriginFunc,
			},
		},
	})

	server.OnConnect("/", func(socket socketio.Conn) error {
		socket.SetContext("")
		log.Printf("CONNECTED: %s, remote addr: %s\n", socket.ID(), socket.RemoteAddr())
		controller.app.metrics.SocketConnected(context.Background())
		controller.emitMonitorInfo(socket)
		return nil
	})

	server.OnEvent("/", "requestMonitorInfo", func(socket socketio.Conn) {
		controller.emitMonitorInfo(socket)
	})

	server.OnEvent("/", "analyze", func(socket socketio.Conn, msg string) {
		controller.guarded(socket, "analyze", func(ctx context.Context) {
			controller.handleAnalyze(ctx, socket, msg)
		})
	})

	server.OnEvent("/", "runScenario", func(socket socketio.Conn, msg string) {
		controller.guarded(socket, "runScenario", func(ctx context.Context) {
			controller.handleRunScenario(ctx, socket, msg)
		})
	})

	server.OnEvent("/", "respondSafetyCheck", func(socket socketio.Conn, msg string) {
		controller.guarded(socket, "respondSafetyCheck", func(ctx context.Context) {
			controller.handleRespondSafetyCheck(ctx, socket, msg)
		})
	})

	server.OnEvent("/", "chat", func(socket socketio.Conn, msg string) {
		controller.guarded(socket, "chat", func(ctx context.Context) {
			controller.handleChat(ctx, socket, msg)
		})
	})

	server.OnError("/", func(s socketio.Conn, e error) {
		log.Println("meet error:", e)
	})

	server.OnDisconnect("/", func(s socketio.Conn, reason string) {
		log.Printf("Socket disconnected - ID: %s, Reason: %s\n", s.ID(), reason)
		controller.app.metrics.SocketDisconnected(context.Background())
	})

	return server
}
