package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/MeKo-Tech/hudscan/internal/frames"
	"github.com/MeKo-Tech/hudscan/internal/pipeline"
	"github.com/MeKo-Tech/hudscan/internal/region"
	"github.com/MeKo-Tech/hudscan/internal/validate"
	"github.com/gorilla/websocket"
)

// Message types exchanged on /ws/extract.
const (
	MessageExtract = "extract"
	MessageFrame   = "frame"
	MessageSummary = "summary"
	MessageError   = "error"
)

// Error types carried by error messages.
const (
	ErrorTypeInvalidRequest = "invalid_request"
	ErrorTypeFrameSource    = "frame_source"
	ErrorTypeCatalog        = "invalid_catalog"
	ErrorTypeProcessing     = "processing_error"
)

// WebSocket upgrader with reasonable defaults.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ExtractRequest asks the server to process a frame directory it can read.
type ExtractRequest struct {
	Type    string  `json:"type"`
	Dir     string  `json:"dir"`
	Workers int     `json:"workers,omitempty"`
	FPS     float64 `json:"fps,omitempty"`
}

// FrameMessage reports the outcome of one frame. Frames arrive in order.
type FrameMessage struct {
	Type      string              `json:"type"`
	Frame     int                 `json:"frame"`
	Name      string              `json:"name"`
	Accepted  bool                `json:"accepted"`
	Record    *validate.Record    `json:"record,omitempty"`
	Rejection *validate.Rejection `json:"rejection,omitempty"`
}

// SummaryMessage closes a successful run.
type SummaryMessage struct {
	Type            string               `json:"type"`
	RunID           string               `json:"run_id"`
	Summary         pipeline.SummaryView `json:"summary"`
	DurationMs      int64                `json:"duration_ms"`
	FramesPerSecond float64              `json:"frames_per_second"`
}

// ErrorMessage reports a failed request. A run that fails midway has
// already streamed some frame messages.
type ErrorMessage struct {
	Type      string `json:"type"`
	ErrorType string `json:"error_type"`
	Error     string `json:"error"`
}

// WebSocketConnWriter is an interface for writing WebSocket messages.
type WebSocketConnWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// lockedWriter serializes writes; gorilla connections allow one writer.
type lockedWriter struct {
	mu   sync.Mutex
	conn WebSocketConnWriter
}

func (l *lockedWriter) WriteMessage(messageType int, data []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.conn.WriteMessage(messageType, data)
}

// extractWebSocketHandler handles WebSocket connections for streamed extraction.
func (s *Server) extractWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() {
		_ = conn.Close()
	}()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	s.logger.Info("WebSocket connection established", "remote_addr", getClientIP(r))

	s.handleWebSocketConnection(r.Context(), conn)
}

// handleWebSocketConnection processes messages from a WebSocket connection
// until the client goes away.
func (s *Server) handleWebSocketConnection(ctx context.Context, conn *websocket.Conn) {
	writer := &lockedWriter{conn: conn}

	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
					return
				}
			}
		}
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Error("WebSocket error", "error", err)
			}
			return
		}
		websocketMessagesTotal.WithLabelValues("received").Inc()

		if messageType == websocket.TextMessage {
			s.handleWebSocketMessage(ctx, writer, data)
			// A run may outlast the read deadline.
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		}
	}
}

// handleWebSocketMessage decodes and runs one extraction request.
func (s *Server) handleWebSocketMessage(ctx context.Context, conn WebSocketConnWriter, data []byte) {
	var req ExtractRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendWebSocketError(conn, ErrorTypeInvalidRequest, fmt.Sprintf("Failed to parse request: %v", err))
		return
	}
	if req.Type != MessageExtract {
		s.sendWebSocketError(conn, ErrorTypeInvalidRequest, "Unsupported request type: "+req.Type)
		return
	}
	if req.Dir == "" {
		s.sendWebSocketError(conn, ErrorTypeInvalidRequest, "No frame directory provided")
		return
	}
	if req.Workers < 0 || req.FPS < 0 {
		s.sendWebSocketError(conn, ErrorTypeInvalidRequest, "workers and fps must not be negative")
		return
	}

	err := s.runExtraction(ctx, conn, req)
	status := "success"
	if err != nil {
		status = "error"
	}
	extractRequestsTotal.WithLabelValues(status).Inc()
}

// runExtraction streams frame messages while the aggregator runs, then the
// summary.
func (s *Server) runExtraction(ctx context.Context, conn WebSocketConnWriter, req ExtractRequest) error {
	dir, err := s.resolveDir(req.Dir)
	if err != nil {
		s.sendWebSocketError(conn, ErrorTypeInvalidRequest, err.Error())
		return err
	}

	fps := req.FPS
	if fps == 0 {
		fps = s.fps
	}
	samples, err := frames.ListOrdered(dir, frames.Interval(fps))
	if err != nil {
		s.sendWebSocketError(conn, ErrorTypeFrameSource, err.Error())
		return err
	}

	workers := req.Workers
	if workers == 0 {
		workers = s.workers
	}

	agg := pipeline.NewAggregator(s.catalog, s.extractor,
		pipeline.WithWorkers(workers),
		pipeline.WithLogger(s.logger),
		pipeline.WithOutcomeHook(func(fo pipeline.FrameOutcome) {
			s.sendWebSocketMessage(conn, FrameMessage{
				Type:      MessageFrame,
				Frame:     fo.Frame.Index,
				Name:      fo.Frame.Name(),
				Accepted:  fo.Outcome.Accepted(),
				Record:    fo.Outcome.Record,
				Rejection: fo.Outcome.Rejection,
			})
		}),
	)

	res, err := agg.Run(ctx, samples)
	if err != nil {
		errType := ErrorTypeProcessing
		if errors.Is(err, region.ErrInvalidCatalog) {
			errType = ErrorTypeCatalog
		}
		s.sendWebSocketError(conn, errType, err.Error())
		return err
	}

	s.sendWebSocketMessage(conn, SummaryMessage{
		Type:            MessageSummary,
		RunID:           res.RunID,
		Summary:         res.Summary.View(),
		DurationMs:      res.Duration.Milliseconds(),
		FramesPerSecond: res.FramesPerSecond(),
	})
	return nil
}

// resolveDir confines dir to the configured frames root.
func (s *Server) resolveDir(dir string) (string, error) {
	if s.framesRoot == "" {
		return filepath.Clean(dir), nil
	}
	root := filepath.Clean(s.framesRoot)
	full := dir
	if !filepath.IsAbs(full) {
		full = filepath.Join(root, full)
	}
	full = filepath.Clean(full)
	rel, err := filepath.Rel(root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("directory %q is outside the frames root", dir)
	}
	return full, nil
}

// sendWebSocketMessage sends a JSON message over WebSocket.
func (s *Server) sendWebSocketMessage(conn WebSocketConnWriter, msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error("Failed to marshal WebSocket message", "error", err)
		return
	}

	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		s.logger.Error("Failed to send WebSocket message", "error", err)
		return
	}

	websocketMessagesTotal.WithLabelValues("sent").Inc()
}

// sendWebSocketError sends an error message over WebSocket.
func (s *Server) sendWebSocketError(conn WebSocketConnWriter, errorType, message string) {
	s.sendWebSocketMessage(conn, ErrorMessage{
		Type:      MessageError,
		ErrorType: errorType,
		Error:     message,
	})
}
