package support

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/MeKo-Tech/hudscan/internal/extract"
	"github.com/MeKo-Tech/hudscan/internal/server"
	"github.com/MeKo-Tech/hudscan/internal/testutil"
	"github.com/cucumber/godog"
	"github.com/gorilla/websocket"
)

// RegisterServerSteps registers the HTTP and WebSocket steps.
func (testCtx *TestContext) RegisterServerSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a running server over the temporary directory$`, testCtx.aRunningServer)
	sc.Step(`^I GET "([^"]*)"$`, testCtx.iGET)
	sc.Step(`^the response status should be (\d+)$`, testCtx.theResponseStatusShouldBe)
	sc.Step(`^the response should contain "([^"]*)"$`, testCtx.theResponseShouldContain)
	sc.Step(`^the response should contain '([^']*)'$`, testCtx.theResponseShouldContain)
	sc.Step(`^I request extraction of "([^"]*)" over the websocket$`, testCtx.iRequestExtraction)
	sc.Step(`^I should receive (\d+) frame messages? in order$`, testCtx.iShouldReceiveFrameMessages)
	sc.Step(`^the last message should be a summary with (\d+) accepted and (\d+) rejected$`, testCtx.theLastMessageShouldBeASummary)
	sc.Step(`^the last message should be an error of type "([^"]*)"$`, testCtx.theLastMessageShouldBeAnError)
}

func (testCtx *TestContext) aRunningServer() error {
	srv, err := server.NewServer(server.Config{
		Catalog:    testutil.FixtureCatalog(),
		Extractor:  extract.New(testCtx.Recognizer),
		Closer:     testCtx.Recognizer,
		Workers:    1,
		FPS:        3,
		FramesRoot: testCtx.TempDir,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	mux := http.NewServeMux()
	srv.SetupRoutes(mux)
	testCtx.HTTPServer = httptest.NewServer(mux)
	return nil
}

func (testCtx *TestContext) iGET(path string) error {
	if testCtx.HTTPServer == nil {
		return fmt.Errorf("server is not running")
	}
	resp, err := testCtx.HTTPServer.Client().Get(testCtx.HTTPServer.URL + path)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	testCtx.LastHTTPStatusCode = resp.StatusCode
	testCtx.LastHTTPResponse = string(body)
	return nil
}

func (testCtx *TestContext) theResponseStatusShouldBe(code int) error {
	if testCtx.LastHTTPStatusCode != code {
		return fmt.Errorf("expected status %d, got %d: %s", code, testCtx.LastHTTPStatusCode, testCtx.LastHTTPResponse)
	}
	return nil
}

func (testCtx *TestContext) theResponseShouldContain(s string) error {
	return containsOrErr("response", testCtx.LastHTTPResponse, s)
}

// iRequestExtraction sends one extract request and collects messages until
// a summary or an error arrives.
func (testCtx *TestContext) iRequestExtraction(dir string) error {
	if testCtx.HTTPServer == nil {
		return fmt.Errorf("server is not running")
	}
	url := "ws" + strings.TrimPrefix(testCtx.HTTPServer.URL, "http") + "/ws/extract"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return fmt.Errorf("failed to dial websocket: %w", err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	defer func() { _ = conn.Close() }()

	req := server.ExtractRequest{Type: server.MessageExtract, Dir: dir}
	if err := conn.WriteJSON(req); err != nil {
		return err
	}

	testCtx.Messages = nil
	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	for {
		var msg map[string]any
		if err := conn.ReadJSON(&msg); err != nil {
			return fmt.Errorf("failed to read message: %w", err)
		}
		testCtx.Messages = append(testCtx.Messages, msg)
		if t := msg["type"]; t == server.MessageSummary || t == server.MessageError {
			return nil
		}
	}
}

func (testCtx *TestContext) iShouldReceiveFrameMessages(n int) error {
	var frames []map[string]any
	for _, m := range testCtx.Messages {
		if m["type"] == server.MessageFrame {
			frames = append(frames, m)
		}
	}
	if len(frames) != n {
		return fmt.Errorf("expected %d frame messages, got %d", n, len(frames))
	}
	for i, f := range frames {
		if idx, _ := f["frame"].(float64); int(idx) != i {
			return fmt.Errorf("frame message %d carries frame %v", i, f["frame"])
		}
	}
	return nil
}

func (testCtx *TestContext) lastMessage() (map[string]any, error) {
	if len(testCtx.Messages) == 0 {
		return nil, fmt.Errorf("no messages received")
	}
	return testCtx.Messages[len(testCtx.Messages)-1], nil
}

func (testCtx *TestContext) theLastMessageShouldBeASummary(accepted, rejected int) error {
	last, err := testCtx.lastMessage()
	if err != nil {
		return err
	}
	if last["type"] != server.MessageSummary {
		data, _ := json.Marshal(last)
		return fmt.Errorf("last message is not a summary: %s", data)
	}
	summary, _ := last["summary"].(map[string]any)
	gotAccepted, _ := summary["accepted"].(float64)
	gotRejected, _ := summary["rejected"].(float64)
	if int(gotAccepted) != accepted || int(gotRejected) != rejected {
		return fmt.Errorf("expected %d accepted and %d rejected, got %v and %v",
			accepted, rejected, summary["accepted"], summary["rejected"])
	}
	return nil
}

func (testCtx *TestContext) theLastMessageShouldBeAnError(errType string) error {
	last, err := testCtx.lastMessage()
	if err != nil {
		return err
	}
	if last["type"] != server.MessageError || last["error_type"] != errType {
		data, _ := json.Marshal(last)
		return fmt.Errorf("expected error of type %s, got %s", errType, data)
	}
	return nil
}
