package support

import (
	"bytes"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/hudscan/cmd/hudscan/cmd"
	"github.com/MeKo-Tech/hudscan/internal/ocr"
	"github.com/MeKo-Tech/hudscan/internal/testutil"
)

// TestContext holds the state of one scenario. Commands run in-process
// against a fresh root command inside a temporary working directory.
type TestContext struct {
	// Command execution state
	LastCommand string
	LastStdout  string
	LastStderr  string
	LastError   error

	// Test environment
	PrevDir     string
	TempDir     string
	FramesDir   string
	RegionsFile string
	Recognizer  *testutil.ScriptedRecognizer
	restoreOCR  func()

	// Server state
	HTTPServer         *httptest.Server
	LastHTTPStatusCode int
	LastHTTPResponse   string
	Messages           []map[string]any
}

// NewTestContext creates a scenario context and changes into its temporary
// directory.
func NewTestContext() (*TestContext, error) {
	prev, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}

	tempDir, err := os.MkdirTemp("", "hudscan-test-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	if err := os.Chdir(tempDir); err != nil {
		return nil, fmt.Errorf("failed to enter temp directory: %w", err)
	}

	testCtx := &TestContext{
		PrevDir:    prev,
		TempDir:    tempDir,
		FramesDir:  filepath.Join(tempDir, "frames"),
		Recognizer: testutil.NewScriptedRecognizer(),
	}
	rec := testCtx.Recognizer
	testCtx.restoreOCR = cmd.SetRecognizerFactory(func(ocr.Config) (ocr.Recognizer, error) {
		return rec, nil
	})
	return testCtx, nil
}

// Cleanup stops the server, restores the OCR backend and working directory,
// and removes the temporary directory.
func (testCtx *TestContext) Cleanup() error {
	if testCtx.HTTPServer != nil {
		testCtx.HTTPServer.Close()
		testCtx.HTTPServer = nil
	}
	if testCtx.restoreOCR != nil {
		testCtx.restoreOCR()
	}

	var errs []error
	if err := os.Chdir(testCtx.PrevDir); err != nil {
		errs = append(errs, fmt.Errorf("failed to restore working directory: %w", err))
	}
	if err := os.RemoveAll(testCtx.TempDir); err != nil {
		errs = append(errs, fmt.Errorf("failed to remove temp directory %s: %w", testCtx.TempDir, err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("cleanup errors: %v", errs)
	}
	return nil
}

// expand replaces the {frames}, {regions} and {tmp} placeholders.
func (testCtx *TestContext) expand(s string) string {
	return strings.NewReplacer(
		"{frames}", testCtx.FramesDir,
		"{regions}", testCtx.RegionsFile,
		"{tmp}", testCtx.TempDir,
	).Replace(s)
}

// runCommand executes the hudscan command line in-process.
func (testCtx *TestContext) runCommand(args []string) {
	root := cmd.NewRootCommand()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)

	testCtx.LastCommand = strings.Join(args, " ")
	testCtx.LastError = root.Execute()
	testCtx.LastStdout = stdout.String()
	testCtx.LastStderr = stderr.String()
}
