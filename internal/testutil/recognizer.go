package testutil

import (
	"context"
	"errors"
	"image"
	"sync"
)

// FailText makes ScriptedRecognizer return ErrScriptedFailure for that call.
const FailText = "<error>"

// ErrScriptedFailure is returned for scripted FailText responses.
var ErrScriptedFailure = errors.New("scripted recognition failure")

// ScriptedRecognizer answers Recognize calls from per-crop-size queues. Each
// call pops the next response for the image's size; an exhausted queue keeps
// returning its last entry. Calls for the same size must arrive in a
// deterministic order for the script to be meaningful, which holds for a
// single worker.
type ScriptedRecognizer struct {
	mu        sync.Mutex
	responses map[image.Point][]string
	calls     int
	closed    bool
}

// NewScriptedRecognizer returns an empty recognizer.
func NewScriptedRecognizer() *ScriptedRecognizer {
	return &ScriptedRecognizer{responses: make(map[image.Point][]string)}
}

// Add appends responses for crops of the given size.
func (s *ScriptedRecognizer) Add(size image.Point, texts ...string) *ScriptedRecognizer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[size] = append(s.responses[size], texts...)
	return s
}

// AddField appends responses for the named fixture region.
func (s *ScriptedRecognizer) AddField(name string, texts ...string) *ScriptedRecognizer {
	return s.Add(FixtureRegionSize(name), texts...)
}

// Recognize implements the recognizer interface.
func (s *ScriptedRecognizer) Recognize(ctx context.Context, img image.Image) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++

	size := img.Bounds().Size()
	queue := s.responses[size]
	if len(queue) == 0 {
		return "", nil
	}
	text := queue[0]
	if len(queue) > 1 {
		s.responses[size] = queue[1:]
	}
	if text == FailText {
		return "", ErrScriptedFailure
	}
	return text, nil
}

// Calls returns how many Recognize calls were made.
func (s *ScriptedRecognizer) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Close implements the recognizer interface.
func (s *ScriptedRecognizer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Closed reports whether Close was called.
func (s *ScriptedRecognizer) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
