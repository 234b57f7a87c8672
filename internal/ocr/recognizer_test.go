package ocr

import (
	"context"
	"errors"
	"image"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type slowRecognizer struct {
	delay  time.Duration
	text   string
	closed bool
}

func (s *slowRecognizer) Recognize(ctx context.Context, _ image.Image) (string, error) {
	select {
	case <-time.After(s.delay):
		return s.text, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (s *slowRecognizer) Close() error {
	s.closed = true
	return nil
}

func TestWithTimeout_ZeroReturnsSame(t *testing.T) {
	r := &slowRecognizer{}
	assert.Same(t, r, WithTimeout(r, 0))
}

func TestWithTimeout_Passthrough(t *testing.T) {
	inner := &slowRecognizer{delay: time.Millisecond, text: "123"}
	r := WithTimeout(inner, time.Second)

	text, err := r.Recognize(context.Background(), image.NewGray(image.Rect(0, 0, 1, 1)))
	require.NoError(t, err)
	assert.Equal(t, "123", text)

	require.NoError(t, r.Close())
	assert.True(t, inner.closed)
}

func TestWithTimeout_Expires(t *testing.T) {
	r := WithTimeout(&slowRecognizer{delay: time.Second}, 10*time.Millisecond)

	_, err := r.Recognize(context.Background(), image.NewGray(image.Rect(0, 0, 1, 1)))
	require.ErrorIs(t, err, ErrTimeout)
	assert.ErrorIs(t, err, ErrRecognition)
}

// stuckRecognizer ignores its context, like a CGo call.
type stuckRecognizer struct {
	release  chan struct{}
	finished chan struct{}
}

func (s *stuckRecognizer) Recognize(context.Context, image.Image) (string, error) {
	<-s.release
	close(s.finished)
	return "late", nil
}

func (s *stuckRecognizer) Close() error { return nil }

func TestWithTimeout_AbandonsRunningCall(t *testing.T) {
	inner := &stuckRecognizer{release: make(chan struct{}), finished: make(chan struct{})}
	r := WithTimeout(inner, 10*time.Millisecond)

	_, err := r.Recognize(context.Background(), image.NewGray(image.Rect(0, 0, 1, 1)))
	require.ErrorIs(t, err, ErrTimeout)

	select {
	case <-inner.finished:
		t.Fatal("inner call should still be running after the timeout")
	default:
	}

	// The abandoned call completes without blocking on the result channel.
	close(inner.release)
	select {
	case <-inner.finished:
	case <-time.After(time.Second):
		t.Fatal("inner call did not finish after release")
	}
}

func TestWithTimeout_ParentCancelled(t *testing.T) {
	r := WithTimeout(&slowRecognizer{delay: time.Second}, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Recognize(ctx, image.NewGray(image.Rect(0, 0, 1, 1)))
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, errors.Is(err, ErrRecognition))
}
