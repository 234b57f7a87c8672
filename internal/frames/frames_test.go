package frames

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MeKo-Tech/hudscan/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListOrdered(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFrames(t, dir, 3)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.png"), 0o750))

	got, err := ListOrdered(dir, 0.5)
	require.NoError(t, err)
	require.Len(t, got, 3)

	for i, f := range got {
		assert.Equal(t, i, f.Index)
		assert.InDelta(t, float64(i)*0.5, f.Offset, 1e-12)
		assert.Equal(t, testutil.FrameName(i, "3", "png"), f.Name())
	}
}

func TestListOrdered_Lexicographic(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.png", "a10.png", "a2.png"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o600))
	}

	got, err := ListOrdered(dir, 1)
	require.NoError(t, err)
	names := []string{got[0].Name(), got[1].Name(), got[2].Name()}
	assert.Equal(t, []string{"a10.png", "a2.png", "b.png"}, names)
}

func TestListOrdered_EmptyAndMissing(t *testing.T) {
	got, err := ListOrdered(t.TempDir(), 1)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = ListOrdered(filepath.Join(t.TempDir(), "missing"), 1)
	require.ErrorIs(t, err, ErrFrameSource)
}

func TestOpenAndSize(t *testing.T) {
	paths := testutil.WriteFrames(t, t.TempDir(), 1)

	img, err := Open(paths[0])
	require.NoError(t, err)
	assert.Equal(t, testutil.FixtureFrameSize, img.Bounds().Size())

	size, err := Size(paths[0])
	require.NoError(t, err)
	assert.Equal(t, img.Bounds(), size)
}

func TestClockTime(t *testing.T) {
	assert.InDelta(t, -7.75+0.5/3, ClockTime(0, 3, 7.75), 1e-12)
	assert.InDelta(t, -7.75+10.5/3, ClockTime(10, 3, 7.75), 1e-12)
	assert.InDelta(t, -1.0, ClockTime(4, 0, 1), 1e-12)
	assert.Zero(t, Interval(0))
	assert.InDelta(t, 0.25, Interval(4), 1e-12)
}

type fakeRunner struct {
	calls [][]string
	write int
	fail  bool
}

func (f *fakeRunner) run(_ context.Context, name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	if strings.Contains(name, "ffprobe") {
		return []byte("12.5\n"), nil
	}
	if f.fail {
		return []byte("boom"), errors.New("exit status 1")
	}
	pattern := args[len(args)-1]
	for i := 1; i <= f.write; i++ {
		path := strings.Replace(pattern, "%06d", strings.Repeat("0", 5)+string(rune('0'+i)), 1)
		if err := os.WriteFile(path, nil, 0o600); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

func newTestSampler(t *testing.T, cfg SamplerConfig, r *fakeRunner) *Sampler {
	t.Helper()
	s, err := NewSampler(cfg, nil)
	require.NoError(t, err)
	s.run = r.run
	return s
}

func touchVideo(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "flight.mp4")
	require.NoError(t, os.WriteFile(p, []byte("video"), 0o600))
	return p
}

func TestSampler_ClampsFPS(t *testing.T) {
	s, err := NewSampler(SamplerConfig{FPS: 60}, nil)
	require.NoError(t, err)
	assert.InDelta(t, DefaultMaxFPS, s.FPS(), 1e-12)

	_, err = NewSampler(SamplerConfig{FPS: 0}, nil)
	require.Error(t, err)
}

func TestSampler_Args(t *testing.T) {
	s, err := NewSampler(SamplerConfig{FPS: 3, Format: "bmp"}, nil)
	require.NoError(t, err)

	args := s.Args("in.mp4", "out")
	assert.Equal(t, []string{
		"-hide_banner", "-loglevel", "error",
		"-i", "in.mp4", "-vf", "fps=3", filepath.Join("out", "img%06d_fps_3.bmp"),
	}, args)
}

func TestSampler_Sample(t *testing.T) {
	runner := &fakeRunner{write: 4}
	cfg := DefaultSamplerConfig()
	cfg.Format = "png"
	s := newTestSampler(t, cfg, runner)

	dir := filepath.Join(t.TempDir(), "frames")
	res, err := s.Sample(context.Background(), touchVideo(t), dir)
	require.NoError(t, err)

	assert.False(t, res.Reused)
	assert.InDelta(t, 12.5, res.Duration, 1e-12)
	require.Len(t, res.Frames, 4)
	assert.Equal(t, "img000001_fps_3.png", res.Frames[0].Name())
	assert.InDelta(t, 1.0, res.Frames[3].Offset, 1e-12)
	assert.Len(t, runner.calls, 2)
}

func TestSampler_RefusesNonEmptyDir(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFrames(t, dir, 2)

	runner := &fakeRunner{}
	s := newTestSampler(t, DefaultSamplerConfig(), runner)

	_, err := s.Sample(context.Background(), touchVideo(t), dir)
	require.ErrorIs(t, err, ErrDirNotEmpty)
	assert.Empty(t, runner.calls)
}

func TestSampler_Reuse(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFrames(t, dir, 2)

	cfg := DefaultSamplerConfig()
	cfg.Reuse = true
	runner := &fakeRunner{}
	s := newTestSampler(t, cfg, runner)

	res, err := s.Sample(context.Background(), touchVideo(t), dir)
	require.NoError(t, err)
	assert.True(t, res.Reused)
	assert.Len(t, res.Frames, 2)
	assert.Empty(t, runner.calls)
}

func TestSampler_FFmpegFailure(t *testing.T) {
	s := newTestSampler(t, DefaultSamplerConfig(), &fakeRunner{fail: true})

	_, err := s.Sample(context.Background(), touchVideo(t), filepath.Join(t.TempDir(), "f"))
	require.ErrorContains(t, err, "ffmpeg failed")
	assert.ErrorContains(t, err, "boom")
}

func TestSampler_MissingVideo(t *testing.T) {
	s := newTestSampler(t, DefaultSamplerConfig(), &fakeRunner{})
	_, err := s.Sample(context.Background(), filepath.Join(t.TempDir(), "nope.mp4"), t.TempDir())
	require.Error(t, err)
}
