// Package frames discovers, orders and opens the still frames sampled from
// an overlay video, and drives ffmpeg to produce them.
package frames

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"

	"github.com/MeKo-Tech/hudscan/internal/utils"
)

// ErrFrameSource is wrapped when the frame directory cannot be read.
var ErrFrameSource = errors.New("frame source unreadable")

// FrameSample is one still frame of the video.
type FrameSample struct {
	Index int
	Path  string
	// Offset is Index times the sampling interval, in seconds from the start
	// of the video.
	Offset float64
}

// Name returns the frame's file name.
func (f FrameSample) Name() string { return filepath.Base(f.Path) }

// ListOrdered returns the supported image files directly inside dir, sorted
// lexicographically by name. interval is the time between two samples.
func ListOrdered(dir string, interval float64) ([]FrameSample, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFrameSource, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !utils.IsSupportedImage(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	out := make([]FrameSample, len(names))
	for i, name := range names {
		out[i] = FrameSample{
			Index:  i,
			Path:   filepath.Join(dir, name),
			Offset: float64(i) * interval,
		}
	}
	return out, nil
}

// Open decodes a frame. The underlying file is closed before returning.
func Open(path string) (image.Image, error) {
	img, _, err := utils.LoadImage(path)
	return img, err
}

// Size reads only the header of a frame and returns its pixel bounds.
func Size(path string) (image.Rectangle, error) {
	meta, err := utils.ReadImageMetadata(path)
	if err != nil {
		return image.Rectangle{}, err
	}
	return meta.Bounds(), nil
}

// Interval returns the sampling interval for fps, or 0 when fps is not
// positive.
func Interval(fps float64) float64 {
	if fps <= 0 {
		return 0
	}
	return 1 / fps
}

// ClockTime estimates the video time of frame index from a manually measured
// offset between video start and the on-screen clock. Frames are assumed to
// be sampled in the middle of their interval.
func ClockTime(index int, fps, clockOffset float64) float64 {
	if fps <= 0 {
		return -clockOffset
	}
	return -clockOffset + (float64(index)+0.5)/fps
}
