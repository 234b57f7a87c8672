package testutil

import (
	"context"
	"image"
	"testing"

	"github.com/MeKo-Tech/hudscan/internal/region"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScriptedRecognizer(t *testing.T) {
	r := NewScriptedRecognizer().
		AddField(region.FieldHeartRate, "072", FailText, "080")

	crop := image.NewGray(image.Rectangle{Max: FixtureRegionSize(region.FieldHeartRate)})
	ctx := context.Background()

	text, err := r.Recognize(ctx, crop)
	require.NoError(t, err)
	assert.Equal(t, "072", text)

	_, err = r.Recognize(ctx, crop)
	require.ErrorIs(t, err, ErrScriptedFailure)

	for range 2 {
		text, err = r.Recognize(ctx, crop)
		require.NoError(t, err)
		assert.Equal(t, "080", text)
	}

	text, err = r.Recognize(ctx, image.NewGray(image.Rect(0, 0, 1, 1)))
	require.NoError(t, err)
	assert.Empty(t, text)
	assert.Equal(t, 5, r.Calls())

	require.NoError(t, r.Close())
	assert.True(t, r.Closed())
}
