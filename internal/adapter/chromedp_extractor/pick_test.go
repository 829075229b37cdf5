package chromedp_extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/adarchive-ingest/internal/entity"
)

func TestPickMediaPrefersVideo(t *testing.T) {
	t.Parallel()

	html := `<html><body>
		<img src="https://cdn.example/big.jpg" width="600" height="400">
		<video src="https://cdn.example/clip.mp4"></video>
	</body></html>`

	kind, url, ok := PickMedia(html)
	require.True(t, ok)
	assert.Equal(t, entity.MediaVideo, kind)
	assert.Equal(t, "https://cdn.example/clip.mp4", url)
}

func TestPickMediaLargestImage(t *testing.T) {
	t.Parallel()

	html := `<html><body>
		<img src="https://cdn.example/icon.png" width="32" height="32">
		<img src="https://cdn.example/medium.jpg" width="200" height="150">
		<img src="https://cdn.example/hero.jpg" width="1200" height="628">
	</body></html>`

	kind, url, ok := PickMedia(html)
	require.True(t, ok)
	assert.Equal(t, entity.MediaImage, kind)
	assert.Equal(t, "https://cdn.example/hero.jpg", url)
}

func TestPickMediaIgnoresSmallImages(t *testing.T) {
	t.Parallel()

	html := `<html><body>
		<img src="https://cdn.example/pixel.gif" width="1" height="1">
		<img src="https://cdn.example/avatar.png" width="48" height="48">
	</body></html>`

	_, _, ok := PickMedia(html)
	assert.False(t, ok)
}

func TestPickMediaNothingUsable(t *testing.T) {
	t.Parallel()

	_, _, ok := PickMedia(`<html><body><p>text only</p></body></html>`)
	assert.False(t, ok)

	// A video tag without src does not count.
	_, _, ok = PickMedia(`<html><body><video></video></body></html>`)
	assert.False(t, ok)

	// Images without declared dimensions cannot prove they are media.
	_, _, ok = PickMedia(`<html><body><img src="https://cdn.example/x.jpg"></body></html>`)
	assert.False(t, ok)
}
