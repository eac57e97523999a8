package dropout

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatThumbnail(t *testing.T) {
	src := "https://vhx.imgix.net/dropout/assets/cover.jpg"

	assert.Equal(t, src+"?fit=crop&h=1500&w=1000", FormatThumbnail(src, "poster", false))
	assert.Equal(t, src+"?fit=crop&h=1080&w=1920", FormatThumbnail(src, "fanart", false))
	assert.Equal(t, src+"?blur=180&fit=crop&h=720&w=1280", FormatThumbnail(src, "thumb", true))
	assert.Equal(t, src+"?fit=crop&h=185&w=1000", FormatThumbnail(src, "banner", false))
}

func TestFormatThumbnailUnknownArt(t *testing.T) {
	src := "https://vhx.imgix.net/x.jpg"
	assert.Equal(t, src+"?blur=180", FormatThumbnail(src, "clearlogo", true))
}
