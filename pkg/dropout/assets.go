package dropout

import (
	"net/url"
	"strconv"
)

type artDimension struct {
	width  int
	height int
}

var artDimensions = map[string]artDimension{
	"poster":    {1000, 1500}, // 2:3
	"fanart":    {1920, 1080}, // 16:9
	"thumb":     {1280, 720},  // 16:9
	"banner":    {1000, 185},  // 5.4:1
	"landscape": {1280, 720},  // 16:9
}

// FormatThumbnail appends the image CDN's resize/crop parameters for a given
// art slot to a source URL.
func FormatThumbnail(src, art string, blurred bool) string {
	args := url.Values{}
	if blurred {
		args.Set("blur", "180")
	}
	if dim, ok := artDimensions[art]; ok {
		args.Set("w", strconv.Itoa(dim.width))
		args.Set("h", strconv.Itoa(dim.height))
		args.Set("fit", "crop")
	}
	return src + "?" + args.Encode()
}
