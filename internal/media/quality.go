package media

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUnsupportedQuality is returned for a quality outside the supported table.
var ErrUnsupportedQuality = errors.New("media: unsupported quality")

// Quality is a target vertical resolution in pixels.
type Quality int

// Supported qualities.
const (
	Quality480  Quality = 480
	Quality720  Quality = 720
	Quality1080 Quality = 1080
	Quality1440 Quality = 1440
	Quality2160 Quality = 2160

	DefaultQuality = Quality1080
)

var frameSizes = map[Quality][2]int{
	Quality480:  {854, 480},
	Quality720:  {1280, 720},
	Quality1080: {1920, 1080},
	Quality1440: {2560, 1440},
	Quality2160: {3840, 2160},
}

// ParseQuality parses a quality such as "720". An empty string yields
// DefaultQuality.
func ParseQuality(s string) (Quality, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultQuality, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedQuality, s)
	}
	q := Quality(n)
	if !q.Valid() {
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedQuality, s)
	}
	return q, nil
}

// Valid reports whether q is in the supported table.
func (q Quality) Valid() bool {
	_, ok := frameSizes[q]
	return ok
}

// Dimensions returns the output frame width and height.
func (q Quality) Dimensions() (width, height int) {
	d := frameSizes[q]
	return d[0], d[1]
}

// Size returns the frame size in ffmpeg's WxH form.
func (q Quality) Size() string {
	w, h := q.Dimensions()
	return fmt.Sprintf("%dx%d", w, h)
}

func (q Quality) String() string {
	return strconv.Itoa(int(q))
}

// SupportedQualities lists the supported qualities in ascending order.
func SupportedQualities() []Quality {
	return []Quality{Quality480, Quality720, Quality1080, Quality1440, Quality2160}
}
