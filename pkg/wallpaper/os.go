package wallpaper

import (
	"fmt"
	"path/filepath"

	"github.com/dixieflatline76/Easel/util/log"
)

// OS is the platform integration: applying a wallpaper and reporting the
// primary screen size.
type OS interface {
	SetWallpaper(path string) error
	DesktopDimension() (int, int, error)
}

// Desktop returns the OS integration for the running platform.
func Desktop() OS {
	return getOS()
}

// ScreenSize returns the desktop size or the fallback resolution when it cannot
// be determined.
func ScreenSize(o OS) (int, int) {
	if o != nil {
		if w, h, err := o.DesktopDimension(); err == nil && w > 0 && h > 0 {
			return w, h
		}
		log.Debugf("Desktop: screen size unavailable, using %dx%d", FallbackWidth, FallbackHeight)
	}
	return FallbackWidth, FallbackHeight
}

func absImagePath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve wallpaper path: %w", err)
	}
	return abs, nil
}
