//go:build windows

package wallpaper

import (
	"fmt"
	"unsafe"

	"github.com/dixieflatline76/Easel/pkg/sysinfo"
	"golang.org/x/sys/windows"
)

var (
	user32               = windows.NewLazySystemDLL("user32.dll")
	systemParametersInfo = user32.NewProc("SystemParametersInfoW")
)

// Windows API constants
const (
	spiSetDeskWallpaper = 0x0014
	spifUpdateIniFile   = 0x01
	spifSendChange      = 0x02
)

// windowsOS implements the OS interface for Windows.
type windowsOS struct{}

func getOS() OS {
	return &windowsOS{}
}

// SetWallpaper sets the wallpaper to the given image file path.
func (w *windowsOS) SetWallpaper(imagePath string) error {
	imagePath, err := absImagePath(imagePath)
	if err != nil {
		return err
	}
	imagePathUTF16, err := windows.UTF16PtrFromString(imagePath)
	if err != nil {
		return err
	}

	ret, _, callErr := systemParametersInfo.Call(
		uintptr(spiSetDeskWallpaper),
		uintptr(0),
		uintptr(unsafe.Pointer(imagePathUTF16)),
		uintptr(spifUpdateIniFile|spifSendChange),
	)
	if ret == 0 {
		return fmt.Errorf("SystemParametersInfoW: %w", callErr)
	}
	return nil
}

// DesktopDimension returns the primary desktop dimension in pixels.
func (w *windowsOS) DesktopDimension() (int, int, error) {
	return sysinfo.GetScreenDimensions()
}
