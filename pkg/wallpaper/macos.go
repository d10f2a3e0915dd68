//go:build darwin

package wallpaper

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/dixieflatline76/Easel/pkg/sysinfo"
)

// macOSOS implements the OS interface for macOS.
type macOSOS struct{}

func getOS() OS {
	return &macOSOS{}
}

// SetWallpaper sets the picture of every desktop through System Events.
func (m *macOSOS) SetWallpaper(imagePath string) error {
	imagePath, err := absImagePath(imagePath)
	if err != nil {
		return err
	}
	script := fmt.Sprintf(`tell application "System Events" to tell every desktop to set picture to %q`, imagePath)

	out, err := exec.Command("osascript", "-e", script).CombinedOutput()
	if err != nil {
		return fmt.Errorf("failed to set wallpaper: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// DesktopDimension returns the main display resolution.
func (m *macOSOS) DesktopDimension() (int, int, error) {
	return sysinfo.GetScreenDimensions()
}
