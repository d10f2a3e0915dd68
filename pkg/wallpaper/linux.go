//go:build linux

package wallpaper

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/dixieflatline76/Easel/pkg/sysinfo"
)

// linuxOS implements the OS interface for Linux.
type linuxOS struct {
	getenv func(string) string
	run    func(name string, args ...string) error
}

func getOS() OS {
	return &linuxOS{
		getenv: os.Getenv,
		run: func(name string, args ...string) error {
			out, err := exec.Command(name, args...).CombinedOutput()
			if err != nil {
				return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(out)))
			}
			return nil
		},
	}
}

// desktopEnv returns the lower-cased desktop identifier and whether the session is Wayland.
func (l *linuxOS) desktopEnv() (string, bool) {
	env := l.getenv("XDG_CURRENT_DESKTOP")
	if env == "" {
		env = l.getenv("DESKTOP_SESSION")
	}
	return strings.ToLower(env), l.getenv("WAYLAND_DISPLAY") != ""
}

// SetWallpaper sets the desktop wallpaper, supporting X11 and some Wayland compositors.
func (l *linuxOS) SetWallpaper(imagePath string) error {
	imagePath, err := absImagePath(imagePath)
	if err != nil {
		return err
	}

	env, wayland := l.desktopEnv()
	switch {
	case strings.Contains(env, "gnome") || strings.Contains(env, "unity") ||
		strings.Contains(env, "cinnamon") || strings.Contains(env, "budgie"):
		return l.setWallpaperGNOME(imagePath)
	case strings.Contains(env, "kde"):
		return l.run("plasma-apply-wallpaperimage", imagePath)
	case strings.Contains(env, "xfce") && !wayland:
		return l.run("xfconf-query", "--channel", "xfce4-desktop",
			"--property", "/backdrop/screen0/monitor0/workspace0/last-image", "--set", imagePath)
	case strings.Contains(env, "sway") || strings.Contains(env, "hyprland"):
		return l.run("swaymsg", "output", "*", "bg", imagePath, "fill")
	default:
		return fmt.Errorf("unsupported desktop environment: %q", env)
	}
}

// setWallpaperGNOME updates both the light and dark variants so the change is
// visible regardless of the active style.
func (l *linuxOS) setWallpaperGNOME(imagePath string) error {
	uri := "file://" + imagePath
	if err := l.run("gsettings", "set", "org.gnome.desktop.background", "picture-uri", uri); err != nil {
		return err
	}
	// Older GNOME releases do not know picture-uri-dark.
	_ = l.run("gsettings", "set", "org.gnome.desktop.background", "picture-uri-dark", uri)
	return l.run("gsettings", "set", "org.gnome.desktop.background", "picture-options", "zoom")
}

// DesktopDimension returns the desktop dimensions on Linux.
func (l *linuxOS) DesktopDimension() (int, int, error) {
	return sysinfo.GetScreenDimensions()
}
