//go:build linux

package sysinfo

import (
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
)

var (
	// "dimensions:    1920x1080 pixels (508x285 millimeters)"
	xdpyinfoRegex = regexp.MustCompile(`dimensions:\s+(\d+)x(\d+)\s+pixels`)
	// "HDMI-1 connected primary 2560x1440+0+0 ..." or "Screen 0: minimum 8 x 8, current 1920 x 1080, ..."
	xrandrPrimaryRegex = regexp.MustCompile(`connected primary (\d+)x(\d+)\+`)
	xrandrCurrentRegex = regexp.MustCompile(`current (\d+) x (\d+)`)
)

// GetScreenDimensions returns the desktop dimensions on Linux.
func GetScreenDimensions() (int, int, error) {
	if out, err := exec.Command("xrandr", "--current").Output(); err == nil {
		if w, h, err := parseXrandr(string(out)); err == nil {
			return w, h, nil
		}
	}

	out, err := exec.Command("xdpyinfo").Output()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to get screen resolution: %w", err)
	}
	return parseXdpyinfo(string(out))
}

func parseXrandr(out string) (int, int, error) {
	if m := xrandrPrimaryRegex.FindStringSubmatch(out); m != nil {
		return atoiPair(m[1], m[2])
	}
	if m := xrandrCurrentRegex.FindStringSubmatch(out); m != nil {
		return atoiPair(m[1], m[2])
	}
	return 0, 0, fmt.Errorf("failed to parse xrandr output")
}

func parseXdpyinfo(out string) (int, int, error) {
	m := xdpyinfoRegex.FindStringSubmatch(out)
	if m == nil {
		return 0, 0, fmt.Errorf("failed to parse screen resolution")
	}
	return atoiPair(m[1], m[2])
}

func atoiPair(a, b string) (int, int, error) {
	w, errW := strconv.Atoi(a)
	h, errH := strconv.Atoi(b)
	if errW != nil || errH != nil || w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("invalid dimensions %sx%s", a, b)
	}
	return w, h, nil
}
