//go:build darwin

package sysinfo

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
)

// profilerTimeout bounds system_profiler, which can hang while displays wake up.
const profilerTimeout = 10 * time.Second

// pixelsPattern finds "W x H" in strings such as "3456 x 2234" or "1710 x 1107 @ 60.00Hz".
var pixelsPattern = regexp.MustCompile(`(\d+)\s*x\s*(\d+)`)

type displaysReport struct {
	GPUs []struct {
		Displays []display `json:"spdisplays_ndrvs"`
	} `json:"SPDisplaysDataType"`
}

type display struct {
	Pixels string `json:"_spdisplays_pixels"`
	Main   string `json:"spdisplays_main"`
}

// GetScreenDimensions returns the pixel size of the main display on macOS.
func GetScreenDimensions() (int, int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), profilerTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, "system_profiler", "SPDisplaysDataType", "-json").Output()
	if err != nil {
		return 0, 0, fmt.Errorf("system_profiler: %w", err)
	}
	return parseJSONResolution(out)
}

// parseJSONResolution picks the display flagged as main, else the first one listed.
func parseJSONResolution(data []byte) (int, int, error) {
	var report displaysReport
	if err := json.Unmarshal(data, &report); err != nil {
		return 0, 0, fmt.Errorf("decoding system_profiler JSON: %w", err)
	}

	var first *display
	for _, gpu := range report.GPUs {
		for i := range gpu.Displays {
			d := &gpu.Displays[i]
			if d.Main == "spdisplays_yes" {
				return parsePixels(d.Pixels)
			}
			if first == nil {
				first = d
			}
		}
	}
	if first == nil {
		return 0, 0, fmt.Errorf("system_profiler lists no displays")
	}
	return parsePixels(first.Pixels)
}

func parsePixels(s string) (int, int, error) {
	m := pixelsPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, fmt.Errorf("no resolution in %q", s)
	}
	w, errW := strconv.Atoi(m[1])
	h, errH := strconv.Atoi(m[2])
	if errW != nil || errH != nil || w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("bad resolution %q", s)
	}
	return w, h, nil
}
