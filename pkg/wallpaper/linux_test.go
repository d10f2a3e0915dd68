//go:build linux

package wallpaper

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeLinux(env map[string]string) (*linuxOS, *[]string) {
	var calls []string
	return &linuxOS{
		getenv: func(k string) string { return env[k] },
		run: func(name string, args ...string) error {
			calls = append(calls, name+" "+strings.Join(args, " "))
			return nil
		},
	}, &calls
}

func TestLinuxOS_SetWallpaper(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		want    string
		wantErr bool
	}{
		{name: "GNOME", env: map[string]string{"XDG_CURRENT_DESKTOP": "ubuntu:GNOME"}, want: "gsettings set org.gnome.desktop.background picture-uri file:///tmp/a.jpg"},
		{name: "KDE", env: map[string]string{"XDG_CURRENT_DESKTOP": "KDE"}, want: "plasma-apply-wallpaperimage /tmp/a.jpg"},
		{name: "XFCE", env: map[string]string{"DESKTOP_SESSION": "xfce"}, want: "xfconf-query --channel xfce4-desktop"},
		{name: "Sway", env: map[string]string{"XDG_CURRENT_DESKTOP": "sway", "WAYLAND_DISPLAY": "wayland-1"}, want: "swaymsg output * bg /tmp/a.jpg fill"},
		{name: "Unknown", env: map[string]string{"XDG_CURRENT_DESKTOP": "twm"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, calls := fakeLinux(tt.env)
			err := l.SetWallpaper("/tmp/a.jpg")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotEmpty(t, *calls)
			assert.True(t, strings.HasPrefix((*calls)[0], tt.want), "got %q", (*calls)[0])
		})
	}
}
