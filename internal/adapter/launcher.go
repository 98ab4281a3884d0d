package adapter

import (
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
	"strings"
)

// Launcher opens image files in an external viewer
type Launcher struct {
	command string   // configured viewer command, empty for detection
	args    []string // additional arguments for the viewer
	logger  *slog.Logger

	// Seams for tests
	lookPath func(string) (string, error)
	start    func(name string, args ...string) error
}

// launchPath defines a single way to launch a viewer
type launchPath struct {
	path      string   // Command path: "feh", "imv", or "open-a:AppName"
	openFlags []string // For "open-a:" paths only
}

// viewers registry - every launch path a known viewer can be reached by
var viewers = map[string]map[string][]launchPath{
	"preview": {
		"darwin": {{path: "open-a:Preview"}},
	},
	"imv": {
		"linux": {{path: "imv"}},
	},
	"feh": {
		"linux": {{path: "feh"}},
	},
	"nsxiv": {
		"linux": {{path: "nsxiv"}},
	},
	"eog": {
		"linux": {{path: "eog"}},
	},
	"irfanview": {
		"windows": {{path: "i_view64.exe"}, {path: "i_view32.exe"}},
	},
}

// candidateViewers defines the preferred viewer order for each platform
var candidateViewers = map[string][]string{
	"darwin":  {"preview"},
	"linux":   {"imv", "nsxiv", "feh", "eog"},
	"windows": {"irfanview"},
}

// NewLauncher creates a Launcher. An empty command means detect a viewer,
// then fall back to the system default handler.
func NewLauncher(command string, args []string, logger *slog.Logger) *Launcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Launcher{
		command:  command,
		args:     args,
		logger:   logger,
		lookPath: exec.LookPath,
		start: func(name string, args ...string) error {
			return exec.Command(name, args...).Start()
		},
	}
}

// Open shows path in the configured viewer, a detected one, or the system default
func (l *Launcher) Open(path string) error {
	// Tier 1: User configured a specific viewer
	if l.command != "" {
		args := append(append([]string{}, l.args...), path)
		l.logger.Info("launching viewer", "command", l.command, "args", args)
		if err := l.start(l.command, args...); err != nil {
			return fmt.Errorf("launch %s: %w", l.command, err)
		}
		return nil
	}

	// Tier 2: Try the candidate chain for this platform
	if name, err := l.detectAndLaunch(path, runtime.GOOS); err == nil {
		l.logger.Info("launched with detected viewer", "viewer", name)
		return nil
	}

	// Tier 3: Fall back to system default (open/xdg-open/start)
	return l.launchDefault(path, runtime.GOOS)
}

// detectAndLaunch tries candidate viewers in order. Returns the viewer that
// succeeded.
func (l *Launcher) detectAndLaunch(path, goos string) (string, error) {
	candidates, ok := candidateViewers[goos]
	if !ok {
		candidates = candidateViewers["linux"]
	}

	for _, name := range candidates {
		for _, lp := range viewers[name][goos] {
			var err error
			if strings.HasPrefix(lp.path, "open-a:") {
				app := strings.TrimPrefix(lp.path, "open-a:")
				args := append(append([]string{}, lp.openFlags...), "-a", app, path)
				err = l.start("open", args...)
			} else if _, err = l.lookPath(lp.path); err == nil {
				err = l.start(lp.path, path)
			}
			if err == nil {
				return name, nil
			}
			l.logger.Debug("launch path not available", "viewer", name, "path", lp.path, "error", err)
		}
	}
	return "", fmt.Errorf("no candidate viewers found")
}

// launchDefault opens path using the system default handler
func (l *Launcher) launchDefault(path, goos string) error {
	l.logger.Info("launching with system default", "os", goos, "path", path)
	switch goos {
	case "darwin":
		return l.start("open", path)
	case "windows":
		return l.start("cmd", "/c", "start", "", path)
	default:
		return l.start("xdg-open", path)
	}
}
