// Package launcher describes how an external notebook-hosting launcher
// should spawn the Pluto notebook server. Nothing here spawns processes;
// the launcher owns substitution, spawning and timeout enforcement.
package launcher

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// PortPlaceholder is replaced with the allocated port by the launcher.
const PortPlaceholder = "{port}"

const (
	plutoRuntime    = "julia"
	plutoPackageRef = "https://github.com/Beramos/Pluto.jl#DS-Julia-2925"
	plutoTitle      = "Pluto.jl"
	plutoTimeout    = 60
)

// Descriptor tells a launcher how to start a server process.
type Descriptor struct {
	// Command is the process invocation. It may contain PortPlaceholder.
	Command []string `json:"command" yaml:"command"`

	// Timeout is how many seconds the launcher waits for readiness.
	Timeout int `json:"timeout" yaml:"timeout"`

	LauncherEntry LauncherEntry `json:"launcher_entry" yaml:"launcher_entry"`
}

// LauncherEntry is the display metadata shown by the hosting UI.
type LauncherEntry struct {
	Title string `json:"title" yaml:"title"`
}

// PlutoServer returns a fresh descriptor for a Pluto notebook server.
//
// The server listens on 0.0.0.0 with both require_secret_for_open_links
// and require_secret_for_access turned off, so anyone who can reach the
// port gets a Julia REPL. See Insecure.
func PlutoServer() Descriptor {
	script := fmt.Sprintf(
		`import Pkg; Pkg.add(%q); `+
			`import Pluto; Pluto.run(host="0.0.0.0", port=%s, launch_browser=false, require_secret_for_open_links=false, require_secret_for_access=false)`,
		plutoPackageRef, PortPlaceholder,
	)

	return Descriptor{
		Command:       []string{plutoRuntime, "--optimize=0", "-e", script},
		Timeout:       plutoTimeout,
		LauncherEntry: LauncherEntry{Title: plutoTitle},
	}
}

// Clone returns a deep copy.
func (d Descriptor) Clone() Descriptor {
	d.Command = append([]string(nil), d.Command...)
	return d
}

// Expand returns the command with every PortPlaceholder replaced by port.
// The descriptor itself is left untouched.
func (d Descriptor) Expand(port int) ([]string, error) {
	if port < 1 || port > 65535 {
		return nil, fmt.Errorf("port %d out of range", port)
	}
	p := strconv.Itoa(port)

	out := make([]string, len(d.Command))
	for i, tok := range d.Command {
		out[i] = strings.ReplaceAll(tok, PortPlaceholder, p)
	}
	return out, nil
}

// TimeoutDuration returns Timeout as a time.Duration.
func (d Descriptor) TimeoutDuration() time.Duration {
	return time.Duration(d.Timeout) * time.Second
}

// Insecure reports whether the command starts a server reachable on all
// interfaces with secret-based authentication disabled.
func (d Descriptor) Insecure() bool {
	joined := strings.Join(d.Command, " ")
	if !strings.Contains(joined, `host="0.0.0.0"`) {
		return false
	}
	return strings.Contains(joined, "require_secret_for_access=false") ||
		strings.Contains(joined, "require_secret_for_open_links=false")
}
