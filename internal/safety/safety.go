// Package safety implements the never-terminate / never-discover
// exclusion rules applied before a process ever reaches the pattern
// engine or the enforcer.
package safety

import "strings"

// systemProcesses would break the host if terminated: init, session bus,
// audio server, display server/compositor, display managers, and the
// handful of privilege-escalation helpers a monitored user could abuse.
var systemProcesses = map[string]bool{
	"systemd": true, "dbus-daemon": true, "pipewire": true, "pulseaudio": true,
	"wireplumber": true, "kwin": true, "kwin_wayland": true, "kwin_x11": true,
	"plasmashell": true, "kded5": true, "kded6": true, "Xorg": true, "Xwayland": true,
	"gnome-shell": true, "mutter": true, "sddm": true, "gdm": true, "gdm-session": true,
	"lightdm": true, "login": true, "agetty": true, "sudo": true, "su": true,
	"ssh": true, "sshd": true, "notify-send": true, "dbus-launch": true,
	"polkitd": true, "upowerd": true, "thermald": true, "acpid": true,
}

// shellProcesses are interactive shells: a shell left running isn't a
// game, and killing one would yank a terminal out from under the user.
var shellProcesses = map[string]bool{
	"bash": true, "zsh": true, "fish": true, "sh": true, "dash": true,
	"csh": true, "tcsh": true,
}

// Excluder evaluates the four exclusion rules against a live daemon
// process identity (its own pid and the interpreter/module signature in
// its own command line).
type Excluder struct {
	ownPID     int
	binaryName string // e.g. "playtimed", matched case-insensitively
	cmdlineTag string // e.g. "playtimed daemon" or similar self-identifying substring
}

func New(ownPID int, binaryName, cmdlineTag string) *Excluder {
	return &Excluder{ownPID: ownPID, binaryName: binaryName, cmdlineTag: cmdlineTag}
}

// IsExcluded reports whether a process must never be monitored, counted
// toward discovery, or terminated.
func (x *Excluder) IsExcluded(name, cmdline string, pid, ppid int) bool {
	if pid == x.ownPID || ppid == x.ownPID {
		return true
	}
	if systemProcesses[name] {
		return true
	}
	if shellProcesses[name] {
		return true
	}
	if strings.Contains(strings.ToLower(name), strings.ToLower(x.binaryName)) {
		return strings.Contains(strings.ToLower(cmdline), strings.ToLower(x.cmdlineTag))
	}
	return false
}
