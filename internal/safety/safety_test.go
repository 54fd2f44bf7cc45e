package safety

import "testing"

func TestExcludesSelfAndParent(t *testing.T) {
	x := New(100, "playtimed", "playtimed daemon")
	if !x.IsExcluded("playtimed", "playtimed daemon run", 100, 1) {
		t.Fatal("own pid must be excluded")
	}
	if !x.IsExcluded("zsh", "zsh", 500, 100) {
		t.Fatal("direct child of daemon must be excluded")
	}
}

func TestExcludesSystemAndShellProcesses(t *testing.T) {
	x := New(100, "playtimed", "playtimed daemon")
	if !x.IsExcluded("systemd", "", 1, 0) {
		t.Fatal("systemd must be excluded")
	}
	if !x.IsExcluded("bash", "bash", 900, 1) {
		t.Fatal("bash must be excluded")
	}
	if x.IsExcluded("Minecraft.exe", "Minecraft.exe", 900, 1) {
		t.Fatal("an ordinary game process must not be excluded")
	}
}

func TestRenamedImpostorIsNotExcluded(t *testing.T) {
	x := New(100, "playtimed", "playtimed daemon")
	if x.IsExcluded("playtimed", "Minecraft.exe --fullscreen", 900, 1) {
		t.Fatal("a process merely named like the daemon, without the daemon cmdline signature, must not be excluded")
	}
}

func TestLegitimateInstanceIsExcluded(t *testing.T) {
	x := New(100, "playtimed", "playtimed daemon")
	if !x.IsExcluded("playtimed", "/usr/bin/playtimed daemon run", 901, 1) {
		t.Fatal("a second legitimate daemon instance must be excluded")
	}
}
