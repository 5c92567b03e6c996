package sandbox

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// TrustPreset names one of the five bundled policy levels.
type TrustPreset string

const (
	PresetParanoid TrustPreset = "paranoid"
	PresetCautious TrustPreset = "cautious"
	PresetDefault  TrustPreset = "default"
	PresetRelaxed  TrustPreset = "relaxed"
	PresetYolo     TrustPreset = "yolo"
)

// Shared defaults unless a preset overrides them.
const (
	defaultCPUTimeMs   = 60_000
	defaultWallTimeMs  = 120_000
	defaultMemoryBytes = 512 << 20
)

// ParsePreset converts a string into a TrustPreset.
func ParsePreset(s string) (TrustPreset, error) {
	switch TrustPreset(strings.ToLower(s)) {
	case PresetParanoid, PresetCautious, PresetDefault, PresetRelaxed, PresetYolo:
		return TrustPreset(strings.ToLower(s)), nil
	default:
		return "", fmt.Errorf("unknown trust preset %q", s)
	}
}

// FromPreset derives a full sandbox config for workingDir.
func FromPreset(preset TrustPreset, workingDir string) Config {
	cfg := Config{
		ID:       uuid.NewString(),
		Strategy: StrategySubprocess,
		Resources: ResourceLimits{
			CPUTimeMs:          defaultCPUTimeMs,
			WallTimeMs:         defaultWallTimeMs,
			MemoryBytes:        defaultMemoryBytes,
			MaxFileDescriptors: 256,
		},
		Filesystem: FilesystemPolicy{
			RootDir:        workingDir,
			ReadWritePaths: []string{workingDir},
		},
		WorkingDir: workingDir,
	}

	switch preset {
	case PresetParanoid:
		cfg.Resources.MaxProcesses = 4
		cfg.Resources.MaxOutputBytes = 2 << 20
		cfg.Network = NetworkPolicy{Allow: false, BlockDNS: true}
		cfg.Filesystem.ReadOnlyPaths = []string{workingDir}
		cfg.Filesystem.ReadWritePaths = nil
		cfg.EnableAudit = true
		cfg.Syscalls = &SyscallPolicy{Mode: SyscallDeny, Syscalls: []string{"ptrace", "mount", "reboot"}}
	case PresetCautious:
		cfg.Resources.MaxProcesses = 8
		cfg.Resources.MaxOutputBytes = 4 << 20
		cfg.Network = NetworkPolicy{Allow: false}
		cfg.EnableAudit = true
	case PresetDefault:
		cfg.Resources.MaxProcesses = 32
		cfg.Resources.MaxOutputBytes = 10 << 20
		cfg.Network = NetworkPolicy{Allow: true}
		cfg.EnableAudit = true
	case PresetRelaxed:
		cfg.Resources.MaxProcesses = 64
		cfg.Resources.MaxOutputBytes = 25 << 20
		cfg.Network = NetworkPolicy{Allow: true}
	case PresetYolo:
		cfg.Resources.MaxProcesses = 128
		cfg.Resources.MaxOutputBytes = 50 << 20
		cfg.Network = NetworkPolicy{Allow: true}
	default:
		// Unknown presets get the default profile.
		return FromPreset(PresetDefault, workingDir)
	}
	return cfg
}
