// Package sandbox converts trust presets into execution policy and runs
// subprocesses under it. Strategies range from plain subprocess limits to
// full container isolation.
package sandbox

import "github.com/google/uuid"

// Strategy selects the isolation mechanism.
type Strategy string

const (
	// StrategySubprocess applies resource limits to a direct child
	// process without OS-level isolation.
	StrategySubprocess Strategy = "subprocess"
	// StrategyPlatform runs the child in its own process group. It shares
	// the process executor with StrategySubprocess; no rlimits are set.
	StrategyPlatform Strategy = "platform"
	// StrategyContainer runs commands in a container.
	StrategyContainer Strategy = "container"
)

// ResourceLimits bounds one command execution.
type ResourceLimits struct {
	CPUTimeMs          int64 `json:"cpuTimeMs"`
	WallTimeMs         int64 `json:"wallTimeMs"`
	MemoryBytes        int64 `json:"memoryBytes"`
	MaxFileDescriptors int   `json:"maxFileDescriptors"`
	MaxProcesses       int   `json:"maxProcesses"`
	MaxOutputBytes     int64 `json:"maxOutputBytes"`
}

// NetworkPolicy controls outbound access.
type NetworkPolicy struct {
	Allow        bool     `json:"allow"`
	BlockDNS     bool     `json:"blockDns"`
	AllowedHosts []string `json:"allowedHosts,omitempty"`
}

// FilesystemPolicy controls path visibility and writability.
type FilesystemPolicy struct {
	RootDir        string   `json:"rootDir"`
	ReadOnlyPaths  []string `json:"readOnlyPaths,omitempty"`
	ReadWritePaths []string `json:"readWritePaths,omitempty"`
	DeniedPaths    []string `json:"deniedPaths,omitempty"`
	UseOverlay     bool     `json:"useOverlay,omitempty"`
}

// SyscallMode selects allowlist or denylist semantics.
type SyscallMode string

const (
	SyscallAllow SyscallMode = "allow"
	SyscallDeny  SyscallMode = "deny"
)

// SyscallPolicy restricts the syscall surface. Merging replaces the whole
// policy rather than unioning lists.
type SyscallPolicy struct {
	Mode        SyscallMode `json:"mode"`
	Syscalls    []string    `json:"syscalls,omitempty"`
	AllowExec   bool        `json:"allowExec"`
	AllowFork   bool        `json:"allowFork"`
	AllowPtrace bool        `json:"allowPtrace"`
}

// Config is the full sandbox policy one execution runs under.
type Config struct {
	ID          string            `json:"id"`
	Strategy    Strategy          `json:"strategy"`
	Resources   ResourceLimits    `json:"resources"`
	Network     NetworkPolicy     `json:"network"`
	Filesystem  FilesystemPolicy  `json:"filesystem"`
	Environment map[string]string `json:"environment,omitempty"`
	Syscalls    *SyscallPolicy    `json:"syscalls,omitempty"`
	WorkingDir  string            `json:"workingDir"`
	EnableAudit bool              `json:"enableAudit"`
}

// Override is a partial Config. Zero-valued scalars leave the base value
// in place; maps union with override winning per key; a non-nil Syscalls
// replaces the base policy as a whole.
type Override struct {
	Strategy    Strategy
	Resources   ResourceLimits
	Network     *NetworkPolicy
	Filesystem  *FilesystemPolicy
	Environment map[string]string
	Syscalls    *SyscallPolicy
	WorkingDir  string
	EnableAudit *bool
}

// Merge deep-merges an override into a copy of base and stamps a fresh id.
func Merge(base Config, o Override) Config {
	out := base
	out.ID = uuid.NewString()

	if o.Strategy != "" {
		out.Strategy = o.Strategy
	}
	out.Resources = mergeResources(base.Resources, o.Resources)
	if o.Network != nil {
		out.Network = *o.Network
	}
	if o.Filesystem != nil {
		out.Filesystem = *o.Filesystem
	}
	if len(o.Environment) > 0 {
		merged := make(map[string]string, len(base.Environment)+len(o.Environment))
		for k, v := range base.Environment {
			merged[k] = v
		}
		for k, v := range o.Environment {
			merged[k] = v
		}
		out.Environment = merged
	}
	if o.Syscalls != nil {
		s := *o.Syscalls
		out.Syscalls = &s
	}
	if o.WorkingDir != "" {
		out.WorkingDir = o.WorkingDir
	}
	if o.EnableAudit != nil {
		out.EnableAudit = *o.EnableAudit
	}
	return out
}

func mergeResources(base, o ResourceLimits) ResourceLimits {
	out := base
	if o.CPUTimeMs > 0 {
		out.CPUTimeMs = o.CPUTimeMs
	}
	if o.WallTimeMs > 0 {
		out.WallTimeMs = o.WallTimeMs
	}
	if o.MemoryBytes > 0 {
		out.MemoryBytes = o.MemoryBytes
	}
	if o.MaxFileDescriptors > 0 {
		out.MaxFileDescriptors = o.MaxFileDescriptors
	}
	if o.MaxProcesses > 0 {
		out.MaxProcesses = o.MaxProcesses
	}
	if o.MaxOutputBytes > 0 {
		out.MaxOutputBytes = o.MaxOutputBytes
	}
	return out
}
