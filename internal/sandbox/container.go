package sandbox

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	"github.com/docker/go-units"
)

// defaultContainerImage is used when the caller does not pin one.
const defaultContainerImage = "alpine:3.20"

// ContainerExecutor runs commands in throwaway containers. It implements
// the container strategy: network, memory, pid, and filesystem policy map
// onto the container runtime's own enforcement.
type ContainerExecutor struct {
	client *client.Client
	image  string
}

// NewContainerExecutor creates a container executor and verifies the
// daemon is reachable.
func NewContainerExecutor() (*ContainerExecutor, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create container client: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := cli.Ping(ctx); err != nil {
		return nil, fmt.Errorf("container daemon not accessible: %w", err)
	}
	return &ContainerExecutor{client: cli, image: defaultContainerImage}, nil
}

// SetImage overrides the execution image.
func (e *ContainerExecutor) SetImage(img string) { e.image = img }

// Run executes argv inside an isolated container under cfg's limits.
func (e *ContainerExecutor) Run(ctx context.Context, argv []string, stdin string, cfg Config) (ExecResult, error) {
	if len(argv) == 0 {
		return ExecResult{}, fmt.Errorf("empty argv")
	}

	if err := e.ensureImage(ctx, e.image); err != nil {
		return ExecResult{}, fmt.Errorf("failed to ensure image %s: %w", e.image, err)
	}

	rootDir := cfg.Filesystem.RootDir
	if rootDir == "" {
		rootDir = cfg.WorkingDir
	}
	absRoot, err := filepath.Abs(rootDir)
	if err != nil {
		return ExecResult{}, fmt.Errorf("failed to resolve root dir: %w", err)
	}

	env := make([]string, 0, len(cfg.Environment)+1)
	env = append(env, "HOME=/tmp")
	for k, v := range cfg.Environment {
		env = append(env, k+"="+v)
	}

	containerConfig := &container.Config{
		Image:           e.image,
		Cmd:             argv,
		WorkingDir:      "/workspace",
		User:            "1000:1000",
		Env:             env,
		NetworkDisabled: !cfg.Network.Allow,
	}

	readOnlyRoot := len(cfg.Filesystem.ReadWritePaths) == 0
	pids := int64(cfg.Resources.MaxProcesses)
	nofile := int64(cfg.Resources.MaxFileDescriptors)
	if nofile <= 0 {
		nofile = 1024
	}

	hostConfig := &container.HostConfig{
		Mounts: []mount.Mount{{
			Type:     mount.TypeBind,
			Source:   absRoot,
			Target:   "/workspace",
			ReadOnly: readOnlyRoot,
		}},
		Resources: container.Resources{
			Memory:    cfg.Resources.MemoryBytes,
			PidsLimit: &pids,
			Ulimits: []*units.Ulimit{
				{Name: "nofile", Soft: nofile, Hard: nofile},
			},
		},
		SecurityOpt:    []string{"no-new-privileges"},
		CapDrop:        []string{"ALL"},
		ReadonlyRootfs: true,
		Tmpfs: map[string]string{
			"/tmp": "rw,noexec,nosuid,size=100m",
		},
		AutoRemove: false,
	}
	if cfg.Network.BlockDNS {
		hostConfig.DNS = []string{"0.0.0.0"}
	}

	createResp, err := e.client.ContainerCreate(ctx, containerConfig, hostConfig, nil, nil, "")
	if err != nil {
		return ExecResult{}, fmt.Errorf("failed to create container: %w", err)
	}
	containerID := createResp.ID

	defer func() {
		removeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = e.client.ContainerRemove(removeCtx, containerID, container.RemoveOptions{Force: true})
	}()

	wall := time.Duration(cfg.Resources.WallTimeMs) * time.Millisecond
	if wall <= 0 {
		wall = time.Duration(defaultWallTimeMs) * time.Millisecond
	}
	execCtx, cancel := context.WithTimeout(ctx, wall)
	defer cancel()

	start := time.Now()
	if err := e.client.ContainerStart(execCtx, containerID, container.StartOptions{}); err != nil {
		return ExecResult{}, fmt.Errorf("failed to start container: %w", err)
	}

	statusCh, errCh := e.client.ContainerWait(execCtx, containerID, container.WaitConditionNotRunning)

	var exitCode int64
	timedOut := false
	select {
	case <-execCtx.Done():
		killCtx, killCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer killCancel()
		_ = e.client.ContainerKill(killCtx, containerID, "SIGKILL")
		timedOut = true
		exitCode = timeoutExitCode
	case err := <-errCh:
		if err != nil {
			return ExecResult{}, fmt.Errorf("container wait error: %w", err)
		}
	case status := <-statusCh:
		exitCode = status.StatusCode
	}

	logs, err := e.client.ContainerLogs(ctx, containerID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Tail:       "all",
	})
	if err != nil {
		return ExecResult{}, fmt.Errorf("failed to read container logs: %w", err)
	}
	defer logs.Close()

	maxOut := cfg.Resources.MaxOutputBytes
	if maxOut <= 0 {
		maxOut = 10 << 20
	}
	stdout, stderr, truncOut, truncErr := parseContainerLogs(logs, maxOut)

	res := ExecResult{
		ExitCode: int(exitCode),
		Stdout:   stdout,
		Stderr:   stderr,
		WallMs:   time.Since(start).Milliseconds(),
		TimedOut: timedOut,
	}
	res.Truncated.Stdout = truncOut
	res.Truncated.Stderr = truncErr
	return res, nil
}

func (e *ContainerExecutor) ensureImage(ctx context.Context, imageName string) error {
	if _, _, err := e.client.ImageInspectWithRaw(ctx, imageName); err == nil {
		return nil
	}
	reader, err := e.client.ImagePull(ctx, imageName, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image: %w", err)
	}
	defer reader.Close()
	// The pull only completes once its progress stream is drained.
	_, _ = io.Copy(io.Discard, reader)
	return nil
}

// parseContainerLogs demultiplexes the daemon's log stream. Each frame is
// an 8-byte header ([type][3 reserved][4-byte big-endian size]) followed
// by the payload.
func parseContainerLogs(reader io.Reader, maxBytes int64) (stdout, stderr string, truncOut, truncErr bool) {
	var outParts, errParts []string
	var outLen, errLen int64

	for {
		header := make([]byte, 8)
		if _, err := io.ReadFull(reader, header); err != nil {
			break
		}
		streamType := header[0]
		size := int(header[4])<<24 | int(header[5])<<16 | int(header[6])<<8 | int(header[7])
		if size <= 0 || size > 10*1024*1024 {
			continue
		}
		payload := make([]byte, size)
		if _, err := io.ReadFull(reader, payload); err != nil {
			break
		}
		content := strings.TrimSuffix(string(payload), "\n")

		if streamType == 2 {
			if errLen+int64(len(content)) > maxBytes {
				truncErr = true
				continue
			}
			errParts = append(errParts, content)
			errLen += int64(len(content))
		} else {
			if outLen+int64(len(content)) > maxBytes {
				truncOut = true
				continue
			}
			outParts = append(outParts, content)
			outLen += int64(len(content))
		}
	}
	return strings.Join(outParts, "\n"), strings.Join(errParts, "\n"), truncOut, truncErr
}
