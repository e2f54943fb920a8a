package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/moby/moby/api/pkg/stdcopy"
	"github.com/moby/moby/api/types/container"
	"github.com/moby/moby/api/types/mount"
	dockerclient "github.com/moby/moby/client"
)

// MobyClient implements Client against the Docker daemon. All SDK types
// stay inside this file.
type MobyClient struct {
	client *dockerclient.Client
	cfg    Config
}

func NewMobyClient(cfg Config) (*MobyClient, error) {
	cli, err := dockerclient.New(dockerclient.WithAPIVersionNegotiation(), dockerclient.FromEnv)
	if err != nil {
		return nil, &SandboxError{Op: "connect", Err: err, Message: "failed to connect to Docker daemon"}
	}

	ctx := context.Background()
	if _, err := cli.Ping(ctx, dockerclient.PingOptions{NegotiateAPIVersion: true}); err != nil {
		return nil, &SandboxError{Op: "ping", Err: err, Message: "Docker daemon not available"}
	}

	return &MobyClient{client: cli, cfg: cfg}, nil
}

func (c *MobyClient) Close() error {
	return c.client.Close()
}

func (c *MobyClient) imageRef() string {
	if c.cfg.ImageTag != "" && !strings.Contains(c.cfg.ImageName, ":") {
		return c.cfg.ImageName + ":" + c.cfg.ImageTag
	}
	return c.cfg.ImageName
}

func (c *MobyClient) EnsureImage(ctx context.Context) error {
	if c.cfg.PullPolicy == "never" {
		return nil
	}

	ref := c.imageRef()
	resp, err := c.client.ImagePull(ctx, ref, dockerclient.ImagePullOptions{})
	if err != nil {
		if c.cfg.PullPolicy == "if-not-present" {
			return nil
		}
		return &SandboxError{Op: "pull", Err: err, Message: fmt.Sprintf("failed to pull image %s", ref)}
	}
	defer resp.Close()

	if err := resp.Wait(ctx); err != nil {
		if c.cfg.PullPolicy == "if-not-present" {
			return nil
		}
		return &SandboxError{Op: "pull", Err: err, Message: fmt.Sprintf("failed to pull image %s", ref)}
	}

	return nil
}

// CreateContainer creates a long-lived container that idles until scripts
// are exec'ed into it. The resource quota is enforced here, not by the
// script runner.
func (c *MobyClient) CreateContainer(ctx context.Context, name string, profile Profile) (string, error) {
	memoryLimit := int64(c.cfg.MemoryLimitMB) * 1024 * 1024
	if memoryLimit == 0 {
		memoryLimit = 256 * 1024 * 1024
	}

	cpuLimit := c.cfg.CPULimit
	if cpuLimit == 0 {
		cpuLimit = 0.7
	}

	pidsLimit := c.cfg.PidsLimit
	if pidsLimit == 0 {
		pidsLimit = 50
	}

	securityOpt := c.cfg.SecurityOpt
	if len(securityOpt) == 0 {
		securityOpt = []string{"no-new-privileges"}
	}

	var mounts []mount.Mount
	if c.cfg.WorkspacePath != "" {
		mounts = append(mounts, mount.Mount{
			Type:     mount.TypeBind,
			Source:   c.cfg.WorkspacePath,
			Target:   "/workspace",
			ReadOnly: !profile.WritableWorkspace,
		})
	}

	networkMode := container.NetworkMode("none")
	if profile.Network {
		networkMode = container.NetworkMode("bridge")
	}

	result, err := c.client.ContainerCreate(ctx, dockerclient.ContainerCreateOptions{
		Image: c.imageRef(),
		Config: &container.Config{
			Image:      c.imageRef(),
			Cmd:        []string{"sleep", "infinity"},
			WorkingDir: "/workspace",
			Labels:     map[string]string{"nexos.worker": name},
		},
		HostConfig: &container.HostConfig{
			Resources: container.Resources{
				Memory:    memoryLimit,
				NanoCPUs:  int64(cpuLimit * 1e9),
				PidsLimit: &pidsLimit,
			},
			Mounts:         mounts,
			NetworkMode:    networkMode,
			SecurityOpt:    securityOpt,
			ReadonlyRootfs: c.cfg.ReadonlyRootfs,
			Tmpfs:          map[string]string{"/tmp": "rw,size=50m"},
		},
	})
	if err != nil {
		return "", &SandboxError{Op: "create", Err: err, Message: "failed to create container"}
	}

	return result.ID, nil
}

func (c *MobyClient) StartContainer(ctx context.Context, id string) error {
	if _, err := c.client.ContainerStart(ctx, id, dockerclient.ContainerStartOptions{}); err != nil {
		return &SandboxError{Op: "start", Err: err, Message: fmt.Sprintf("failed to start container %s", id)}
	}
	return nil
}

func (c *MobyClient) StopContainer(ctx context.Context, id string, timeout *int) error {
	if _, err := c.client.ContainerStop(ctx, id, dockerclient.ContainerStopOptions{Timeout: timeout}); err != nil {
		return &SandboxError{Op: "stop", Err: err, Message: fmt.Sprintf("failed to stop container %s", id)}
	}
	return nil
}

func (c *MobyClient) RemoveContainer(ctx context.Context, id string) error {
	if _, err := c.client.ContainerRemove(ctx, id, dockerclient.ContainerRemoveOptions{Force: true}); err != nil {
		return &SandboxError{Op: "remove", Err: err, Message: fmt.Sprintf("failed to remove container %s", id)}
	}
	return nil
}

// RunScript execs the script inside the container and demuxes its output.
// Cancellation of ctx aborts the wait; the deadline itself is owned by the
// caller.
func (c *MobyClient) RunScript(ctx context.Context, id, script string) (*ExecResult, error) {
	start := time.Now()

	created, err := c.client.ExecCreate(ctx, id, dockerclient.ExecCreateOptions{
		Cmd:          []string{"/bin/sh", "-c", script},
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return nil, &SandboxError{Op: "exec_create", Err: err, Message: fmt.Sprintf("failed to create exec in container %s", id)}
	}

	attach, err := c.client.ExecAttach(ctx, created.ID, dockerclient.ExecAttachOptions{})
	if err != nil {
		return nil, &SandboxError{Op: "exec_attach", Err: err, Message: fmt.Sprintf("failed to attach exec %s", created.ID)}
	}
	defer attach.Close()

	var stdout, stderr bytes.Buffer
	copyDone := make(chan error, 1)
	go func() {
		_, copyErr := stdcopy.StdCopy(&stdout, &stderr, attach.Reader)
		copyDone <- copyErr
	}()

	select {
	case copyErr := <-copyDone:
		if copyErr != nil {
			return nil, &SandboxError{Op: "exec_read", Err: copyErr, Message: "failed to read exec output"}
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	inspect, err := c.client.ExecInspect(ctx, created.ID, dockerclient.ExecInspectOptions{})
	if err != nil {
		return nil, &SandboxError{Op: "exec_inspect", Err: err, Message: fmt.Sprintf("failed to inspect exec %s", created.ID)}
	}

	return &ExecResult{
		ExitCode: inspect.ExitCode,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}, nil
}

// Stats takes a one-shot stats reading and derives CPU and memory figures
// the same way `docker stats` does.
func (c *MobyClient) Stats(ctx context.Context, id string) (*Usage, error) {
	resp, err := c.client.ContainerStats(ctx, id, dockerclient.ContainerStatsOptions{Stream: false})
	if err != nil {
		return nil, &SandboxError{Op: "stats", Err: err, Message: fmt.Sprintf("failed to read stats for container %s", id)}
	}
	defer resp.Body.Close()

	var stats container.StatsResponse
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return nil, &SandboxError{Op: "stats", Err: err, Message: "failed to decode stats response"}
	}

	return &Usage{
		CPUPercent:    cpuPercent(&stats),
		MemoryBytes:   memoryUsage(&stats),
		MemoryPercent: memoryPercent(&stats),
	}, nil
}

func cpuPercent(stats *container.StatsResponse) float64 {
	cpuDelta := float64(stats.CPUStats.CPUUsage.TotalUsage) - float64(stats.PreCPUStats.CPUUsage.TotalUsage)
	systemDelta := float64(stats.CPUStats.SystemUsage) - float64(stats.PreCPUStats.SystemUsage)
	if systemDelta <= 0 || cpuDelta < 0 {
		return 0
	}

	onlineCPUs := float64(stats.CPUStats.OnlineCPUs)
	if onlineCPUs == 0 {
		onlineCPUs = float64(len(stats.CPUStats.CPUUsage.PercpuUsage))
	}
	if onlineCPUs == 0 {
		onlineCPUs = 1
	}

	return cpuDelta / systemDelta * onlineCPUs * 100.0
}

func memoryUsage(stats *container.StatsResponse) uint64 {
	usage := stats.MemoryStats.Usage
	// Page cache does not count against the limit.
	if cache, ok := stats.MemoryStats.Stats["inactive_file"]; ok && cache < usage {
		usage -= cache
	}
	return usage
}

func memoryPercent(stats *container.StatsResponse) float64 {
	if stats.MemoryStats.Limit == 0 {
		return 0
	}
	return float64(memoryUsage(stats)) / float64(stats.MemoryStats.Limit) * 100.0
}
