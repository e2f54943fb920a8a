package sandbox

import (
	"context"
	"time"
)

// Config is the runtime configuration for the isolation boundary. Resource
// limits apply per container, which is the per-task quota because a worker
// runs one script at a time.
type Config struct {
	ImageName  string
	ImageTag   string
	PullPolicy string // always | if-not-present | never

	WorkspacePath string

	MemoryLimitMB int
	CPULimit      float64 // fraction of one CPU, converted to NanoCPUs
	PidsLimit     int64

	SecurityOpt    []string
	ReadonlyRootfs bool

	CircuitBreakerThreshold int
	CircuitBreakerTimeout   time.Duration
}

// ExecResult is the outcome of one script execution.
type ExecResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// Usage is a point-in-time resource reading for one container, measured
// from runtime stats rather than estimated.
type Usage struct {
	CPUPercent    float64
	MemoryBytes   uint64
	MemoryPercent float64
}

// Client is the narrow surface the sandbox needs from the container
// runtime. The moby-backed implementation lives in moby.go; tests inject a
// mock.
type Client interface {
	EnsureImage(ctx context.Context) error
	CreateContainer(ctx context.Context, name string, profile Profile) (string, error)
	StartContainer(ctx context.Context, id string) error
	StopContainer(ctx context.Context, id string, timeout *int) error
	RemoveContainer(ctx context.Context, id string) error
	RunScript(ctx context.Context, id, script string) (*ExecResult, error)
	Stats(ctx context.Context, id string) (*Usage, error)
	Close() error
}
