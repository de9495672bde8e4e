package types

import "time"

// WorkerRole 表示 worker 在拓扑中的角色。
type WorkerRole string

const (
	// WorkerRoleMaster 持有入口端点和 slave 列表。
	WorkerRoleMaster WorkerRole = "master"
	// WorkerRoleSlave 从 master 的 push 端点拉取任务并执行。
	WorkerRoleSlave WorkerRole = "slave"
)

// WorkerState 表示 worker 的生命周期状态。
type WorkerState string

const (
	WorkerStateCreated WorkerState = "created"
	WorkerStateRunning WorkerState = "running"
	WorkerStateStopped WorkerState = "stopped"
)

// WorkerSnapshot 是 worker 运行统计的只读快照。
type WorkerSnapshot struct {
	Name     string      `json:"name"`
	Role     WorkerRole  `json:"role"`
	Endpoint string      `json:"endpoint"`
	State    WorkerState `json:"state"`
	Slaves   int         `json:"slaves"`

	Received      int64 `json:"received"`
	Forwarded     int64 `json:"forwarded"`
	ForwardFailed int64 `json:"forward_failed"`
	Executed      int64 `json:"executed"`
	Failed        int64 `json:"failed"`
	NotFound      int64 `json:"not_found"`
	Malformed     int64 `json:"malformed"`

	ExecP50   time.Duration `json:"exec_p50"`
	ExecP99   time.Duration `json:"exec_p99"`
	StartedAt time.Time     `json:"started_at,omitempty"`
}
