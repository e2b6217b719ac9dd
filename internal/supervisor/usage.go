package supervisor

import (
	"github.com/prometheus/procfs"
)

// Usage is a best-effort snapshot of a process's resource consumption.
type Usage struct {
	CPUSeconds    float64 `json:"cpu_seconds"`
	MemoryBytes   int     `json:"memory_bytes"`
	ThreadCount   int     `json:"thread_count"`
	StartTimeUnix float64 `json:"start_time_unix,omitempty"`
}

// IsAlive reports whether a process with the given pid currently exists.
func (s *Supervisor) IsAlive(pid int) bool {
	return isAlive(pid)
}

// ResourceUsage reads CPU and memory usage for a pid from /proc. Failure to
// read process stats is not an error; it only reports unavailable.
func (s *Supervisor) ResourceUsage(pid int) (Usage, bool) {
	proc, err := procfs.NewProc(pid)
	if err != nil {
		return Usage{}, false
	}
	stat, err := proc.Stat()
	if err != nil {
		return Usage{}, false
	}

	usage := Usage{
		CPUSeconds:  stat.CPUTime(),
		MemoryBytes: stat.ResidentMemory(),
		ThreadCount: stat.NumThreads,
	}
	if start, err := stat.StartTime(); err == nil {
		usage.StartTimeUnix = start
	}
	return usage, true
}
