package types

import "fmt"

// PartitionSnapshot is a partition's watermarks captured once at the start
// of a run. High is the next offset to be written, so the run reads
// [Low, High).
type PartitionSnapshot struct {
	Partition int32 `json:"partition"`
	Low       int64 `json:"low"`
	High      int64 `json:"high"`
	Completed bool  `json:"completed"`
}

// Empty reports whether the partition had nothing to read at start.
func (p *PartitionSnapshot) Empty() bool {
	return p.Low >= p.High
}

func (p *PartitionSnapshot) String() string {
	return fmt.Sprintf("partition[%d] %d..%d", p.Partition, p.Low, p.High)
}

// RunState is the lifecycle of one consumption run. It only moves forward.
type RunState int

const (
	Running RunState = iota
	StopRequested
	Stopped
)

func (s RunState) String() string {
	switch s {
	case Running:
		return "running"
	case StopRequested:
		return "stop_requested"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}
