package consumer

import (
	"fmt"
	"sort"

	"github.com/datazip-inc/kinspect/types"
)

// Tracker owns the partition snapshots of a run and derives the run state
// from end of partition signals alone.
type Tracker struct {
	snapshots map[int32]*types.PartitionSnapshot
	remaining int
	state     types.RunState
}

func NewTracker(snapshots []*types.PartitionSnapshot) *Tracker {
	t := &Tracker{
		snapshots: make(map[int32]*types.PartitionSnapshot, len(snapshots)),
		state:     types.Running,
	}
	for _, snapshot := range snapshots {
		t.snapshots[snapshot.Partition] = snapshot
		if !snapshot.Completed {
			t.remaining++
		}
	}
	return t
}

// Complete marks partition as done. newly is false for a repeated signal.
// stop is true only for the call that completed the last partition, which
// also moves the run to StopRequested.
func (t *Tracker) Complete(partition int32) (newly bool, stop bool, err error) {
	snapshot, ok := t.snapshots[partition]
	if !ok {
		return false, false, fmt.Errorf("end of partition signal for unknown partition %d", partition)
	}
	if snapshot.Completed {
		return false, false, nil
	}

	snapshot.Completed = true
	t.remaining--
	if t.remaining == 0 && t.state == types.Running {
		t.state = types.StopRequested
		return true, true, nil
	}
	return true, false, nil
}

func (t *Tracker) Snapshot(partition int32) (*types.PartitionSnapshot, bool) {
	snapshot, ok := t.snapshots[partition]
	return snapshot, ok
}

// Snapshots returns the snapshots ordered by partition.
func (t *Tracker) Snapshots() []*types.PartitionSnapshot {
	out := make([]*types.PartitionSnapshot, 0, len(t.snapshots))
	for _, snapshot := range t.snapshots {
		out = append(out, snapshot)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Partition < out[j].Partition })
	return out
}

func (t *Tracker) Remaining() int {
	return t.remaining
}

func (t *Tracker) AllCompleted() bool {
	return t.remaining == 0
}

func (t *Tracker) State() types.RunState {
	return t.state
}

// Stopped is terminal; the consumption loop calls it once it returns.
func (t *Tracker) Stopped() {
	t.state = types.Stopped
}
