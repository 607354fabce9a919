package power

import (
	"sync/atomic"
	"time"
)

// Snapshot is an immutable view of the device list at one discovery cycle.
// Devices must not be modified once the snapshot has been stored.
type Snapshot struct {
	Devices    []Device
	Generation uint64
	TakenAt    time.Time
}

// OfKind returns the devices of the given kind in enumeration order.
func (s *Snapshot) OfKind(kind Kind) []Device {
	if s == nil {
		return nil
	}

	out := make([]Device, 0, len(s.Devices))
	for _, d := range s.Devices {
		if d.Kind == kind {
			out = append(out, d)
		}
	}

	return out
}

// Len returns the number of devices in the snapshot.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}

	return len(s.Devices)
}

// SnapshotStore publishes device snapshots. Readers never block and always
// see a complete list; the last writer wins.
type SnapshotStore struct {
	current    atomic.Pointer[Snapshot]
	generation atomic.Uint64
}

// Load returns the most recently stored snapshot, or nil before the first Store.
func (s *SnapshotStore) Load() *Snapshot {
	return s.current.Load()
}

// Store copies devices into a new snapshot and swaps it in.
func (s *SnapshotStore) Store(devices []Device) *Snapshot {
	owned := make([]Device, len(devices))
	copy(owned, devices)

	snap := &Snapshot{
		Devices:    owned,
		Generation: s.generation.Add(1),
		TakenAt:    time.Now(),
	}
	s.current.Store(snap)

	return snap
}
