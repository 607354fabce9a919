package warning

// Detector reports downward crossings of a single threshold per device.
// A crossing is a reading below the threshold that follows a reading at
// or above it; the first reading of a device never counts. Detector is
// not safe for concurrent use.
type Detector struct {
	threshold int
	last      map[string]int
}

func NewDetector(threshold int) *Detector {
	return &Detector{
		threshold: threshold,
		last:      make(map[string]int),
	}
}

func (d *Detector) Threshold() int {
	return d.threshold
}

// Observe records percent for device and reports whether it crossed below
// the threshold.
func (d *Detector) Observe(device string, percent int) bool {
	prev, seen := d.last[device]
	d.last[device] = percent

	return seen && prev >= d.threshold && percent < d.threshold
}
