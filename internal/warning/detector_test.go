package warning_test

import (
	"testing"

	"codeberg.org/mutker/powerwatch/internal/warning"
	"github.com/stretchr/testify/assert"
)

func crossings(d *warning.Detector, device string, seq []int) []int {
	var at []int
	for i, p := range seq {
		if d.Observe(device, p) {
			at = append(at, i)
		}
	}

	return at
}

func TestDetectorDownwardCrossings(t *testing.T) {
	d := warning.NewDetector(20)

	got := crossings(d, "BAT0", []int{25, 22, 21, 20, 19, 20, 19})
	assert.Equal(t, []int{4, 6}, got)
}

func TestDetectorIgnoresRisesAndPlateaus(t *testing.T) {
	d := warning.NewDetector(20)

	assert.Empty(t, crossings(d, "BAT0", []int{10, 15, 19, 19, 25, 30}))
}

func TestDetectorFirstReadingIsNotACrossing(t *testing.T) {
	d := warning.NewDetector(20)

	assert.False(t, d.Observe("BAT0", 3))
	assert.False(t, d.Observe("BAT0", 2))
}

func TestDetectorLargeDrop(t *testing.T) {
	d := warning.NewDetector(5)

	assert.False(t, d.Observe("BAT0", 50))
	assert.True(t, d.Observe("BAT0", 0))
}

func TestDetectorPerDevice(t *testing.T) {
	d := warning.NewDetector(20)

	d.Observe("BAT0", 21)
	d.Observe("BAT1", 30)
	assert.False(t, d.Observe("BAT1", 20))
	assert.True(t, d.Observe("BAT0", 19))
	assert.True(t, d.Observe("BAT1", 19))
	assert.Equal(t, 20, d.Threshold())
}
