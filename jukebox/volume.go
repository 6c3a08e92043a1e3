package jukebox

import "sync"

// VolumeControl selects one of the three multiplicative gain stages.
type VolumeControl uint8

const (
	// ControlMelee is the in-game music channel, scaled out of 254.
	ControlMelee VolumeControl = iota
	// ControlSystem is the host's overall volume, scaled out of 100.
	ControlSystem
	// ControlMusic is the host's dedicated music volume, scaled out of 100.
	ControlMusic
)

// Playback runs slightly louder than the game's own mixer, so the combined
// gain is pulled back to 80%.
const volumeReductionMultiplier = 0.8

// maxGainStepPerChunk bounds how far the applied gain may move between two
// consecutive output chunks, keeping volume changes click-free.
const maxGainStepPerChunk = 1.0 / 16.0

// volumeState holds the three gain stages. Writers are the command loop;
// the playback feeder reads the combined target each chunk.
type volumeState struct {
	mu     sync.Mutex
	melee  float64
	system float64
	music  float64
}

func newVolumeState(systemVolume, musicVolume uint8) *volumeState {
	return &volumeState{
		melee:  1.0,
		system: clampUnit(float64(systemVolume) / 100.0),
		music:  clampUnit(float64(musicVolume) / 100.0),
	}
}

func (v *volumeState) set(control VolumeControl, value uint8) {
	v.mu.Lock()
	defer v.mu.Unlock()

	switch control {
	case ControlMelee:
		v.melee = clampUnit(float64(value) / 254.0)
	case ControlSystem:
		v.system = clampUnit(float64(value) / 100.0)
	case ControlMusic:
		v.music = clampUnit(float64(value) / 100.0)
	}
}

// target is the combined gain the feeder ramps toward.
func (v *volumeState) target() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.melee * v.system * v.music * volumeReductionMultiplier
}

func clampUnit(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// rampGain moves current toward target by at most maxGainStepPerChunk.
func rampGain(current, target float64) float64 {
	diff := target - current
	if diff > maxGainStepPerChunk {
		return current + maxGainStepPerChunk
	}
	if diff < -maxGainStepPerChunk {
		return current - maxGainStepPerChunk
	}
	return target
}
