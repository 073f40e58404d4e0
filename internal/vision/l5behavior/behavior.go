package l5behavior

import (
	"math"

	"github.com/roadguard-data/roadguard/internal/config"
	"github.com/roadguard-data/roadguard/internal/vision/l1frames"
	"github.com/roadguard-data/roadguard/internal/vision/l2fit"
	"github.com/roadguard-data/roadguard/internal/vision/l4tracks"
)

// State is the drift state derived from a track's reversal latch.
type State string

const (
	StateStable    State = "stable"    // No accumulated reversals
	StateReversing State = "reversing" // Some reversals, below the alarm count
	StateLatched   State = "latched"   // Reversal count reached, impairment alarm active
)

// Direction classifies whether an agent is closing on the camera.
type Direction string

const (
	DirectionApproaching Direction = "approaching"
	DirectionReceding    Direction = "receding"
	DirectionSteady      Direction = "steady"
)

// Alarm labels emitted for downstream presentation.
const (
	AlarmDistracted = "DISTRACTED DRIVER AHEAD"
	AlarmImpaired   = "IMPAIRED DRIVER AHEAD"
)

// MachineConfig holds configuration parameters for the behavior machine.
type MachineConfig struct {
	HistoryLen           int     // Capacity of the average-lateral history (H)
	AreaHistoryLen       int     // Samples required for a direction verdict
	DriftThreshold       float64 // Rolling-average magnitude for the distracted alarm
	OffCenterThresholdPx float64 // Lane-offset pixels for the distracted alarm
	ReversalCount        int     // Latch value at which the impaired alarm fires
}

// DefaultMachineConfig returns machine configuration loaded from the
// canonical tuning defaults file. Panics if the file cannot be found —
// intended for tests and binaries that have already validated config
// availability.
func DefaultMachineConfig() MachineConfig {
	cfg := config.MustLoadDefaultConfig()
	return MachineConfigFromTuning(cfg)
}

// MachineConfigFromTuning builds a MachineConfig from a loaded TuningConfig.
func MachineConfigFromTuning(cfg *config.TuningConfig) MachineConfig {
	return MachineConfig{
		HistoryLen:           cfg.GetLateralHistoryLen(),
		AreaHistoryLen:       cfg.GetAreaHistoryLen(),
		DriftThreshold:       cfg.GetDriftThreshold(),
		OffCenterThresholdPx: cfg.GetOffCenterThresholdPx(),
		ReversalCount:        cfg.GetReversalCount(),
	}
}

// Machine runs the per-track drift state machine. It is stateless itself;
// all mutable state lives on the track.
type Machine struct {
	Config MachineConfig
}

// NewMachine creates a behavior machine with the given configuration.
func NewMachine(cfg MachineConfig) *Machine {
	return &Machine{Config: cfg}
}

// Step advances the track's drift state machine by one frame, after the
// track store has folded in the frame's detection. Transition order:
//  1. a nonzero current sign opposing the last established sign increments
//     the reversal latch;
//  2. otherwise, a full average-lateral history of one constant sign resets
//     the latch (sustained stability clears accumulated reversals);
//  3. a nonzero current sign becomes the new last sign;
//  4. the rolling average is appended to the average-lateral history.
func (m *Machine) Step(track *l4tracks.Track) {
	currentSign := sign(track.RollingAverage)

	if track.LastSign != 0 && currentSign != 0 && currentSign != track.LastSign {
		track.SignChanges++
	} else if len(track.AverageHistory) == m.Config.HistoryLen && uniformSign(track.AverageHistory) {
		track.SignChanges = 0
	}

	if currentSign != 0 {
		track.LastSign = currentSign
	}

	track.AverageHistory = append(track.AverageHistory, track.RollingAverage)
	if len(track.AverageHistory) > m.Config.HistoryLen {
		track.AverageHistory = track.AverageHistory[len(track.AverageHistory)-m.Config.HistoryLen:]
	}
}

// StateOf maps the track's latch value onto the explicit machine state.
func (m *Machine) StateOf(track *l4tracks.Track) State {
	switch {
	case track.SignChanges >= m.Config.ReversalCount:
		return StateLatched
	case track.SignChanges > 0:
		return StateReversing
	default:
		return StateStable
	}
}

// DirectionOf classifies the track's motion from its area history. The
// verdict needs a full history; anything less is Steady.
func (m *Machine) DirectionOf(track *l4tracks.Track) Direction {
	areas := track.AreaHistory
	if len(areas) < m.Config.AreaHistoryLen {
		return DirectionSteady
	}

	growing, shrinking := true, true
	for i := 1; i < len(areas); i++ {
		diff := areas[i] - areas[i-1]
		if diff <= 0 {
			growing = false
		}
		if diff >= 0 {
			shrinking = false
		}
	}
	switch {
	case growing:
		return DirectionApproaching
	case shrinking:
		return DirectionReceding
	default:
		return DirectionSteady
	}
}

// LaneOffset is the absolute horizontal distance from p to the centerline
// at p's vertical position. Without a centerline the offset is neutral (0),
// a valid state rather than an error.
func LaneOffset(center *l2fit.PolynomialFit, p l1frames.Point) float64 {
	if center == nil {
		return 0
	}
	return math.Abs(p.X - center.Eval(p.Y))
}

// Alarms evaluates the track's alarm set for this frame. Alarm eligibility
// is gated on ROI membership; outside the ROI nothing fires regardless of
// state. Both alarms are independent and may fire together.
func (m *Machine) Alarms(track *l4tracks.Track, laneOffset float64, inROI bool) []string {
	if !inROI {
		return nil
	}

	var alarms []string
	if math.Abs(track.RollingAverage) > m.Config.DriftThreshold && laneOffset > m.Config.OffCenterThresholdPx {
		alarms = append(alarms, AlarmDistracted)
	}
	if track.SignChanges >= m.Config.ReversalCount {
		alarms = append(alarms, AlarmImpaired)
	}
	return alarms
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

// uniformSign reports whether every value shares one sign, zeros included.
func uniformSign(vs []float64) bool {
	if len(vs) == 0 {
		return false
	}
	first := sign(vs[0])
	for _, v := range vs[1:] {
		if sign(v) != first {
			return false
		}
	}
	return true
}
