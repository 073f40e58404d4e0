package l4tracks

import (
	"math"

	"github.com/roadguard-data/roadguard/internal/config"
	"github.com/roadguard-data/roadguard/internal/vision/l1frames"
)

// StoreConfig holds configuration parameters for the track store.
type StoreConfig struct {
	LateralHistoryLen int     // Capacity of the lateral-displacement and average histories
	AreaHistoryLen    int     // Capacity of the bounding-box area history
	GatePx            float64 // Euclidean association gate (pixels)
}

// DefaultStoreConfig returns store configuration loaded from the canonical
// tuning defaults file. Panics if the file cannot be found — intended for
// tests and binaries that have already validated config availability.
func DefaultStoreConfig() StoreConfig {
	cfg := config.MustLoadDefaultConfig()
	return StoreConfigFromTuning(cfg)
}

// StoreConfigFromTuning builds a StoreConfig from a loaded TuningConfig.
func StoreConfigFromTuning(cfg *config.TuningConfig) StoreConfig {
	return StoreConfig{
		LateralHistoryLen: cfg.GetLateralHistoryLen(),
		AreaHistoryLen:    cfg.GetAreaHistoryLen(),
		GatePx:            cfg.GetAssociationGatePx(),
	}
}

// Track is one tracked road agent. Identity is a monotonically increasing
// integer, unique for the process lifetime and never reused; the class is
// fixed at creation.
type Track struct {
	ID      int64
	ClassID int
	Center  l1frames.Point

	// LateralHistory is the bounded FIFO of signed per-frame lateral
	// displacements, most recent last. Positive means the agent moved
	// leftward relative to the frame.
	LateralHistory []float64

	// RollingAverage is the arithmetic mean of LateralHistory (0 when empty).
	RollingAverage float64

	// AverageHistory records RollingAverage at each frame, bounded to the
	// same capacity as LateralHistory. The behavior layer appends to it and
	// reads it for sign-stability analysis.
	AverageHistory []float64

	// AreaHistory is the bounded FIFO of bounding-box areas.
	AreaHistory []float64

	// SignChanges counts drift-direction reversals. It only resets when the
	// agent proves stable (a full AverageHistory of one sign).
	SignChanges int

	// LastSign is the last nonzero drift sign observed (−1 or +1; 0 = unset).
	LastSign int
}

// AssociationStrategy selects the track a detection belongs to, or nil for
// no match. Tracks are presented in creation order.
type AssociationStrategy func(tracks []*Track, det l1frames.Detection, gatePx float64) *Track

// GreedyFirstMatch is the default association policy: the first track of
// the detection's class whose last center is within the gate wins, even if
// a later track is nearer.
func GreedyFirstMatch(tracks []*Track, det l1frames.Detection, gatePx float64) *Track {
	center := det.Box.Center()
	for _, track := range tracks {
		if track.ClassID != det.ClassID {
			continue
		}
		dx := track.Center.X - center.X
		dy := track.Center.Y - center.Y
		if math.Sqrt(dx*dx+dy*dy) < gatePx {
			return track
		}
	}
	return nil
}

// Store owns all tracks for an engine instance.
type Store struct {
	Config StoreConfig

	tracks   []*Track // creation order; iteration order is part of the association contract
	byID     map[int64]*Track
	nextID   int64
	strategy AssociationStrategy
}

// NewStore creates a store using the greedy first-match policy.
func NewStore(cfg StoreConfig) *Store {
	return NewStoreWithStrategy(cfg, GreedyFirstMatch)
}

// NewStoreWithStrategy creates a store with a custom association policy.
func NewStoreWithStrategy(cfg StoreConfig, strategy AssociationStrategy) *Store {
	return &Store{
		Config:   cfg,
		byID:     make(map[int64]*Track),
		nextID:   1,
		strategy: strategy,
	}
}

// Associate matches the detection to an existing track or creates a new one.
// The returned track's histories are untouched; call Update to fold the
// detection in.
func (s *Store) Associate(det l1frames.Detection) *Track {
	if track := s.strategy(s.tracks, det, s.Config.GatePx); track != nil {
		return track
	}

	track := &Track{
		ID:      s.nextID,
		ClassID: det.ClassID,
		Center:  det.Box.Center(),
	}
	s.nextID++
	s.tracks = append(s.tracks, track)
	s.byID[track.ID] = track
	return track
}

// Update folds a matched detection into the track: lateral displacement
// (previous center X minus detection center X), rolling average, new
// center, and bounding-box area history.
func (s *Store) Update(track *Track, det l1frames.Detection) {
	center := det.Box.Center()

	lateral := track.Center.X - center.X
	track.LateralHistory = appendBounded(track.LateralHistory, lateral, s.Config.LateralHistoryLen)
	track.RollingAverage = mean(track.LateralHistory)
	track.Center = center
	track.AreaHistory = appendBounded(track.AreaHistory, det.Box.Area(), s.Config.AreaHistoryLen)
}

// Get returns a track by ID, or nil if unknown.
func (s *Store) Get(id int64) *Track {
	return s.byID[id]
}

// Tracks returns all tracks in creation order. The slice is a copy; the
// tracks themselves are live.
func (s *Store) Tracks() []*Track {
	out := make([]*Track, len(s.tracks))
	copy(out, s.tracks)
	return out
}

// Len returns the number of tracks ever created and still held.
func (s *Store) Len() int {
	return len(s.tracks)
}

// appendBounded appends v and evicts the oldest entries beyond max.
func appendBounded(h []float64, v float64, max int) []float64 {
	h = append(h, v)
	if len(h) > max {
		h = h[len(h)-max:]
	}
	return h
}

func mean(vs []float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}
