// Package scheduler implements the per-target playlist state machines:
// deterministic advance/skip and a seeded Fisher-Yates shuffle.
package scheduler

import (
	"math/rand"
	"time"

	"github.com/lambdash/lambdash/config"
	"github.com/lambdash/lambdash/lambdasherr"
)

// TargetID is a stable string identifying one live surface's binding to a
// playlist.
type TargetID string

// ScheduledItem is the scheduler's output for one active slot: the handle
// text plus the per-item overrides resolved against the playlist's
// defaults.
type ScheduledItem struct {
	Handle      string
	Duration    time.Duration
	FPS         *float64
	Antialias   *string
	RefreshOnce bool
	Crossfade   time.Duration
	Mode        string
	StillTime   *float64
}

// SelectionChange is emitted whenever a target starts a new item.
type SelectionChange struct {
	Target    TargetID
	Item      ScheduledItem
	StartedAt time.Time
}

// Mode is a playlist's ordering discipline.
type Mode int

const (
	Continuous Mode = iota
	Shuffle
)

func parseMode(s string) Mode {
	if s == "shuffle" {
		return Shuffle
	}
	return Continuous
}

type runtimeItem struct {
	handle      string
	duration    time.Duration
	fps         *float64
	antialias   *string
	refreshOnce bool
	mode        string
	stillTime   *float64
}

type playlistRuntime struct {
	mode      Mode
	crossfade time.Duration
	items     []runtimeItem
}

func playlistRuntimeFromConfig(src config.Playlist) playlistRuntime {
	items := make([]runtimeItem, len(src.Items))
	for i, item := range src.Items {
		duration := src.ItemDuration.Duration()
		if item.Duration != nil {
			duration = item.Duration.Duration()
		}
		fps := src.FPS
		if item.FPS != nil {
			fps = item.FPS
		}
		antialias := stringOrNil(src.Antialias)
		if item.Antialias != nil {
			antialias = item.Antialias
		}
		items[i] = runtimeItem{
			handle:      item.Handle,
			duration:    duration,
			fps:         fps,
			antialias:   antialias,
			refreshOnce: item.RefreshOnce,
			mode:        item.Mode,
			stillTime:   item.StillTime,
		}
	}
	return playlistRuntime{
		mode:      parseMode(src.Mode),
		crossfade: src.Crossfade.Duration(),
		items:     items,
	}
}

func stringOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

type targetState struct {
	playlist    playlistRuntime
	order       []int
	cursor      int
	lastStarted time.Time
}

func newTargetState(playlist playlistRuntime, rng *rand.Rand) *targetState {
	return &targetState{
		playlist:    playlist,
		order:       buildOrder(len(playlist.items), playlist.mode, rng),
		cursor:      0,
		lastStarted: time.Now(),
	}
}

func (s *targetState) currentIndex() int { return s.order[s.cursor] }

func (s *targetState) shouldAdvance(now time.Time, rng *rand.Rand) bool {
	item := s.playlist.items[s.currentIndex()]
	if now.Sub(s.lastStarted) >= item.duration {
		s.cursor++
		if s.cursor >= len(s.order) {
			s.order = buildOrder(len(s.playlist.items), s.playlist.mode, rng)
			s.cursor = 0
		}
		s.lastStarted = now
		return true
	}
	return false
}

func (s *targetState) buildSelection(now time.Time) ScheduledItem {
	item := s.playlist.items[s.currentIndex()]
	s.lastStarted = now
	return ScheduledItem{
		Handle:      item.handle,
		Duration:    item.duration,
		FPS:         item.fps,
		Antialias:   item.antialias,
		RefreshOnce: item.refreshOnce,
		Crossfade:   s.playlist.crossfade,
		Mode:        item.mode,
		StillTime:   item.stillTime,
	}
}

func buildOrder(length int, mode Mode, rng *rand.Rand) []int {
	order := make([]int, length)
	for i := range order {
		order[i] = i
	}
	if mode == Shuffle {
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	}
	return order
}

// Scheduler owns every target's playlist state machine and the single
// shared RNG used for shuffle orders.
type Scheduler struct {
	playlists map[string]playlistRuntime
	targets   map[TargetID]*targetState
	rng       *rand.Rand
}

// New builds a Scheduler from the decoded playlist config, seeded once for
// the run so shuffle orders are reproducible given the same seed and event
// trace.
func New(cfg *config.PlaylistFile, seed uint64) *Scheduler {
	playlists := make(map[string]playlistRuntime, len(cfg.Playlists))
	for name, p := range cfg.Playlists {
		playlists[name] = playlistRuntimeFromConfig(p)
	}
	return &Scheduler{
		playlists: playlists,
		targets:   make(map[TargetID]*targetState),
		rng:       rand.New(rand.NewSource(int64(seed))),
	}
}

// SetTarget builds a fresh per-target state for playlistName and returns
// the first selection.
func (s *Scheduler) SetTarget(target TargetID, playlistName string, now time.Time) (SelectionChange, error) {
	runtime, ok := s.playlists[playlistName]
	if !ok {
		return SelectionChange{}, lambdasherr.New(lambdasherr.SchedulerUnknownPlaylist, playlistName)
	}

	state := newTargetState(runtime, s.rng)
	item := state.buildSelection(now)
	s.targets[target] = state

	return SelectionChange{Target: target, Item: item, StartedAt: now}, nil
}

// RemoveTarget drops target's state.
func (s *Scheduler) RemoveTarget(target TargetID) {
	delete(s.targets, target)
}

// Tick advances every live target whose item duration has elapsed and
// returns the resulting selection changes. Concurrent targets advance
// independently within a single tick.
func (s *Scheduler) Tick(now time.Time) []SelectionChange {
	var changes []SelectionChange
	for target, state := range s.targets {
		if state.shouldAdvance(now, s.rng) {
			item := state.buildSelection(now)
			changes = append(changes, SelectionChange{Target: target, Item: item, StartedAt: now})
		}
	}
	return changes
}

// SkipTarget immediately advances target as if its current item's duration
// had elapsed. Returns ok=false if target is unknown.
func (s *Scheduler) SkipTarget(target TargetID, now time.Time) (SelectionChange, bool) {
	state, ok := s.targets[target]
	if !ok {
		return SelectionChange{}, false
	}
	state.cursor++
	if state.cursor >= len(state.order) {
		state.order = buildOrder(len(state.playlist.items), state.playlist.mode, s.rng)
		state.cursor = 0
	}
	item := state.buildSelection(now)
	return SelectionChange{Target: target, Item: item, StartedAt: now}, true
}
