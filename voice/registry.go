package voice

import (
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/CS-5/apalto-bot/clock"
	apperr "github.com/CS-5/apalto-bot/errors"
)

const pairPrefix = "apalto"

// PairKey returns the canonical key of the pair made of channels a and b.
// The key does not depend on argument order.
func PairKey(a, b string) string {
	ids := []string{a, b}
	slices.Sort(ids)
	return pairPrefix + ":" + strings.Join(ids, ":")
}

// State is where a pair is in its lifecycle.
type State int

const (
	// StateActive means at least one channel was occupied when last observed.
	StateActive State = iota
	// StateDraining means both channels were empty and a deletion timer runs.
	StateDraining
	// StateDeleted is terminal; the pair has left the registry.
	StateDeleted
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateDraining:
		return "draining"
	case StateDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Pair is one TIME 1 / TIME 2 session. The identifying fields never change
// after creation; lifecycle fields are guarded by mu.
type Pair struct {
	GuildID    string
	Team1ID    string
	Team2ID    string
	CategoryID string
	CreatorID  string
	CreatedAt  time.Time

	mu         sync.Mutex
	emptySince time.Time
	timer      *clock.Timer
	generation uint64
	deleted    bool
}

// Key returns the canonical registry key of the pair.
func (p *Pair) Key() string {
	return PairKey(p.Team1ID, p.Team2ID)
}

// Has reports whether channelID is one of the pair's channels.
func (p *Pair) Has(channelID string) bool {
	return channelID != "" && (channelID == p.Team1ID || channelID == p.Team2ID)
}

// EmptySince returns when both channels were first observed empty. ok is
// false while at least one channel is occupied.
func (p *Pair) EmptySince() (since time.Time, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.emptySince, !p.emptySince.IsZero()
}

// State returns the pair's current lifecycle state.
func (p *Pair) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case p.deleted:
		return StateDeleted
	case !p.emptySince.IsZero():
		return StateDraining
	default:
		return StateActive
	}
}

// TimerPending reports whether a deletion timer is scheduled.
func (p *Pair) TimerPending() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.timer != nil
}

// stopTimerLocked cancels the pending timer, if any, and invalidates a
// timeout that already fired and is still checking occupancy. Must be
// called with p.mu held.
func (p *Pair) stopTimerLocked() {
	p.generation++
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

// Registry indexes live pairs by canonical key and by member channel id.
// The pair object is owned by the key index; the channel index holds
// back-references to the same pointer.
type Registry struct {
	mu        sync.RWMutex
	pairs     map[string]*Pair
	byChannel map[string]*Pair
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		pairs:     make(map[string]*Pair),
		byChannel: make(map[string]*Pair),
	}
}

// Put indexes p under its key and both channel ids. It fails without
// modifying the registry when either channel already belongs to a pair.
func (r *Registry) Put(p *Pair) error {
	if p.Team1ID == "" || p.Team2ID == "" || p.Team1ID == p.Team2ID {
		return apperr.New(apperr.CodePairConflict, "pair needs two distinct channels",
			apperr.FieldPair(p.Key()))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range []string{p.Team1ID, p.Team2ID} {
		if existing, ok := r.byChannel[id]; ok && existing != p {
			return apperr.New(apperr.CodePairConflict, "channel already belongs to a pair",
				apperr.FieldChannelID(id), apperr.FieldPair(existing.Key()))
		}
	}

	r.pairs[p.Key()] = p
	r.byChannel[p.Team1ID] = p
	r.byChannel[p.Team2ID] = p
	return nil
}

// ByChannel returns the pair channelID belongs to.
func (r *Registry) ByChannel(channelID string) (*Pair, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byChannel[channelID]
	return p, ok
}

// ByKey returns the pair stored under key.
func (r *Registry) ByKey(key string) (*Pair, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.pairs[key]
	return p, ok
}

// Remove drops every index entry that still points at p and reports
// whether p was registered.
func (r *Registry) Remove(p *Pair) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := p.Key()
	if r.pairs[key] != p {
		return false
	}
	delete(r.pairs, key)
	for _, id := range []string{p.Team1ID, p.Team2ID} {
		if r.byChannel[id] == p {
			delete(r.byChannel, id)
		}
	}
	return true
}

// Pairs returns a snapshot of the registered pairs ordered by key.
func (r *Registry) Pairs() []*Pair {
	r.mu.RLock()
	out := make([]*Pair, 0, len(r.pairs))
	for _, p := range r.pairs {
		out = append(out, p)
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b *Pair) int {
		return strings.Compare(a.Key(), b.Key())
	})
	return out
}

// Len returns the number of registered pairs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.pairs)
}
