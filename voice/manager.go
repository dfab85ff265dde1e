// Package voice owns the TIME 1 / TIME 2 voice channel pairs: creating
// them, tracking their occupancy and deleting them once they have been
// empty for long enough.
package voice

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/sync/errgroup"

	"github.com/CS-5/apalto-bot/clock"
	apperr "github.com/CS-5/apalto-bot/errors"
)

const (
	// MinEmptyDuration is the shortest idle window a manager accepts.
	MinEmptyDuration = time.Minute
	// DefaultEmptyDuration is used when no idle window is configured.
	DefaultEmptyDuration = 5 * time.Minute

	// retryDelay is how long an idle check waits after Discord failed to
	// answer before it looks again.
	retryDelay = time.Minute

	// callTimeout bounds the Discord calls made from timer callbacks,
	// which have no caller context.
	callTimeout = 30 * time.Second

	creationHint = "check that the configured role ids exist and that the bot has Manage Channels on the category"
)

var labelPool = []string{"🔥", "🧯", "⚡", "🍀", "🎯", "🛡️", "🥇", "🥈"}

// TeamName returns the display name of team n's channel.
func TeamName(label string, n int) string {
	return fmt.Sprintf("%s ・ TIME %d", label, n)
}

// Options configures a Manager. Client is required.
type Options struct {
	Client        Client
	Registry      *Registry
	Clock         clock.Clock
	EmptyDuration time.Duration
	Store         *Store
	Logger        *slog.Logger

	// Intn returns a number in [0, n). Used to pick channel labels.
	Intn func(n int) int
}

// Manager creates pairs and drives each pair's deletion timer from the
// occupancy it observes on Discord.
type Manager struct {
	client        Client
	registry      *Registry
	clock         clock.Clock
	emptyDuration time.Duration
	store         *Store
	log           *slog.Logger
	intn          func(int) int
}

// NewManager returns a manager. Zero options get defaults: a fresh
// registry, the real clock, DefaultEmptyDuration and slog.Default().
// Durations below MinEmptyDuration are raised to it.
func NewManager(opts Options) *Manager {
	m := &Manager{
		client:        opts.Client,
		registry:      opts.Registry,
		clock:         opts.Clock,
		emptyDuration: opts.EmptyDuration,
		store:         opts.Store,
		log:           opts.Logger,
		intn:          opts.Intn,
	}
	if m.registry == nil {
		m.registry = NewRegistry()
	}
	if m.clock == nil {
		m.clock = clock.Real()
	}
	if m.emptyDuration == 0 {
		m.emptyDuration = DefaultEmptyDuration
	}
	if m.emptyDuration < MinEmptyDuration {
		m.emptyDuration = MinEmptyDuration
	}
	if m.log == nil {
		m.log = slog.Default()
	}
	m.log = m.log.With("component", "voice")
	if m.intn == nil {
		m.intn = rand.IntN
	}
	return m
}

// Registry returns the registry the manager maintains.
func (m *Manager) Registry() *Registry { return m.registry }

// EmptyDuration returns the idle window applied to every pair.
func (m *Manager) EmptyDuration() time.Duration { return m.emptyDuration }

// CreateRequest asks for a new pair inside CategoryID.
type CreateRequest struct {
	GuildID    string
	CategoryID string
	CreatorID  string
	Overwrites []*discordgo.PermissionOverwrite
}

// CreatePair validates the category, creates both team channels and
// registers the pair. Either both channels exist and the pair is tracked,
// or an error is returned and nothing is left behind: if the second
// channel cannot be created the first one is deleted again.
func (m *Manager) CreatePair(ctx context.Context, req CreateRequest) (*Pair, error) {
	fields := []apperr.Attr{apperr.FieldGuildID(req.GuildID), apperr.FieldChannelID(req.CategoryID)}

	category, err := m.client.Channel(ctx, req.CategoryID)
	switch {
	case apperr.IsNotFound(err):
		return nil, apperr.New(apperr.CodeInvalidCategory, "category not found", fields...)
	case err != nil:
		return nil, apperr.Wrap(err, apperr.CodeUpstreamFailure, "fetching category", fields...)
	case category.GuildID != req.GuildID:
		return nil, apperr.New(apperr.CodeInvalidCategory,
			fmt.Sprintf("category belongs to guild %s", category.GuildID), fields...)
	case category.Type != discordgo.ChannelTypeGuildCategory:
		return nil, apperr.New(apperr.CodeInvalidCategory, "channel is not a category", fields...)
	}

	label1, label2 := m.pickLabels()

	team1, err := m.client.CreateVoiceChannel(ctx, req.GuildID, ChannelSpec{
		Name:       TeamName(label1, 1),
		ParentID:   category.ID,
		Overwrites: req.Overwrites,
		Reason:     "apalto: criação TIME 1",
	})
	if err != nil {
		m.log.Error("creating team channel failed", "team", 1, "guild_id", req.GuildID, "error", err)
		return nil, apperr.Wrap(err, apperr.CodeChannelCreationFailed, creationHint, fields...)
	}

	team2, err := m.client.CreateVoiceChannel(ctx, req.GuildID, ChannelSpec{
		Name:       TeamName(label2, 2),
		ParentID:   category.ID,
		Overwrites: req.Overwrites,
		Reason:     "apalto: criação TIME 2",
	})
	if err != nil {
		m.log.Error("creating team channel failed", "team", 2, "guild_id", req.GuildID, "error", err)
		m.rollback(ctx, req.GuildID, team1.ID)
		return nil, apperr.Wrap(err, apperr.CodeChannelCreationFailed, creationHint, fields...)
	}

	p := &Pair{
		GuildID:    req.GuildID,
		Team1ID:    team1.ID,
		Team2ID:    team2.ID,
		CategoryID: category.ID,
		CreatorID:  req.CreatorID,
		CreatedAt:  m.clock.Now(),
	}
	if err := m.registry.Put(p); err != nil {
		m.log.Error("registering pair failed", "pair", p.Key(), "guild_id", req.GuildID, "error", err)
		m.rollback(ctx, req.GuildID, team1.ID, team2.ID)
		return nil, err
	}
	m.persist()

	m.log.Info("pair created", "pair", p.Key(), "guild_id", p.GuildID, "creator_id", p.CreatorID)

	m.Reconcile(ctx, p)
	return p, nil
}

// rollback deletes team channels created for a pair that could not be
// completed. channelIDs are in team order. Failures are logged.
func (m *Manager) rollback(ctx context.Context, guildID string, channelIDs ...string) {
	for i, id := range channelIDs {
		err := m.client.DeleteChannel(ctx, id, fmt.Sprintf("apalto: rollback TIME %d", i+1))
		if err != nil && !apperr.IsNotFound(err) {
			m.log.Error("rollback of team channel failed, delete it manually",
				"channel_id", id, "guild_id", guildID, "error", err)
		}
	}
}

func (m *Manager) pickLabels() (string, string) {
	a := m.intn(len(labelPool))
	b := m.intn(len(labelPool))
	for b == a {
		b = m.intn(len(labelPool))
	}
	return labelPool[a], labelPool[b]
}

// Reconcile re-reads both channels' occupancy and updates the pair's
// deletion timer. A pair whose channel disappeared is dropped from the
// registry. Failures are logged, never returned: reconciliation runs from
// event handlers and timers.
func (m *Manager) Reconcile(ctx context.Context, p *Pair) {
	if p.State() == StateDeleted {
		return
	}

	team1, team2, err := m.fetchPair(ctx, p)
	if err != nil {
		if apperr.IsNotFound(err) {
			m.dropOrphan(p, err)
			return
		}
		m.log.Warn("reconcile: fetching pair channels failed", "pair", p.Key(), "error", err)
		return
	}

	m.observe(p, team1.Members == 0 && team2.Members == 0)
}

// observe applies one occupancy observation. Any pending timer is
// replaced, so at most one timer exists per pair.
func (m *Manager) observe(p *Pair, bothEmpty bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.deleted {
		return
	}
	p.stopTimerLocked()

	if !bothEmpty {
		if !p.emptySince.IsZero() {
			m.log.Debug("pair occupied again", "pair", p.Key())
		}
		p.emptySince = time.Time{}
		return
	}

	now := m.clock.Now()
	if p.emptySince.IsZero() {
		p.emptySince = now
	}
	wait := max(0, p.emptySince.Add(m.emptyDuration).Sub(now))
	m.scheduleLocked(p, wait)

	m.log.Debug("pair draining", "pair", p.Key(), "delete_in", wait)
}

// scheduleLocked arms the idle timer. Must be called with p.mu held and
// no timer pending.
func (m *Manager) scheduleLocked(p *Pair, wait time.Duration) {
	p.generation++
	generation := p.generation
	p.timer = m.clock.AfterFunc(wait, func() {
		m.onIdleTimeout(p, generation)
	})
}

// onIdleTimeout runs when a pair's idle window elapsed. generation
// identifies the timer; a timer replaced in the meantime does nothing.
func (m *Manager) onIdleTimeout(p *Pair, generation uint64) {
	if !p.isCurrent(generation) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	team1, team2, err := m.fetchPair(ctx, p)
	if err != nil {
		if apperr.IsNotFound(err) {
			m.dropOrphan(p, err)
			return
		}
		m.log.Warn("idle check: fetching pair channels failed, retrying",
			"pair", p.Key(), "retry_in", retryDelay, "error", err)
		p.mu.Lock()
		if p.generation == generation && !p.deleted {
			m.scheduleLocked(p, retryDelay)
		}
		p.mu.Unlock()
		return
	}

	p.mu.Lock()
	if p.generation != generation || p.deleted || p.emptySince.IsZero() {
		p.mu.Unlock()
		return
	}
	if team1.Members > 0 || team2.Members > 0 {
		p.timer = nil
		p.emptySince = time.Time{}
		p.mu.Unlock()
		m.log.Debug("idle check: pair occupied, keeping it", "pair", p.Key())
		return
	}
	p.deleted = true
	p.timer = nil
	p.mu.Unlock()

	m.registry.Remove(p)
	m.persist()
	m.deleteChannels(ctx, p)

	m.log.Info("idle pair deleted", "pair", p.Key(), "guild_id", p.GuildID)
}

func (p *Pair) isCurrent(generation uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.generation == generation && !p.deleted
}

// deleteChannels removes both channels from Discord. Failures are logged;
// the pair has already left the registry.
func (m *Manager) deleteChannels(ctx context.Context, p *Pair) {
	var g errgroup.Group
	for _, id := range []string{p.Team1ID, p.Team2ID} {
		g.Go(func() error {
			err := m.client.DeleteChannel(ctx, id, "apalto: vazio")
			if err != nil && !apperr.IsNotFound(err) {
				return apperr.Wrap(err, apperr.CodeUpstreamFailure, "deleting idle channel",
					apperr.FieldChannelID(id))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		m.log.Warn("deleting idle pair channels failed", "pair", p.Key(), "error", err)
	}
}

// fetchPair reads both channels. A channel that moved to another guild is
// reported as not found.
func (m *Manager) fetchPair(ctx context.Context, p *Pair) (*Channel, *Channel, error) {
	fetch := func(id string) (*Channel, error) {
		ch, err := m.client.Channel(ctx, id)
		if err != nil {
			return nil, err
		}
		if ch.GuildID != p.GuildID {
			return nil, apperr.New(apperr.CodeChannelNotFound, "channel is not in the pair's guild",
				apperr.FieldChannelID(id), apperr.FieldGuildID(p.GuildID))
		}
		return ch, nil
	}

	team1, err := fetch(p.Team1ID)
	if err != nil {
		return nil, nil, err
	}
	team2, err := fetch(p.Team2ID)
	if err != nil {
		return nil, nil, err
	}
	return team1, team2, nil
}

// dropOrphan removes a pair whose channels no longer exist.
func (m *Manager) dropOrphan(p *Pair, cause error) {
	p.mu.Lock()
	if p.deleted {
		p.mu.Unlock()
		return
	}
	p.deleted = true
	p.stopTimerLocked()
	p.mu.Unlock()

	if m.registry.Remove(p) {
		m.persist()
		m.log.Warn("dropping orphaned pair", "pair", p.Key(), "guild_id", p.GuildID, "cause", cause)
	}
}

// Restore registers the pairs saved by a previous process and reconciles
// them, so pairs left empty get a fresh idle window and pairs whose
// channels are gone are dropped. Pairs already registered are skipped,
// which makes Restore safe to call on every gateway Ready. It returns the
// number of pairs tracked afterwards.
func (m *Manager) Restore(ctx context.Context) (int, error) {
	data, err := m.store.Load()
	if err != nil {
		return m.registry.Len(), err
	}

	var restored []*Pair
	for _, rec := range data.Pairs {
		p := rec.pair()
		if _, ok := m.registry.ByKey(p.Key()); ok {
			continue
		}
		if err := m.registry.Put(p); err != nil {
			m.log.Warn("skipping persisted pair", "pair", p.Key(), "error", err)
			continue
		}
		restored = append(restored, p)
	}

	for _, p := range restored {
		m.resume(ctx, p)
	}
	if len(restored) > 0 {
		m.persist()
		m.log.Info("restored pairs", "restored", len(restored), "tracked", m.registry.Len())
	}
	return m.registry.Len(), nil
}

// resume reconciles a restored pair. When occupancy cannot be read yet,
// typically because the gateway has not delivered the guild, the idle
// window starts anyway: the timeout reads both channels again before
// deleting anything.
func (m *Manager) resume(ctx context.Context, p *Pair) {
	team1, team2, err := m.fetchPair(ctx, p)
	switch {
	case apperr.IsNotFound(err):
		m.dropOrphan(p, err)
	case err != nil:
		m.log.Warn("restore: occupancy unknown, starting idle window", "pair", p.Key(), "error", err)
		m.observe(p, true)
	default:
		m.observe(p, team1.Members == 0 && team2.Members == 0)
	}
}

// Shutdown cancels every pending timer. Channels stay on Discord and are
// picked up again by Restore.
func (m *Manager) Shutdown() {
	for _, p := range m.registry.Pairs() {
		p.mu.Lock()
		p.stopTimerLocked()
		p.mu.Unlock()
	}
}

func (m *Manager) persist() {
	if m.store == nil {
		return
	}
	var saved int
	err := m.store.Save(func() *PersistentData {
		pairs := m.registry.Pairs()
		data := &PersistentData{Pairs: make([]PairRecord, 0, len(pairs))}
		for _, p := range pairs {
			data.Pairs = append(data.Pairs, recordOf(p))
		}
		saved = len(data.Pairs)
		return data
	})
	if err != nil {
		m.log.Error("saving pair state failed", "path", m.store.Path(), "error", err)
		return
	}
	m.log.Debug("saved pair state", "pairs", saved, "path", m.store.Path())
}
