package voice

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/bwmarrin/discordgo"

	apperr "github.com/CS-5/apalto-bot/errors"
)

// fakeClient is an in-memory Discord guild.
type fakeClient struct {
	mu       sync.Mutex
	channels map[string]*Channel
	nextID   int

	// fetchErr, createErr and editErr inject failures per channel id (or,
	// for createErr, per creation attempt starting at 1).
	fetchErr  map[string]error
	createErr map[int]error
	editErr   map[string]error

	// afterFetch, when set, runs after every successful Channel call,
	// outside the client lock.
	afterFetch func(id string)

	creates int
	fetches int
	deleted []string
	reasons []string
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		channels:  make(map[string]*Channel),
		nextID:    1000,
		fetchErr:  make(map[string]error),
		createErr: make(map[int]error),
		editErr:   make(map[string]error),
	}
}

func (f *fakeClient) addCategory(guildID, id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channels[id] = &Channel{ID: id, GuildID: guildID, Type: discordgo.ChannelTypeGuildCategory}
}

func (f *fakeClient) addVoice(guildID, id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channels[id] = &Channel{ID: id, GuildID: guildID, Type: discordgo.ChannelTypeGuildVoice}
}

func (f *fakeClient) setMembers(id string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channels[id].Members = n
}

func (f *fakeClient) remove(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.channels, id)
}

func (f *fakeClient) exists(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.channels[id]
	return ok
}

func (f *fakeClient) overwrites(id string) []*discordgo.PermissionOverwrite {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.channels[id].Overwrites
}

func (f *fakeClient) deletedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := slices.Clone(f.deleted)
	slices.Sort(out)
	return out
}

func (f *fakeClient) Channel(_ context.Context, id string) (*Channel, error) {
	f.mu.Lock()
	f.fetches++
	if err := f.fetchErr[id]; err != nil {
		f.mu.Unlock()
		return nil, err
	}
	ch, ok := f.channels[id]
	if !ok {
		f.mu.Unlock()
		return nil, apperr.New(apperr.CodeChannelNotFound, "unknown channel", apperr.FieldChannelID(id))
	}
	cp := *ch
	cp.Overwrites = slices.Clone(ch.Overwrites)
	hook := f.afterFetch
	f.mu.Unlock()

	if hook != nil {
		hook(id)
	}
	return &cp, nil
}

func (f *fakeClient) CreateVoiceChannel(_ context.Context, guildID string, spec ChannelSpec) (*Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	f.reasons = append(f.reasons, spec.Reason)
	if err := f.createErr[f.creates]; err != nil {
		return nil, err
	}
	f.nextID++
	ch := &Channel{
		ID:         fmt.Sprint(f.nextID),
		GuildID:    guildID,
		ParentID:   spec.ParentID,
		Name:       spec.Name,
		Type:       discordgo.ChannelTypeGuildVoice,
		Overwrites: spec.Overwrites,
	}
	f.channels[ch.ID] = ch
	cp := *ch
	return &cp, nil
}

func (f *fakeClient) DeleteChannel(_ context.Context, id, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reasons = append(f.reasons, reason)
	if _, ok := f.channels[id]; !ok {
		return apperr.New(apperr.CodeChannelNotFound, "unknown channel", apperr.FieldChannelID(id))
	}
	delete(f.channels, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeClient) SetChannelOverwrites(_ context.Context, id string, overwrites []*discordgo.PermissionOverwrite) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.editErr[id]; err != nil {
		return err
	}
	ch, ok := f.channels[id]
	if !ok {
		return apperr.New(apperr.CodeChannelNotFound, "unknown channel", apperr.FieldChannelID(id))
	}
	ch.Overwrites = overwrites
	return nil
}
