package voice

import "context"

// HandleVoiceStateUpdate reconciles the pairs touched by a member moving
// from channel before to channel after. Either id may be empty. A pair is
// reconciled at most once per event even when the member moved between
// its two channels. Events on untracked channels cost two map lookups.
func (m *Manager) HandleVoiceStateUpdate(ctx context.Context, before, after string) {
	var first *Pair
	for _, id := range []string{before, after} {
		if id == "" {
			continue
		}
		p, ok := m.registry.ByChannel(id)
		if !ok || p == first {
			continue
		}
		if first == nil {
			first = p
		}
		m.Reconcile(ctx, p)
	}
}
