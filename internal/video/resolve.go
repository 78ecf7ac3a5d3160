// Package video owns the character's visible side of the conversation: it
// maps the conversational state to a clip, keeps exactly one clip playing,
// degrades through the fallback chain when clips fail to load, and feeds the
// "character is speaking" flag back into the session.
package video

import "github.com/visagelabs/visage/internal/session"

// Resolve walks the fallback chain from state until it reaches a state whose
// clip has not failed. Each state is visited at most once; when the walk
// detects a cycle, or runs out of chain while still on a failed state, it
// resolves to [session.StateIdle], the safe terminal default. The second
// return value reports cycle detection, which indicates a chain
// misconfiguration worth logging.
func Resolve(state session.State, failed map[session.State]bool, chain map[session.State]session.State) (session.State, bool) {
	visited := make(map[session.State]bool, len(chain))
	cur := state
	for failed[cur] {
		if visited[cur] {
			return session.StateIdle, true
		}
		visited[cur] = true
		next, ok := chain[cur]
		if !ok {
			// Failed terminal; idle is the only state allowed to show as
			// failed, so degrade all the way.
			return session.StateIdle, false
		}
		cur = next
	}
	return cur, false
}
