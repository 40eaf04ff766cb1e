package relay

// presenceTable maps identity to its current session. Not safe for concurrent
// use on its own; all access goes through the hub mutex (single-writer
// discipline).
type presenceTable struct {
	byIdentity map[string]*Session
}

func newPresenceTable() presenceTable {
	return presenceTable{byIdentity: make(map[string]*Session)}
}

// register binds identity to s, last-registration-wins. Returns the
// superseded session when a different live session held the identity.
func (p presenceTable) register(identity string, s *Session) *Session {
	prior := p.byIdentity[identity]
	p.byIdentity[identity] = s
	if prior == s {
		return nil
	}
	return prior
}

func (p presenceTable) lookup(identity string) (*Session, bool) {
	s, ok := p.byIdentity[identity]
	return s, ok
}

// removeSession deletes the entry whose value is s, if any. Idempotent; a
// session superseded by a re-registration no longer owns its identity and is
// left alone.
func (p presenceTable) removeSession(s *Session) (string, bool) {
	for identity, cur := range p.byIdentity {
		if cur == s {
			delete(p.byIdentity, identity)
			return identity, true
		}
	}
	return "", false
}

func (p presenceTable) size() int { return len(p.byIdentity) }
