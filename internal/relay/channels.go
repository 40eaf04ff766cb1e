package relay

import "github.com/samber/lo"

// channelTable maps channel id to its member identity set. Channels are
// created on first join (open variant) and deleted when their last member
// leaves; an empty member set never lingers. Access goes through the hub
// mutex.
type channelTable struct {
	members map[string]map[string]struct{}
}

func newChannelTable() channelTable {
	return channelTable{members: make(map[string]map[string]struct{})}
}

func (c channelTable) join(channelID, identity string) {
	set, ok := c.members[channelID]
	if !ok {
		set = make(map[string]struct{})
		c.members[channelID] = set
	}
	set[identity] = struct{}{}
}

// leaveAll removes identity from every channel it belongs to, pruning any
// channel left empty.
func (c channelTable) leaveAll(identity string) {
	for channelID, set := range c.members {
		delete(set, identity)
		if len(set) == 0 {
			delete(c.members, channelID)
		}
	}
}

// memberList returns a copy of the member identities; empty for an unknown
// channel, which is not an error.
func (c channelTable) memberList(channelID string) []string {
	set, ok := c.members[channelID]
	if !ok {
		return nil
	}
	return lo.Keys(set)
}

func (c channelTable) contains(channelID string) bool {
	_, ok := c.members[channelID]
	return ok
}

func (c channelTable) size() int { return len(c.members) }
