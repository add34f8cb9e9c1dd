package qa

// Vote is a user's stance on an item.
type Vote string

const (
	VoteUp   Vote = "upvote"
	VoteDown Vote = "downvote"
	VoteNone Vote = "none"
)

// VoteOf returns the user's current vote by membership lookup.
func VoteOf(upvotedBy, downvotedBy []string, userID string) Vote {
	if contains(upvotedBy, userID) {
		return VoteUp
	}
	if contains(downvotedBy, userID) {
		return VoteDown
	}
	return VoteNone
}

// Reconcile computes the vote-set transition for one user action. The user
// is first removed from both sets, then added to the requested set unless
// the request matches their current vote, in which case the removal stands
// and the vote is retracted. The returned sets never contain the user in
// both, and the count is always |up| - |down|. Inputs are not mutated, so
// the same function serves the local optimistic path and the authoritative
// recomputation inside the remote transaction.
func Reconcile(upvotedBy, downvotedBy []string, userID string, voteType Vote) (up, down []string, voteCount int) {
	current := VoteOf(upvotedBy, downvotedBy, userID)

	up = without(upvotedBy, userID)
	down = without(downvotedBy, userID)

	if voteType == VoteUp && current != VoteUp {
		up = append(up, userID)
	} else if voteType == VoteDown && current != VoteDown {
		down = append(down, userID)
	}

	return up, down, len(up) - len(down)
}

func contains(ids []string, id string) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

func without(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, candidate := range ids {
		if candidate != id {
			out = append(out, candidate)
		}
	}
	return out
}
