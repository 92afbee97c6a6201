package engine

// narrativeQueue holds at most one unlock message until the player advances past it.
type narrativeQueue struct {
	pending    string
	questionID string
	unlocked   map[string]struct{}
}

func (n *narrativeQueue) push(questionID, message string) bool {
	if message == "" {
		return false
	}
	n.pending = message
	n.questionID = questionID
	if n.unlocked == nil {
		n.unlocked = make(map[string]struct{})
	}
	n.unlocked[questionID] = struct{}{}
	return true
}

func (n *narrativeQueue) clear() {
	n.pending = ""
	n.questionID = ""
}

func (n narrativeQueue) hasPending() bool { return n.pending != "" }
