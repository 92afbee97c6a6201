package engine

// lives is the countdown of remaining mistakes.
type lives struct {
	remaining int
}

func (l *lives) lose() {
	if l.remaining > 0 {
		l.remaining--
	}
}

// critical reports one life left.
func (l lives) critical() bool { return l.remaining == 1 }

func (l lives) exhausted() bool { return l.remaining == 0 }

// ledger banks unused seconds from correct answers.
type ledger struct {
	seconds int
}

func (b *ledger) deposit(seconds int) {
	if seconds > 0 {
		b.seconds += seconds
	}
}

func (b ledger) canAfford(cost int) bool { return b.seconds >= cost }

// redeem spends cost seconds; it reports false and changes nothing when underfunded.
func (b *ledger) redeem(cost int) bool {
	if !b.canAfford(cost) {
		return false
	}
	b.seconds -= cost
	return true
}
