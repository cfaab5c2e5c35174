package trainsignal

// Capacity of the per kind dedupe ledgers.
const LedgerCapacity = 50

type ledgerSlot struct {
	id       string
	occupied bool
}

// Fixed capacity ring of recently announced record IDs. Once full,
// each insert overwrites the oldest slot, so an ID becomes eligible
// again after capacity other inserts.
type Ledger struct {
	slots []ledgerSlot
	next  int
}

func NewLedger(capacity int) *Ledger {
	if capacity <= 0 {
		capacity = LedgerCapacity
	}
	return &Ledger{slots: make([]ledgerSlot, capacity)}
}

func (l *Ledger) Insert(id string) {
	l.slots[l.next] = ledgerSlot{id: id, occupied: true}
	l.next = (l.next + 1) % len(l.slots)
}

func (l *Ledger) Contains(id string) bool {
	for _, slot := range l.slots {
		if slot.occupied && slot.id == id {
			return true
		}
	}
	return false
}

// Number of occupied slots.
func (l *Ledger) Len() int {
	n := 0
	for _, slot := range l.slots {
		if slot.occupied {
			n++
		}
	}
	return n
}

func (l *Ledger) Capacity() int {
	return len(l.slots)
}
