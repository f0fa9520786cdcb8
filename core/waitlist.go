package core

// waitList holds parked Procs in arrival order. It is only touched with
// the Coordinator lock held.
type waitList struct {
	procs []*Proc
}

// push appends p at the tail.
func (l *waitList) push(p *Proc) {
	l.procs = append(l.procs, p)
}

// take removes and returns the oldest Proc parked on channel, or nil.
func (l *waitList) take(channel string) *Proc {
	for i, p := range l.procs {
		if p.channel == channel {
			l.removeAt(i)
			return p
		}
	}
	return nil
}

// remove unlinks p if present.
func (l *waitList) remove(p *Proc) bool {
	for i, q := range l.procs {
		if q == p {
			l.removeAt(i)
			return true
		}
	}
	return false
}

func (l *waitList) removeAt(i int) {
	copy(l.procs[i:], l.procs[i+1:])
	l.procs[len(l.procs)-1] = nil
	l.procs = l.procs[:len(l.procs)-1]
}

func (l *waitList) len() int {
	return len(l.procs)
}
