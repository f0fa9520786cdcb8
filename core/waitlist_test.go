package core

import "testing"

func TestWaitListTakeAndRemove(t *testing.T) {
	c := NewCoordinator(DefaultCoordinatorOptions())
	mk := func(id ProcID, channel string) *Proc {
		p := newProc(id, "", c)
		p.channel = channel
		return p
	}

	var l waitList
	a1, b, a2 := mk(1, "a"), mk(2, "b"), mk(3, "a")
	l.push(a1)
	l.push(b)
	l.push(a2)

	if got := l.take("a"); got != a1 {
		t.Fatalf("Expected oldest waiter on 'a', got %v", got)
	}
	if got := l.take("missing"); got != nil {
		t.Fatalf("Expected nil for unknown channel, got %v", got)
	}
	if !l.remove(b) {
		t.Fatal("remove(b) should succeed")
	}
	if l.remove(b) {
		t.Fatal("remove(b) twice should fail")
	}
	if l.len() != 1 {
		t.Fatalf("Expected 1 waiter, got %d", l.len())
	}
	if got := l.take("a"); got != a2 {
		t.Fatalf("Expected second waiter on 'a', got %v", got)
	}
	if l.len() != 0 {
		t.Errorf("Expected empty list, got %d", l.len())
	}
}

func TestWaitListEmptyChannelName(t *testing.T) {
	c := NewCoordinator(DefaultCoordinatorOptions())
	p := newProc(1, "", c)

	var l waitList
	l.push(p)
	if got := l.take(""); got != p {
		t.Error("The empty string is a valid channel name")
	}
}
