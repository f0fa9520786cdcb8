package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"
)

func newTestCoordinator(t *testing.T) *Coordinator {
	t.Helper()
	return NewCoordinator(DefaultCoordinatorOptions())
}

func mustRegister(t *testing.T, c *Coordinator, name string) *Proc {
	t.Helper()
	p, err := c.Register(name)
	if err != nil {
		t.Fatalf("Failed to register %q: %v", name, err)
	}
	return p
}

// waitFor polls cond until it holds or the test times out.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("Timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestSendThenReceive(t *testing.T) {
	c := newTestCoordinator(t)
	sender := mustRegister(t, c, "sender")
	receiver := mustRegister(t, c, "receiver")

	sent := make(chan error, 1)
	go func() {
		sent <- c.Send(sender, "ping", StringValue("hello"), IntValue(42))
	}()

	waitFor(t, "sender to park", func() bool { return c.Stats().ParkedSenders == 1 })

	got, err := c.Receive(receiver, "ping")
	if err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	if err := <-sent; err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	want := Values{StringValue("hello"), IntValue(42)}
	if len(got) != len(want) {
		t.Fatalf("Expected %d values, got %d", len(want), len(got))
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Errorf("Value %d: expected %v, got %v", i, want[i], got[i])
		}
	}

	if c.Exchanges() != 1 {
		t.Errorf("Expected 1 exchange, got %d", c.Exchanges())
	}
	if stats := c.Stats(); stats.ParkedSenders != 0 || stats.ParkedReceivers != 0 {
		t.Errorf("Expected empty wait lists, got %+v", stats)
	}
}

func TestReceiveThenSend(t *testing.T) {
	c := newTestCoordinator(t)
	sender := mustRegister(t, c, "sender")
	receiver := mustRegister(t, c, "receiver")

	type result struct {
		values Values
		err    error
	}
	received := make(chan result, 1)
	go func() {
		v, err := c.Receive(receiver, "ping")
		received <- result{v, err}
	}()

	waitFor(t, "receiver to park", func() bool { return c.Stats().ParkedReceivers == 1 })

	if err := c.Send(sender, "ping", StringValue("hello")); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	res := <-received
	if res.err != nil {
		t.Fatalf("Receive failed: %v", res.err)
	}
	if len(res.values) != 1 || !res.values[0].Equal(StringValue("hello")) {
		t.Errorf("Expected [hello], got %v", res.values.Strings())
	}

	if s := sender.Stats(); s.Sends != 1 || s.State != ProcStateIdle {
		t.Errorf("Unexpected sender stats: %+v", s)
	}
	if s := receiver.Stats(); s.Receives != 1 || s.State != ProcStateIdle {
		t.Errorf("Unexpected receiver stats: %+v", s)
	}
}

func TestEmptyPayload(t *testing.T) {
	c := newTestCoordinator(t)
	sender := mustRegister(t, c, "")
	receiver := mustRegister(t, c, "")

	go c.Send(sender, "signal")

	got, err := c.Receive(receiver, "signal")
	if err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Expected no values, got %v", got.Strings())
	}
}

func TestDistinctChannelsDoNotInterfere(t *testing.T) {
	c := newTestCoordinator(t)
	a := mustRegister(t, c, "a")
	b := mustRegister(t, c, "b")
	receiver := mustRegister(t, c, "receiver")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		c.Send(a, "a", IntValue(1))
	}()
	go func() {
		defer wg.Done()
		c.Send(b, "b", IntValue(2))
	}()

	waitFor(t, "both senders to park", func() bool { return c.Stats().ParkedSenders == 2 })

	first, err := c.Receive(receiver, "b")
	if err != nil {
		t.Fatalf("Receive b failed: %v", err)
	}
	second, err := c.Receive(receiver, "a")
	if err != nil {
		t.Fatalf("Receive a failed: %v", err)
	}
	wg.Wait()

	if v, _ := first[0].AsInt(); v != 2 {
		t.Errorf("Expected 2 from channel b, got %v", first[0])
	}
	if v, _ := second[0].AsInt(); v != 1 {
		t.Errorf("Expected 1 from channel a, got %v", second[0])
	}
}

func TestChannelNamesAreCaseSensitive(t *testing.T) {
	c := newTestCoordinator(t)
	sender := mustRegister(t, c, "sender")
	receiver := mustRegister(t, c, "receiver")

	go c.Send(sender, "Ping", StringValue("upper"))
	waitFor(t, "sender to park", func() bool { return c.Stats().ParkedSenders == 1 })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := c.ReceiveContext(ctx, receiver, "ping"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Expected deadline on lower-case channel, got %v", err)
	}

	got, err := c.Receive(receiver, "Ping")
	if err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	if s, _ := got[0].AsString(); s != "upper" {
		t.Errorf("Expected 'upper', got %v", got[0])
	}
}

func TestReceiveBlocksUntilDelayedSend(t *testing.T) {
	c := newTestCoordinator(t)
	sender := mustRegister(t, c, "sender")
	receiver := mustRegister(t, c, "receiver")

	const delay = 50 * time.Millisecond
	go func() {
		time.Sleep(delay)
		c.Send(sender, "late", StringValue("finally"))
	}()

	start := time.Now()
	got, err := c.Receive(receiver, "late")
	if err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed < delay {
		t.Errorf("Receive returned after %v, before the send at %v", elapsed, delay)
	}
	if s, _ := got[0].AsString(); s != "finally" {
		t.Errorf("Expected 'finally', got %v", got[0])
	}
}

func TestValuesAreIndependentCopies(t *testing.T) {
	c := newTestCoordinator(t)
	sender := mustRegister(t, c, "sender")
	receiver := mustRegister(t, c, "receiver")

	buf := []byte("original")

	received := make(chan Values, 1)
	go func() {
		v, _ := c.Receive(receiver, "copy")
		received <- v
	}()
	waitFor(t, "receiver to park", func() bool { return c.Stats().ParkedReceivers == 1 })

	if err := c.Send(sender, "copy", BytesValue(buf)); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	got := <-received

	copy(buf, "mutated!")

	b, ok := got[0].AsBytes()
	if !ok {
		t.Fatalf("Expected bytes value, got %s", got[0].Kind())
	}
	if string(b) != "original" {
		t.Errorf("Receiver copy changed to %q", b)
	}

	// The payload is taken at send time, so changes while parked are not seen either
	parked := []byte("before")
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Send(sender, "copy", BytesValue(parked))
	}()
	waitFor(t, "sender to park", func() bool { return c.Stats().ParkedSenders == 1 })
	copy(parked, "after!")

	got, err := c.Receive(receiver, "copy")
	if err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	<-done
	if b, _ := got[0].AsBytes(); string(b) != "before" {
		t.Errorf("Expected 'before', got %q", b)
	}
}

func TestSingleWakePerSend(t *testing.T) {
	c := newTestCoordinator(t)
	sender := mustRegister(t, c, "sender")

	var woken int32
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		r := mustRegister(t, c, fmt.Sprintf("receiver-%d", i))
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Receive(r, "c"); err == nil {
				atomic.AddInt32(&woken, 1)
			}
		}()
	}

	waitFor(t, "receivers to park", func() bool { return c.Stats().ParkedReceivers == 2 })

	if err := c.Send(sender, "c", IntValue(1)); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	waitFor(t, "one receiver to wake", func() bool { return atomic.LoadInt32(&woken) == 1 })

	time.Sleep(20 * time.Millisecond)
	if n := atomic.LoadInt32(&woken); n != 1 {
		t.Fatalf("Expected exactly 1 receiver woken, got %d", n)
	}
	if n := c.Stats().ParkedReceivers; n != 1 {
		t.Fatalf("Expected 1 receiver still parked, got %d", n)
	}

	if err := c.Send(sender, "c", IntValue(2)); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	wg.Wait()
	if n := atomic.LoadInt32(&woken); n != 2 {
		t.Errorf("Expected 2 receivers woken, got %d", n)
	}
}

func TestSingleWakePerReceive(t *testing.T) {
	c := newTestCoordinator(t)
	receiver := mustRegister(t, c, "receiver")

	var released int32
	for i := 0; i < 3; i++ {
		i := i
		s := mustRegister(t, c, fmt.Sprintf("sender-%d", i))
		go func() {
			if err := c.Send(s, "c", IntValue(int64(i))); err == nil {
				atomic.AddInt32(&released, 1)
			}
		}()
	}
	waitFor(t, "senders to park", func() bool { return c.Stats().ParkedSenders == 3 })

	if _, err := c.Receive(receiver, "c"); err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	waitFor(t, "one sender to return", func() bool { return atomic.LoadInt32(&released) == 1 })
	time.Sleep(20 * time.Millisecond)

	if n := atomic.LoadInt32(&released); n != 1 {
		t.Errorf("Expected exactly 1 sender released, got %d", n)
	}
	if n := c.Stats().ParkedSenders; n != 2 {
		t.Errorf("Expected 2 senders still parked, got %d", n)
	}

	for i := 0; i < 2; i++ {
		c.Receive(receiver, "c")
	}
	waitFor(t, "all senders to return", func() bool { return atomic.LoadInt32(&released) == 3 })
}

func TestWaitersMatchInArrivalOrder(t *testing.T) {
	c := newTestCoordinator(t)
	receiver := mustRegister(t, c, "receiver")

	for i := 0; i < 3; i++ {
		s := mustRegister(t, c, fmt.Sprintf("sender-%d", i))
		go c.Send(s, "fifo", IntValue(int64(i)))
		waitFor(t, "sender to park", func() bool { return c.Stats().ParkedSenders == i+1 })
	}

	for i := 0; i < 3; i++ {
		got, err := c.Receive(receiver, "fifo")
		if err != nil {
			t.Fatalf("Receive failed: %v", err)
		}
		if v, _ := got[0].AsInt(); v != int64(i) {
			t.Errorf("Receive %d: expected %d, got %v", i, i, got[0])
		}
	}
}

func TestReceiveContextDeadline(t *testing.T) {
	c := newTestCoordinator(t)
	receiver := mustRegister(t, c, "receiver")
	sender := mustRegister(t, c, "sender")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.ReceiveContext(ctx, receiver, "nobody")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Expected DeadlineExceeded, got %v", err)
	}
	if n := c.Stats().ParkedReceivers; n != 0 {
		t.Fatalf("Expected receiver to leave the wait list, %d still parked", n)
	}
	if s := receiver.Stats(); s.State != ProcStateIdle || s.Receives != 0 {
		t.Errorf("Unexpected receiver stats after timeout: %+v", s)
	}

	// The proc is usable again after a timeout
	go c.Send(sender, "nobody", StringValue("late"))
	got, err := c.Receive(receiver, "nobody")
	if err != nil {
		t.Fatalf("Receive after timeout failed: %v", err)
	}
	if s, _ := got[0].AsString(); s != "late" {
		t.Errorf("Expected 'late', got %v", got[0])
	}
}

func TestSendContextCancel(t *testing.T) {
	c := newTestCoordinator(t)
	sender := mustRegister(t, c, "sender")
	receiver := mustRegister(t, c, "receiver")

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- c.SendContext(ctx, sender, "cancelled", StringValue("dropped"))
	}()
	waitFor(t, "sender to park", func() bool { return c.Stats().ParkedSenders == 1 })

	cancel()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected Canceled, got %v", err)
	}
	if n := c.Stats().ParkedSenders; n != 0 {
		t.Fatalf("Expected empty sender list, got %d", n)
	}

	// The cancelled payload must not be delivered
	go c.Send(sender, "cancelled", StringValue("kept"))
	got, err := c.Receive(receiver, "cancelled")
	if err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	if s, _ := got[0].AsString(); s != "kept" {
		t.Errorf("Expected 'kept', got %v", got[0])
	}
}

func TestProtocolMisuse(t *testing.T) {
	c := newTestCoordinator(t)
	other := newTestCoordinator(t)

	if err := c.Send(nil, "x"); !errors.Is(err, ErrInvalidProc) {
		t.Errorf("Expected ErrInvalidProc for nil proc, got %v", err)
	}

	foreign := mustRegister(t, other, "foreign")
	if _, err := c.Receive(foreign, "x"); !errors.Is(err, ErrInvalidProc) {
		t.Errorf("Expected ErrInvalidProc for foreign proc, got %v", err)
	}

	p := mustRegister(t, c, "gone")
	if err := c.Deregister(p); err != nil {
		t.Fatalf("Deregister failed: %v", err)
	}
	if err := c.Send(p, "x", IntValue(1)); !errors.Is(err, ErrInvalidProc) {
		t.Errorf("Expected ErrInvalidProc for terminated proc, got %v", err)
	}
	if err := c.Deregister(p); !errors.Is(err, ErrInvalidProc) {
		t.Errorf("Expected ErrInvalidProc for double deregister, got %v", err)
	}

	q := mustRegister(t, c, "shared")
	go c.Receive(q, "first")
	waitFor(t, "proc to park", func() bool { return c.Stats().ParkedReceivers == 1 })
	if err := c.Send(q, "second", IntValue(1)); !errors.Is(err, ErrAlreadyParked) {
		t.Errorf("Expected ErrAlreadyParked, got %v", err)
	}
}

func TestDeregisterParkedProc(t *testing.T) {
	c := newTestCoordinator(t)
	p := mustRegister(t, c, "parked")

	errCh := make(chan error, 1)
	go func() {
		_, err := c.Receive(p, "never")
		errCh <- err
	}()
	waitFor(t, "proc to park", func() bool { return c.Stats().ParkedReceivers == 1 })

	if err := c.Deregister(p); err != nil {
		t.Fatalf("Deregister failed: %v", err)
	}
	if err := <-errCh; !errors.Is(err, ErrInvalidProc) {
		t.Errorf("Expected parked Receive to fail with ErrInvalidProc, got %v", err)
	}
	if stats := c.Stats(); stats.ParkedReceivers != 0 || stats.Live != 0 {
		t.Errorf("Expected no parked or live procs, got %+v", stats)
	}
}

func TestProcsSnapshot(t *testing.T) {
	c := newTestCoordinator(t)
	idle := mustRegister(t, c, "idle")
	parked := mustRegister(t, c, "parked")

	go c.Send(parked, "snap", IntValue(7))
	waitFor(t, "proc to park", func() bool { return c.Stats().ParkedSenders == 1 })

	procs := c.Procs()
	if len(procs) != 2 {
		t.Fatalf("Expected 2 procs, got %d", len(procs))
	}
	if procs[0].ID != idle.ID() || procs[0].State != ProcStateIdle {
		t.Errorf("Unexpected idle proc stats: %+v", procs[0])
	}
	if procs[1].State != ProcStateParked || procs[1].Channel != "snap" || procs[1].Direction != DirectionSend {
		t.Errorf("Unexpected parked proc stats: %+v", procs[1])
	}

	c.Receive(idle, "snap")
}

// TestConcurrentExchanges runs groups of ping/pong pairs over a small set
// of shared channel names. Within a group any pinger may match any ponger.
func TestConcurrentExchanges(t *testing.T) {
	const (
		groups        = 3
		pairsPerGroup = 4
		rounds        = 200
	)

	c := newTestCoordinator(t)
	var seen sync.Map
	var received int64

	record := func(vs Values) error {
		if len(vs) != 1 {
			return fmt.Errorf("expected 1 value, got %d", len(vs))
		}
		id, ok := vs[0].AsString()
		if !ok {
			return fmt.Errorf("expected string payload, got %s", vs[0].Kind())
		}
		if _, dup := seen.LoadOrStore(id, true); dup {
			return fmt.Errorf("payload %s delivered twice", id)
		}
		atomic.AddInt64(&received, 1)
		return nil
	}

	g, ctx := errgroup.WithContext(context.Background())
	for k := 0; k < groups; k++ {
		ping := fmt.Sprintf("ping-%d", k)
		pong := fmt.Sprintf("pong-%d", k)
		for i := 0; i < pairsPerGroup; i++ {
			pinger := mustRegister(t, c, fmt.Sprintf("pinger-%d-%d", k, i))
			ponger := mustRegister(t, c, fmt.Sprintf("ponger-%d-%d", k, i))

			g.Go(func() error {
				for r := 0; r < rounds; r++ {
					id := fmt.Sprintf("%s/%d", pinger.Name(), r)
					if err := c.SendContext(ctx, pinger, ping, StringValue(id)); err != nil {
						return err
					}
					vs, err := c.ReceiveContext(ctx, pinger, pong)
					if err != nil {
						return err
					}
					if err := record(vs); err != nil {
						return err
					}
				}
				return nil
			})
			g.Go(func() error {
				for r := 0; r < rounds; r++ {
					vs, err := c.ReceiveContext(ctx, ponger, ping)
					if err != nil {
						return err
					}
					if err := record(vs); err != nil {
						return err
					}
					id := fmt.Sprintf("%s/%d", ponger.Name(), r)
					if err := c.SendContext(ctx, ponger, pong, StringValue(id)); err != nil {
						return err
					}
				}
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		t.Fatalf("Exchange failed: %v", err)
	}

	total := int64(groups * pairsPerGroup * 2 * rounds)
	if received != total {
		t.Errorf("Expected %d receives, got %d", total, received)
	}
	if c.Exchanges() != uint64(total) {
		t.Errorf("Expected %d exchanges, got %d", total, c.Exchanges())
	}

	var sends, receives uint64
	for _, s := range c.Procs() {
		sends += s.Sends
		receives += s.Receives
	}
	if sends != receives || sends != uint64(total) {
		t.Errorf("Expected sends == receives == %d, got %d and %d", total, sends, receives)
	}
}
