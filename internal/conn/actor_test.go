package conn_test

import (
	"errors"
	"testing"
	"time"

	"github.com/toeirei/wireline/internal/conn"
	"github.com/toeirei/wireline/internal/testutil"
)

const eventTimeout = 5 * time.Second

// nextEvent pulls one event or fails the test.
func nextEvent(t *testing.T, a *conn.Actor) conn.Event {
	t.Helper()
	select {
	case ev, ok := <-a.Events():
		if !ok {
			t.Fatal("event channel closed unexpectedly")
		}
		return ev
	case <-time.After(eventTimeout):
		t.Fatal("timed out waiting for event")
	}
	return nil
}

// collectUntil pulls events until pred matches, returning everything seen
// including the match.
func collectUntil(t *testing.T, a *conn.Actor, pred func(conn.Event) bool) []conn.Event {
	t.Helper()
	var got []conn.Event
	deadline := time.After(eventTimeout)
	for {
		select {
		case ev, ok := <-a.Events():
			if !ok {
				t.Fatalf("event channel closed after %d events: %v", len(got), got)
			}
			got = append(got, ev)
			if pred(ev) {
				return got
			}
		case <-deadline:
			t.Fatalf("timed out after %d events: %v", len(got), got)
		}
	}
}

func isClosed(ev conn.Event) bool {
	_, ok := ev.(conn.ClosedEvent)
	return ok
}

func stateSequence(events []conn.Event) []conn.Status {
	var out []conn.Status
	for _, ev := range events {
		if sc, ok := ev.(conn.StateChangedEvent); ok {
			out = append(out, sc.State)
		}
	}
	return out
}

func expectConnected(t *testing.T, a *conn.Actor) {
	t.Helper()
	collectUntil(t, a, func(ev conn.Event) bool {
		sc, ok := ev.(conn.StateChangedEvent)
		return ok && sc.State == conn.StatusConnected
	})
}

func TestActorConnectDisconnectLifecycle(t *testing.T) {
	fc := testutil.NewFakeConn()
	a := conn.NewActor(fc)
	defer a.Close()

	a.Connect()
	a.Disconnect()

	events := collectUntil(t, a, isClosed)
	states := stateSequence(events)

	want := []conn.Status{conn.StatusConnecting, conn.StatusConnected, conn.StatusDisconnected}
	if len(states) != len(want) {
		t.Fatalf("state sequence %v, want %v", states, want)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Fatalf("state sequence %v, want %v", states, want)
		}
	}
	for _, ev := range events {
		if e, ok := ev.(conn.ErrorEvent); ok {
			t.Fatalf("unexpected error event in clean lifecycle: %v", e.Err)
		}
	}
}

func TestActorConnectFailure(t *testing.T) {
	fc := testutil.NewFakeConn()
	fc.ConnectErr = errors.New("wire cut")
	a := conn.NewActor(fc)
	defer a.Close()

	a.Connect()
	events := collectUntil(t, a, isClosed)

	var sawError bool
	for _, ev := range events {
		if _, ok := ev.(conn.ErrorEvent); ok {
			sawError = true
		}
		if sc, ok := ev.(conn.StateChangedEvent); ok && sc.State == conn.StatusConnected {
			t.Fatal("reached CONNECTED despite connect failure")
		}
	}
	if !sawError {
		t.Fatalf("expected an error event, got %v", events)
	}
	last := events[len(events)-1]
	if !isClosed(last) {
		t.Fatalf("expected Closed last, got %T", last)
	}
}

func TestActorEchoRoundTripCounters(t *testing.T) {
	fc := testutil.NewFakeConn()
	fc.Echo = true
	a := conn.NewActor(fc)
	defer a.Close()

	a.Connect()
	expectConnected(t, a)

	payload := []byte("ping")
	a.Send(payload)

	events := collectUntil(t, a, func(ev conn.Event) bool {
		_, ok := ev.(conn.DataEvent)
		return ok
	})
	data := events[len(events)-1].(conn.DataEvent)
	if string(data.Bytes) != "ping" {
		t.Fatalf("echoed %q, want %q", data.Bytes, "ping")
	}

	if got := fc.BytesSent(); got != uint64(len(payload)) {
		t.Errorf("BytesSent = %d, want %d", got, len(payload))
	}
	if got := fc.BytesReceived(); got != uint64(len(payload)) {
		t.Errorf("BytesReceived = %d, want %d", got, len(payload))
	}
	if string(fc.SentBytes()) != "ping" {
		t.Errorf("transport saw %q", fc.SentBytes())
	}
}

func TestActorCountersSurviveReconnect(t *testing.T) {
	fc := testutil.NewFakeConn()
	fc.Echo = true
	a := conn.NewActor(fc)
	defer a.Close()

	a.Connect()
	expectConnected(t, a)
	a.Send([]byte("one!"))
	collectUntil(t, a, func(ev conn.Event) bool { _, ok := ev.(conn.DataEvent); return ok })

	a.Disconnect()
	collectUntil(t, a, isClosed)

	a.Connect()
	expectConnected(t, a)
	a.Send([]byte("second"))
	collectUntil(t, a, func(ev conn.Event) bool { _, ok := ev.(conn.DataEvent); return ok })

	if got := fc.BytesSent(); got != 10 {
		t.Errorf("BytesSent after reconnect = %d, want 10 (counters are cumulative)", got)
	}
	if fc.Connects() != 2 {
		t.Errorf("Connects = %d, want 2", fc.Connects())
	}
}

func TestActorRedundantDisconnect(t *testing.T) {
	fc := testutil.NewFakeConn()
	a := conn.NewActor(fc)
	defer a.Close()

	a.Connect()
	expectConnected(t, a)
	a.Disconnect()
	collectUntil(t, a, isClosed)

	// A second disconnect on an already-disconnected instance emits
	// nothing: the very next event must belong to the new connect.
	a.Disconnect()
	a.Connect()

	ev := nextEvent(t, a)
	sc, ok := ev.(conn.StateChangedEvent)
	if !ok || sc.State != conn.StatusConnecting {
		t.Fatalf("expected CONNECTING after redundant disconnect, got %#v", ev)
	}
}

func TestActorSendWhileDisconnected(t *testing.T) {
	fc := testutil.NewFakeConn()
	a := conn.NewActor(fc)
	defer a.Close()

	a.Send([]byte("into the void"))
	ev := nextEvent(t, a)
	ee, ok := ev.(conn.ErrorEvent)
	if !ok {
		t.Fatalf("expected error event, got %#v", ev)
	}
	if ee.Err.Kind != conn.ErrorIO {
		t.Errorf("kind = %v, want %v", ee.Err.Kind, conn.ErrorIO)
	}
	if fc.BytesSent() != 0 {
		t.Errorf("bytes leaked to a disconnected transport: %d", fc.BytesSent())
	}
}

func TestActorConnectWhileConnected(t *testing.T) {
	fc := testutil.NewFakeConn()
	a := conn.NewActor(fc)
	defer a.Close()

	a.Connect()
	expectConnected(t, a)

	a.Connect()
	ev := nextEvent(t, a)
	if _, ok := ev.(conn.ErrorEvent); !ok {
		t.Fatalf("expected error event for connect while connected, got %#v", ev)
	}
	if fc.Connects() != 1 {
		t.Errorf("transport saw %d connects, want 1", fc.Connects())
	}
	if fc.State() != conn.StatusConnected {
		t.Errorf("session dropped by rejected connect: %v", fc.State())
	}
}

func TestActorRemoteClose(t *testing.T) {
	fc := testutil.NewFakeConn()
	a := conn.NewActor(fc)
	defer a.Close()

	a.Connect()
	expectConnected(t, a)

	fc.CloseRemote()
	events := collectUntil(t, a, isClosed)
	for _, ev := range events {
		if e, ok := ev.(conn.ErrorEvent); ok {
			t.Fatalf("orderly remote close produced an error event: %v", e.Err)
		}
	}
	states := stateSequence(events)
	if len(states) != 1 || states[0] != conn.StatusDisconnected {
		t.Fatalf("states after remote close = %v, want [DISCONNECTED]", states)
	}
}

func TestActorReadFailure(t *testing.T) {
	fc := testutil.NewFakeConn()
	a := conn.NewActor(fc)
	defer a.Close()

	a.Connect()
	expectConnected(t, a)

	fc.FailRead(errors.New("line noise"))
	events := collectUntil(t, a, isClosed)

	var errIdx, discIdx = -1, -1
	for i, ev := range events {
		if _, ok := ev.(conn.ErrorEvent); ok {
			errIdx = i
		}
		if sc, ok := ev.(conn.StateChangedEvent); ok && sc.State == conn.StatusDisconnected {
			discIdx = i
		}
	}
	if errIdx == -1 {
		t.Fatalf("expected an error event, got %v", events)
	}
	if discIdx == -1 || discIdx < errIdx {
		t.Fatalf("error must precede the disconnected transition: %v", events)
	}
}

func TestActorDataOrder(t *testing.T) {
	fc := testutil.NewFakeConn()
	a := conn.NewActor(fc)
	defer a.Close()

	a.Connect()
	expectConnected(t, a)

	chunks := []string{"alpha", "beta", "gamma", "delta"}
	for _, c := range chunks {
		fc.Feed([]byte(c))
	}

	var got []string
	collectUntil(t, a, func(ev conn.Event) bool {
		if d, ok := ev.(conn.DataEvent); ok {
			got = append(got, string(d.Bytes))
		}
		return len(got) == len(chunks)
	})
	for i := range chunks {
		if got[i] != chunks[i] {
			t.Fatalf("data order broken: got %v want %v", got, chunks)
		}
	}
}

func TestActorCloseEndsEventStream(t *testing.T) {
	fc := testutil.NewFakeConn()
	a := conn.NewActor(fc)

	a.Connect()
	expectConnected(t, a)
	a.Close()

	// Whatever is still queued drains, then the channel closes.
	deadline := time.After(eventTimeout)
	for {
		select {
		case _, ok := <-a.Events():
			if !ok {
				if fc.State() != conn.StatusDisconnected {
					t.Errorf("transport not released on close: %v", fc.State())
				}
				return
			}
		case <-deadline:
			t.Fatal("event channel never closed")
		}
	}
}
