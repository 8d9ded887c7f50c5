package transport

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"smoothfade/internal/automation"
	"smoothfade/internal/fade"
	"smoothfade/pkg/utils"

	"github.com/gorilla/websocket"
)

func newTestFader(t *testing.T) (*fade.Engine, *automation.ManualClock) {
	t.Helper()
	clock := &automation.ManualClock{}
	engine, err := fade.New(clock, automation.NewTimeline(1), fade.Config{
		Curve:      fade.Linear,
		FadeLength: 10,
		StartValue: 1,
	})
	if err != nil {
		t.Fatalf("fade.New: %v", err)
	}
	return engine, clock
}

func TestTakeSnapshot(t *testing.T) {
	engine, clock := newTestFader(t)
	if err := engine.FadeOut(fade.Target(0)); err != nil {
		t.Fatalf("FadeOut: %v", err)
	}
	clock.Set(2.5)

	snap := TakeSnapshot(engine, clock)
	want := Snapshot{
		Time:      2.5,
		Value:     0.75,
		Direction: "fadeout",
		Target:    0,
		StartTime: 0,
		EndTime:   10,
		Fading:    true,
	}
	if snap != want {
		t.Errorf("TakeSnapshot() = %+v, want %+v", snap, want)
	}

	data, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("json.Marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"time", "value", "direction", "target", "start_time", "end_time", "fading"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("JSON missing %q: %s", key, data)
		}
	}
}

func TestMonitorPublishSkipsIdleRepeats(t *testing.T) {
	engine, clock := newTestFader(t)
	mock := &utils.MockTransport{}
	m, err := NewMonitor(engine, clock, time.Hour, mock)
	if err != nil {
		t.Fatalf("NewMonitor: %v", err)
	}

	m.Publish()
	clock.Add(1)
	m.Publish() // idle, unchanged
	if got := len(mock.Sent()); got != 1 {
		t.Fatalf("idle monitor sent %d snapshots, want 1", got)
	}

	if err := engine.FadeOut(fade.Target(0.5)); err != nil {
		t.Fatalf("FadeOut: %v", err)
	}
	for range 3 {
		clock.Add(1)
		m.Publish()
	}
	if got := len(mock.Sent()); got != 4 {
		t.Fatalf("fading monitor sent %d snapshots, want 4", got)
	}

	last := mock.Sent()[3].(Snapshot)
	if !last.Fading || last.Direction != "fadeout" {
		t.Errorf("last snapshot = %+v", last)
	}
}

func TestMonitorStartStop(t *testing.T) {
	engine, clock := newTestFader(t)
	mock := &utils.MockTransport{}
	m, err := NewMonitor(engine, clock, time.Millisecond, mock)
	if err != nil {
		t.Fatalf("NewMonitor: %v", err)
	}

	m.Start()
	m.Start() // no-op
	deadline := time.Now().Add(2 * time.Second)
	for len(mock.Sent()) == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	m.Stop()
	m.Stop() // no-op

	if len(mock.Sent()) == 0 {
		t.Error("monitor never published")
	}
	if err := m.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if !mock.Closed() {
		t.Error("Close did not close the transport")
	}
}

func TestMonitorSendError(t *testing.T) {
	engine, clock := newTestFader(t)
	failing := &utils.MockTransport{Err: errors.New("down")}
	ok := &utils.MockTransport{}
	m, _ := NewMonitor(engine, clock, time.Hour, failing, ok)

	m.Publish()
	if len(ok.Sent()) != 1 {
		t.Error("a failing transport blocked the others")
	}
}

func TestNewMonitorErrors(t *testing.T) {
	engine, clock := newTestFader(t)
	if _, err := NewMonitor(nil, clock, time.Second, &utils.MockTransport{}); err == nil {
		t.Error("expected error for nil source")
	}
	if _, err := NewMonitor(engine, nil, time.Second, &utils.MockTransport{}); err == nil {
		t.Error("expected error for nil clock")
	}
	if _, err := NewMonitor(engine, clock, time.Second); err == nil {
		t.Error("expected error without transports")
	}
}

func TestLoggingTransport(t *testing.T) {
	lt := NewLoggingTransport()
	if err := lt.Send(Snapshot{Direction: "fadein"}); err != nil {
		t.Errorf("Send(Snapshot): %v", err)
	}
	if err := lt.Send("raw"); err != nil {
		t.Errorf("Send(string): %v", err)
	}
	if err := lt.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestWebSocketTransportBroadcast(t *testing.T) {
	wst, err := NewWebSocketTransport("127.0.0.1:0")
	if err != nil {
		t.Fatalf("NewWebSocketTransport: %v", err)
	}
	defer wst.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+wst.Addr()+"/ws", nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for wst.Clients() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if wst.Clients() != 1 {
		t.Fatalf("Clients() = %d, want 1", wst.Clients())
	}

	sent := Snapshot{Time: 1, Value: 0.5, Direction: "fadein", Target: 1, EndTime: 2, Fading: true}
	if err := wst.Send(sent); err != nil {
		t.Fatalf("Send: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got Snapshot
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if got != sent {
		t.Errorf("received %+v, want %+v", got, sent)
	}

	if err := wst.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if err := wst.Send(sent); !errors.Is(err, ErrClosed) {
		t.Errorf("Send after Close = %v, want ErrClosed", err)
	}
	if err := wst.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}
