package osc

import (
	"context"
	"net"
	"testing"
	"time"

	goosc "github.com/hypebeast/go-osc/osc"
)

func listenTestServer(t *testing.T) (*Server, int) {
	t.Helper()
	srv := NewServer("127.0.0.1", 0)
	if err := srv.Listen(); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	t.Cleanup(func() { srv.Close() })
	return srv, srv.LocalAddr().(*net.UDPAddr).Port
}

func TestServerReceivesClientMessages(t *testing.T) {
	srv, port := listenTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan *goosc.Message, 4)
	done := make(chan struct{})
	go func() {
		defer close(done)
		srv.Run(ctx, func(msg *goosc.Message) { received <- msg })
	}()

	client := NewClient("127.0.0.1", port)
	defer client.Close()

	msg := goosc.NewMessage("/RecordStartShogunLive")
	if err := client.Send(msg); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case got := <-received:
		if got.Address != "/RecordStartShogunLive" {
			t.Errorf("address = %q", got.Address)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("message never arrived")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestServerReceivesStringArguments(t *testing.T) {
	srv, port := listenTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan *goosc.Message, 4)
	go srv.Run(ctx, func(msg *goosc.Message) { received <- msg })

	client := NewClient("127.0.0.1", port)
	defer client.Close()

	msg := goosc.NewMessage("/CaptureName")
	msg.Append("take_007")
	if err := client.Send(msg); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case got := <-received:
		if len(got.Arguments) != 1 {
			t.Fatalf("got %d arguments", len(got.Arguments))
		}
		if s, ok := got.Arguments[0].(string); !ok || s != "take_007" {
			t.Errorf("argument = %#v", got.Arguments[0])
		}
	case <-time.After(2 * time.Second):
		t.Fatal("message never arrived")
	}
}

func TestServerSurvivesMalformedDatagram(t *testing.T) {
	srv, port := listenTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan *goosc.Message, 4)
	go srv.Run(ctx, func(msg *goosc.Message) { received <- msg })

	raw, err := net.Dial("udp", srv.LocalAddr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer raw.Close()
	if _, err := raw.Write([]byte("not osc at all")); err != nil {
		t.Fatalf("write: %v", err)
	}

	// A valid message after the garbage must still get through.
	client := NewClient("127.0.0.1", port)
	defer client.Close()
	if err := client.Send(goosc.NewMessage("/RecordStopShogunLive")); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case got := <-received:
		if got.Address != "/RecordStopShogunLive" {
			t.Errorf("address = %q", got.Address)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server stopped serving after malformed datagram")
	}
}

func TestServerRunWithoutListen(t *testing.T) {
	srv := NewServer("127.0.0.1", 0)
	err := srv.Run(context.Background(), func(*goosc.Message) {})
	if err != ErrNotListening {
		t.Errorf("err = %v, want ErrNotListening", err)
	}
}

func TestServerListenBindConflict(t *testing.T) {
	srv, port := listenTestServer(t)
	_ = srv

	second := NewServer("127.0.0.1", port)
	if err := second.Listen(); err == nil {
		second.Close()
		t.Fatal("expected bind error on occupied port")
	}
}

func TestServerCloseIdempotent(t *testing.T) {
	srv, _ := listenTestServer(t)
	if err := srv.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := srv.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}
