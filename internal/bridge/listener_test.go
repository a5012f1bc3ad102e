package bridge

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/nhle/mailassist/internal/logging"
	"github.com/nhle/mailassist/internal/model"
)

func TestServeStoresLatestRecord(t *testing.T) {
	store := NewStore()
	l := NewListener(store, "", logging.Discard())

	input := strings.Join([]string{
		`{"type":"VSTO_EMAIL_DATA","payload":{"subject":"First","body":"a","senderName":"Ann","senderEmail":"ann@example.com"}}`,
		`not json`,
		`{"type":"SOMETHING_ELSE","payload":{"subject":"ignored"}}`,
		``,
		`{"type":"VSTO_EMAIL_DATA","payload":{"subject":"Second","body":"b","senderName":"Bob","senderEmail":"bob@example.com"}}`,
	}, "\n")

	if err := l.Serve(context.Background(), strings.NewReader(input)); err != nil {
		t.Fatalf("Serve() error = %v", err)
	}

	got, ok := store.Latest()
	if !ok {
		t.Fatal("Latest() reported no record")
	}
	want := model.EmailRecord{
		Subject:       "Second",
		Body:          "b",
		SenderName:    "Bob",
		SenderAddress: "bob@example.com",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Latest() mismatch (-want +got):\n%s", diff)
	}
	if store.ReceivedAt().IsZero() {
		t.Error("ReceivedAt() is zero after Set")
	}
}

func TestPayloadDefaults(t *testing.T) {
	got := Payload{}.Record()
	want := model.EmailRecord{
		Subject:       "No Subject",
		SenderName:    "Unknown",
		SenderAddress: "unknown@example.com",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Record() mismatch (-want +got):\n%s", diff)
	}
}

func TestEmptyStore(t *testing.T) {
	if _, ok := NewStore().Latest(); ok {
		t.Error("Latest() on empty store reported a record")
	}
}

func TestListenerPushRoundTrip(t *testing.T) {
	store := NewStore()
	l := NewListener(store, "127.0.0.1:0", logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := l.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() {
		l.Close()
		l.Wait()
	})

	err := Push(ctx, l.Addr().String(), Payload{Subject: "Pushed", SenderName: "Cy"})
	if err != nil {
		t.Fatalf("Push() error = %v", err)
	}

	msg := l.WaitForNextUpdate()()
	update, ok := msg.(UpdateMsg)
	if !ok {
		t.Fatalf("WaitForNextUpdate() returned %T, want UpdateMsg", msg)
	}
	if update.Record.Subject != "Pushed" {
		t.Errorf("update subject = %q, want Pushed", update.Record.Subject)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		if rec, ok := store.Latest(); ok && rec.Subject == "Pushed" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("record never reached the store")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestListenerStopsOnContextCancel(t *testing.T) {
	l := NewListener(NewStore(), "127.0.0.1:0", logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	if err := l.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	cancel()

	done := make(chan struct{})
	go func() {
		l.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not stop after context cancel")
	}

	if err := l.Start(context.Background()); err == nil {
		t.Error("Start() after close should fail")
	}
}
