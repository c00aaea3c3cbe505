package ui

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/dagforge/internal/state"
)

func TestNotifier_PublishSubscribe(t *testing.T) {
	n := NewNotifier()

	_, ok := n.Last()
	assert.False(t, ok)

	ch1 := n.Subscribe()
	ch2 := n.Subscribe()

	ev := Event{RunID: "run-1", Counts: state.Counts{Generated: 2}}
	n.Publish(ev)

	for _, ch := range []chan Event{ch1, ch2} {
		select {
		case got := <-ch:
			assert.Equal(t, "run-1", got.RunID)
		case <-time.After(time.Second):
			t.Fatal("listener did not receive event")
		}
	}

	last, ok := n.Last()
	require.True(t, ok)
	assert.Equal(t, 2, last.Counts.Generated)

	n.Unsubscribe(ch1)
	n.Unsubscribe(ch2)
	_, open := <-ch1
	assert.False(t, open, "unsubscribe closes the channel")
}

func TestNotifier_SlowListenerDoesNotBlock(t *testing.T) {
	n := NewNotifier()
	ch := n.Subscribe()
	defer n.Unsubscribe(ch)

	done := make(chan struct{})
	go func() {
		for i := range 5 {
			n.Publish(Event{RunID: string(rune('a' + i))})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full listener")
	}

	got := <-ch
	assert.Equal(t, "a", got.RunID, "the buffered event is the first one")
	last, _ := n.Last()
	assert.Equal(t, "e", last.RunID)
}

func TestUpdatesStreamsStatus(t *testing.T) {
	f := newFixture(t, nil)
	srv := f.server(t, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/updates", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	// Keep publishing until the stream's subscription picks one up.
	go func() {
		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				srv.Notifier().Publish(Event{
					At:     time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC),
					Counts: state.Counts{Generated: 1, Unchanged: 3},
				})
			}
		}
	}()

	lines := make(chan string)
	go func() {
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	deadline := time.After(5 * time.Second)
	for {
		select {
		case line := <-lines:
			if strings.Contains(line, `id="status"`) {
				assert.Contains(t, line, "1 generated, 3 unchanged")
				return
			}
		case <-deadline:
			t.Fatal("no status patch received")
		}
	}
}
