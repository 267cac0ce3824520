package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestThreadID(t *testing.T) {
	assert.Equal(t, "a:b", ThreadID("a", "b"))
	assert.Equal(t, "a:b", ThreadID("b", "a"), "both ends must derive the same key")
	assert.Equal(t, "a:a", ThreadID("a", "a"))
}

func TestReconcile(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	at := func(sec int) time.Time { return t0.Add(time.Duration(sec) * time.Second) }

	srv1 := Message{ID: "s1", Body: "hi", ClientRef: "c1", SentAt: at(0)}
	srv2 := Message{ID: "s2", Body: "yo", SentAt: at(2)}

	tests := []struct {
		name    string
		server  []Message
		pending []Message
		want    []string // expected bodies in order
	}{
		{name: "both empty", want: []string{}},
		{
			name:   "server only",
			server: []Message{srv2, srv1}, // arrival order irrelevant
			want:   []string{"hi", "yo"},
		},
		{
			name:    "pending only",
			pending: []Message{{Body: "draft", ClientRef: "c9", SentAt: at(1)}},
			want:    []string{"draft"},
		},
		{
			name:    "acked pending is dropped",
			server:  []Message{srv1},
			pending: []Message{{Body: "hi (local)", ClientRef: "c1", SentAt: at(5)}},
			want:    []string{"hi"},
		},
		{
			name:   "unacked pending survives in order",
			server: []Message{srv1, srv2},
			pending: []Message{
				{Body: "in flight", ClientRef: "c2", SentAt: at(1)},
				{Body: "hi (local)", ClientRef: "c1", SentAt: at(0)},
			},
			want: []string{"hi", "in flight", "yo"},
		},
		{
			name:    "pending without ref is never deduped",
			server:  []Message{srv1},
			pending: []Message{{Body: "no ref", SentAt: at(1)}},
			want:    []string{"hi", "no ref"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Reconcile(tt.server, tt.pending)
			bodies := make([]string, 0, len(got))
			for _, msg := range got {
				bodies = append(bodies, msg.Body)
			}
			assert.Equal(t, tt.want, bodies)
		})
	}

	t.Run("ties break on ID for a stable cross-device order", func(t *testing.T) {
		a := Message{ID: "a", Body: "a", SentAt: t0}
		b := Message{ID: "b", Body: "b", SentAt: t0}
		got := Reconcile([]Message{b, a}, nil)
		assert.Equal(t, []Message{a, b}, got)
	})

	t.Run("idempotent", func(t *testing.T) {
		pending := []Message{{Body: "in flight", ClientRef: "c2", SentAt: at(1)}}
		once := Reconcile([]Message{srv1, srv2}, pending)
		twice := Reconcile(once, pending)
		assert.Equal(t, once, twice)
	})
}
