package toast

import (
	"bytes"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestFuncAndMulti(t *testing.T) {
	var got []string
	first := Func(func(t Toast) { got = append(got, "first:"+t.Title) })
	second := &Recorder{}

	Multi{first, nil, second}.Toast(Toast{Title: "hi", Description: "there"})

	assert.Equal(t, []string{"first:hi"}, got)
	assert.Equal(t, []Toast{{Title: "hi", Description: "there"}}, second.Toasts())
}

func TestLogToaster(t *testing.T) {
	var buf bytes.Buffer
	NewLog(zerolog.New(&buf)).Toast(Toast{Title: "Reward unlocked", Description: "Gold tier"})

	out := buf.String()
	assert.Contains(t, out, `"title":"Reward unlocked"`)
	assert.Contains(t, out, `"description":"Gold tier"`)
	assert.Contains(t, out, `"component":"toast"`)
}

func TestQueueDeliversInOrder(t *testing.T) {
	rec := &Recorder{}
	q := NewQueue(rec, 8, zerolog.Nop())

	q.Toast(Toast{Title: "1"})
	q.Toast(Toast{Title: "2"})
	q.Toast(Toast{Title: "3"})
	q.Close()

	assert.Equal(t, []Toast{{Title: "1"}, {Title: "2"}, {Title: "3"}}, rec.Toasts())
}

func TestQueueDropsWhenFull(t *testing.T) {
	release := make(chan struct{})
	rec := &Recorder{}
	sink := Func(func(t Toast) {
		<-release
		rec.Toast(t)
	})
	q := NewQueue(sink, 1, zerolog.Nop())

	q.Toast(Toast{Title: "blocking"})
	// Wait for the worker to pick up the first toast so the buffer is empty.
	assert.Eventually(t, func() bool { return len(q.ch) == 0 }, time.Second, 5*time.Millisecond)
	q.Toast(Toast{Title: "buffered"})
	q.Toast(Toast{Title: "dropped"})

	close(release)
	q.Close()

	assert.Equal(t, []Toast{{Title: "blocking"}, {Title: "buffered"}}, rec.Toasts())
}

func TestQueueToastAfterCloseIsIgnored(t *testing.T) {
	rec := &Recorder{}
	q := NewQueue(rec, 4, zerolog.Nop())
	q.Close()
	q.Close()

	q.Toast(Toast{Title: "late"})
	assert.Empty(t, rec.Toasts())
}
