package looper

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLooper_RunsInOrder(t *testing.T) {
	l := New(zap.NewNop()).Start()

	var mu sync.Mutex
	var got []int
	for i := 0; i < 100; i++ {
		i := i
		l.Post(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		})
	}

	l.Quit()
	select {
	case <-l.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("looper did not stop")
	}

	require.Len(t, got, 100)
	for i, v := range got {
		require.Equal(t, i, v)
	}
}

func TestLooper_SingleGoroutine(t *testing.T) {
	l := New(zap.NewNop()).Start()
	defer l.Quit()

	var active, maxActive int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go l.Post(func() {
			defer wg.Done()
			mu.Lock()
			active++
			if active > maxActive {
				maxActive = active
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
		})
	}
	wg.Wait()
	require.Equal(t, 1, maxActive)
}

func TestLooper_PanicDoesNotStopLoop(t *testing.T) {
	l := New(zap.NewNop()).Start()
	defer l.Quit()

	ran := make(chan struct{})
	l.Post(func() { panic("boom") })
	l.Post(func() { close(ran) })

	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("task after panic did not run")
	}
}

func TestLooper_DropsAfterQuit(t *testing.T) {
	l := New(zap.NewNop()).Start()
	l.Quit()
	l.Quit()
	<-l.Done()

	ran := false
	l.Post(func() { ran = true })
	time.Sleep(10 * time.Millisecond)
	require.False(t, ran)
}

func TestLooper_QuitWithoutStart(t *testing.T) {
	l := New(zap.NewNop())
	l.Quit()

	select {
	case <-l.Done():
	case <-time.After(time.Second):
		t.Fatal("done not closed")
	}
}
