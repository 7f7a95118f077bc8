package listener

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/atomscat/softswitch-gateway/codec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHandle struct{ addr string }

func (f *fakeHandle) RemoteAddr() string { return f.addr }
func (f *fakeHandle) SendAuth(string) error { return nil }
func (f *fakeHandle) SendAPI(context.Context, string, string) (*codec.Message, error) {
	return nil, nil
}
func (f *fakeHandle) SendBgAPI(context.Context, string, string) (string, error) { return "", nil }
func (f *fakeHandle) SendCommand(context.Context, string) (*codec.Message, error) {
	return nil, nil
}
func (f *fakeHandle) SendMsg(context.Context, *codec.SendMsg) (*codec.Message, error) {
	return nil, nil
}
func (f *fakeHandle) Close() error { return nil }

type recordingListener struct {
	BaseListener
	mu     sync.Mutex
	order  []string
}

func (r *recordingListener) HandleEslEvent(ctx *Context, ev *codec.Event) {
	// First event sleeps briefly; if delivery were concurrent rather than
	// ordered, the second event would record before the first.
	if ev.Name == "first" {
		time.Sleep(10 * time.Millisecond)
	}
	r.mu.Lock()
	r.order = append(r.order, ev.Name)
	r.mu.Unlock()
}

func TestOrderedWorker_PreservesDeliveryOrder(t *testing.T) {
	rl := &recordingListener{}
	w := NewOrderedWorker(rl, 8)
	handle := &fakeHandle{addr: "127.0.0.1:8021"}

	ctx1 := NewContext(context.Background(), handle, time.Second)
	ctx2 := NewContext(context.Background(), handle, time.Second)
	w.Dispatch(ctx1, &codec.Event{Name: "first"})
	w.Dispatch(ctx2, &codec.Event{Name: "second"})
	w.Close()

	require.Len(t, rl.order, 2)
	assert.Equal(t, []string{"first", "second"}, rl.order)
}

func TestOrderedWorker_ConcurrentCloseDuringDispatchDoesNotPanic(t *testing.T) {
	// Connection.Close() can run on a goroutine other than the one
	// dispatching events (e.g. a reconnect supervisor tearing down a
	// stale connection). Racing Dispatch against Close must never panic
	// with a send on a closed channel.
	for i := 0; i < 50; i++ {
		rl := &recordingListener{}
		w := NewOrderedWorker(rl, 1)
		handle := &fakeHandle{addr: "127.0.0.1:8021"}

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				ctx := NewContext(context.Background(), handle, time.Second)
				w.Dispatch(ctx, &codec.Event{Name: "tick"})
			}
		}()
		go func() {
			defer wg.Done()
			w.Close()
		}()
		wg.Wait()
	}
}

func TestPool_RunsCallbacksConcurrentlyUpToLimit(t *testing.T) {
	p := NewPool(2)
	handle := &fakeHandle{addr: "127.0.0.1:8021"}
	var active, maxActive int32
	var mu sync.Mutex

	track := func() {
		mu.Lock()
		active++
		if active > maxActive {
			maxActive = active
		}
		mu.Unlock()
		time.Sleep(5 * time.Millisecond)
		mu.Lock()
		active--
		mu.Unlock()
	}

	rl := &trackingListener{onConnect: track}
	for i := 0; i < 6; i++ {
		ctx := NewContext(context.Background(), handle, time.Second)
		p.DispatchOnConnect(rl, ctx, &codec.Event{Name: "connect"})
	}
	p.Wait()

	assert.LessOrEqual(t, int(maxActive), 2)
}

type trackingListener struct {
	BaseListener
	onConnect func()
}

func (t *trackingListener) OnConnect(*Context, *codec.Event) { t.onConnect() }
