package observability

import (
	"bytes"
	"context"
	"errors"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewShutdownManager(t *testing.T) {
	sm := NewShutdownManager(nil, 0)
	assert.Equal(t, DefaultShutdownTimeout, sm.shutdownTimeout)
	assert.NotNil(t, sm.logger)

	sm = NewShutdownManager(NewLogger(InfoLevel, &bytes.Buffer{}), time.Second)
	assert.Equal(t, time.Second, sm.shutdownTimeout)
}

func TestShutdownManager_Shutdown(t *testing.T) {
	logger := NewLogger(InfoLevel, &bytes.Buffer{})
	sm := NewShutdownManager(logger, 5*time.Second)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	server := &http.Server{Handler: http.NotFoundHandler()}
	served := make(chan error, 1)
	go func() { served <- server.Serve(ln) }()
	sm.RegisterServer("api", server)

	var order []string
	sm.RegisterShutdownFunc(func(context.Context) error {
		order = append(order, "first")
		return nil
	})
	sm.RegisterShutdownFunc(func(context.Context) error {
		order = append(order, "second")
		return nil
	})

	require.NoError(t, sm.Shutdown(context.Background()))
	assert.Equal(t, []string{"first", "second"}, order)
	assert.ErrorIs(t, <-served, http.ErrServerClosed)
}

func TestShutdownManager_CollectsErrors(t *testing.T) {
	sm := NewShutdownManager(NewLogger(InfoLevel, &bytes.Buffer{}), time.Second)

	boom := errors.New("boom")
	ran := false
	sm.RegisterShutdownFunc(func(context.Context) error { return boom })
	sm.RegisterShutdownFunc(func(context.Context) error {
		ran = true
		return nil
	})

	err := sm.Shutdown(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.True(t, ran)
}

func TestShutdownManager_WaitForSignalContextDone(t *testing.T) {
	sm := NewShutdownManager(NewLogger(InfoLevel, &bytes.Buffer{}), time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		sm.WaitForSignal(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WaitForSignal did not return after context cancellation")
	}
}

func TestMustRecover(t *testing.T) {
	assert.NoError(t, MustRecover(nil))

	err := MustRecover("kaboom")
	require.Error(t, err)
	assert.Equal(t, "panic: kaboom", err.Error())

	sentinel := errors.New("sentinel")
	assert.ErrorIs(t, MustRecover(sentinel), sentinel)
}

func TestRecoverPanic(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	func() {
		defer RecoverPanic(logger, "unit test")
		panic("oops")
	}()

	assert.Contains(t, buf.String(), "PANIC recovered")
	assert.Contains(t, buf.String(), "unit test")
}
