package monitoring

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeMonitor struct {
	errs    []error
	panic   any
	flushed bool
}

func (f *fakeMonitor) CaptureException(err error, _ map[string]string) { f.errs = append(f.errs, err) }
func (f *fakeMonitor) CapturePanic(v any)                              { f.panic = v }
func (f *fakeMonitor) Flush(time.Duration)                             { f.flushed = true }

func TestCaptureExceptionSkipsNil(t *testing.T) {
	m := &fakeMonitor{}
	Init(m)
	defer Init(NopMonitor{})
	Init(nil)

	CaptureException(nil, nil)
	CaptureException(errors.New("boom"), map[string]string{"module": "mqtt"})
	assert.Len(t, m.errs, 1)
}

func TestRecoverReportsAndRepanics(t *testing.T) {
	m := &fakeMonitor{}
	Init(m)
	defer Init(NopMonitor{})
	defer func() {
		assert.Equal(t, "boom", recover())
		assert.Equal(t, "boom", m.panic)
		assert.True(t, m.flushed)
	}()
	func() {
		defer Recover()
		panic("boom")
	}()
}

func TestGoRunsFunction(t *testing.T) {
	done := make(chan struct{})
	Go(func() { close(done) })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("goroutine did not run")
	}
}
