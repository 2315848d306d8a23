package printer_test

import (
	"context"
	"errors"
	"testing"

	"github.com/sde1000/quicktill-sub001/internal/printer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	available bool
	startErr  error
	endErr    error
	calls     []string
	lines     []printer.Line
}

func (r *recorder) Available(context.Context) bool { return r.available }
func (r *recorder) Start(context.Context) error {
	r.calls = append(r.calls, "start")
	return r.startErr
}
func (r *recorder) PrintLine(l printer.Line) error {
	r.lines = append(r.lines, l)
	return nil
}
func (r *recorder) PrintQRCode(string) error { return nil }
func (r *recorder) End() error {
	r.calls = append(r.calls, "end")
	return r.endErr
}
func (r *recorder) Kickout(context.Context) error { return nil }

func TestPrint_EndsAfterSuccess(t *testing.T) {
	r := &recorder{available: true}
	err := printer.Print(context.Background(), r, func(d printer.Driver) error {
		return d.PrintLine(printer.Line{Left: "Takings", Right: "12.00"})
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"start", "end"}, r.calls)
	assert.Len(t, r.lines, 1)
}

func TestPrint_EndsAfterFailure(t *testing.T) {
	r := &recorder{available: true}
	boom := errors.New("paper out")
	err := printer.Print(context.Background(), r, func(printer.Driver) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"start", "end"}, r.calls)
}

func TestPrint_EndErrorReported(t *testing.T) {
	r := &recorder{available: true, endErr: errors.New("cutter jammed")}
	err := printer.Print(context.Background(), r, func(printer.Driver) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cutter jammed")
}

func TestPrint_StartFailureSkipsEnd(t *testing.T) {
	r := &recorder{available: true, startErr: errors.New("offline")}
	err := printer.Print(context.Background(), r, func(printer.Driver) error {
		t.Fatal("fn must not run")
		return nil
	})
	require.Error(t, err)
	assert.Equal(t, []string{"start"}, r.calls)
}

func TestPrint_Unavailable(t *testing.T) {
	err := printer.Print(context.Background(), &recorder{}, func(printer.Driver) error { return nil })
	assert.ErrorIs(t, err, printer.ErrUnavailable)
}
