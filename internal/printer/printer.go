// Package printer defines the receipt printer abstraction used by the
// register (cash drawer kickout) and the session ledger (printed
// summaries).
package printer

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnavailable is returned by Print when the printer reports it can't
// take a job.
var ErrUnavailable = errors.New("printer is not available")

// Line is one row of a printout. Left, Centre and Right are laid out on
// the same row; Emph prints it in bold.
type Line struct {
	Left   string
	Centre string
	Right  string
	Emph   bool
}

// Driver is a receipt printer with an attached cash drawer. Start and
// End bracket one printout.
type Driver interface {
	Available(ctx context.Context) bool
	Start(ctx context.Context) error
	PrintLine(l Line) error
	PrintQRCode(data string) error
	End() error
	Kickout(ctx context.Context) error
}

// Print runs fn between Start and End. End is always called once Start
// has succeeded, and its error is reported when fn succeeded.
func Print(ctx context.Context, d Driver, fn func(Driver) error) (err error) {
	if !d.Available(ctx) {
		return ErrUnavailable
	}
	if err := d.Start(ctx); err != nil {
		return fmt.Errorf("printer start: %w", err)
	}
	defer func() {
		if endErr := d.End(); endErr != nil && err == nil {
			err = fmt.Errorf("printer end: %w", endErr)
		}
	}()
	return fn(d)
}

// Null is a printer that prints nothing and has no drawer.
type Null struct{}

func (Null) Available(context.Context) bool { return true }
func (Null) Start(context.Context) error    { return nil }
func (Null) PrintLine(Line) error           { return nil }
func (Null) PrintQRCode(string) error       { return nil }
func (Null) End() error                     { return nil }
func (Null) Kickout(context.Context) error  { return nil }
