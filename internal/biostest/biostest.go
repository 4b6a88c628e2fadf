package biostest

import (
	"fmt"
	"io"

	"github.com/mt-inside/http-log/pkg/bios"
	"github.com/mt-inside/http-log/pkg/output"
)

// Bios renders like the http-log tty bios, but to w rather than stdout, and never exits.
type Bios struct {
	s output.TtyStyler
	w io.Writer
}

var _ bios.Bios = Bios{}

func New(s output.TtyStyler, w io.Writer) Bios {
	return Bios{s, w}
}

func (b Bios) Version() {}

func (b Bios) PrintOk(msg string)   { fmt.Fprintln(b.w, b.s.RenderOk(msg)) }
func (b Bios) PrintInfo(msg string) { fmt.Fprintln(b.w, b.s.RenderInfo(msg)) }
func (b Bios) PrintWarn(msg string) { fmt.Fprintln(b.w, b.s.RenderWarn(msg)) }
func (b Bios) PrintErr(msg string)  { fmt.Fprintln(b.w, b.s.RenderErr(msg)) }

func (b Bios) CheckPrintInfo(err error) bool { return b.check(err, b.PrintInfo) }
func (b Bios) CheckPrintWarn(err error) bool { return b.check(err, b.PrintWarn) }
func (b Bios) CheckPrintErr(err error) bool  { return b.check(err, b.PrintErr) }

func (b Bios) Unwrap(err error) {
	b.CheckPrintErr(err)
}

func (b Bios) check(err error, print func(string)) bool {
	if err != nil {
		print(err.Error())
		return true
	}
	return false
}
