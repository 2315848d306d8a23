package infra

// pdf.go: a printer driver that writes each printout to a PDF file on a
// roll-width page, for sites without a receipt printer and for mailing
// session summaries.

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sde1000/quicktill-sub001/internal/printer"

	"github.com/go-pdf/fpdf"
	"github.com/rs/zerolog/log"
)

const (
	rollWidth  = 80.0 // mm, the common thermal roll
	rollHeight = 297.0
	rollMargin = 4.0
	rowHeight  = 4.5
)

// PDFPrinter implements printer.Driver by writing one PDF per printout
// into dir. It has no cash drawer.
type PDFPrinter struct {
	dir  string
	name string

	mu   sync.Mutex // held from Start to End
	doc  *fpdf.Fpdf
	last string
	now  func() time.Time
}

func NewPDFPrinter(dir, name string) *PDFPrinter {
	return &PDFPrinter{dir: dir, name: name, now: time.Now}
}

// Available reports whether the output directory can be used.
func (p *PDFPrinter) Available(context.Context) bool {
	return os.MkdirAll(p.dir, 0o755) == nil
}

func (p *PDFPrinter) Start(context.Context) error {
	p.mu.Lock()
	doc := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           fpdf.SizeType{Wd: rollWidth, Ht: rollHeight},
	})
	doc.SetMargins(rollMargin, rollMargin, rollMargin)
	doc.SetAutoPageBreak(true, rollMargin)
	doc.AddPage()
	doc.SetFont("Helvetica", "", 8)
	p.doc = doc
	return nil
}

func (p *PDFPrinter) PrintLine(l printer.Line) error {
	if p.doc == nil {
		return errors.New("pdf: PrintLine outside Start/End")
	}
	tr := p.doc.UnicodeTranslatorFromDescriptor("")
	style := ""
	if l.Emph {
		style = "B"
	}
	p.doc.SetFont("Helvetica", style, 8)
	w := rollWidth - 2*rollMargin
	x, y := p.doc.GetXY()
	if l.Left != "" {
		p.doc.CellFormat(w, rowHeight, tr(l.Left), "", 0, "L", false, 0, "")
		p.doc.SetXY(x, y)
	}
	if l.Centre != "" {
		p.doc.CellFormat(w, rowHeight, tr(l.Centre), "", 0, "C", false, 0, "")
		p.doc.SetXY(x, y)
	}
	p.doc.CellFormat(w, rowHeight, tr(l.Right), "", 1, "R", false, 0, "")
	return p.doc.Error()
}

// PrintQRCode prints the encoded text; the PDF output has no QR renderer.
func (p *PDFPrinter) PrintQRCode(data string) error {
	if p.doc == nil {
		return errors.New("pdf: PrintQRCode outside Start/End")
	}
	p.doc.SetFont("Courier", "", 7)
	p.doc.MultiCell(rollWidth-2*rollMargin, rowHeight, data, "1", "C", false)
	return p.doc.Error()
}

// End writes the file. The document is discarded even if writing fails.
func (p *PDFPrinter) End() error {
	defer p.mu.Unlock()
	doc := p.doc
	p.doc = nil
	if doc == nil {
		return errors.New("pdf: End without Start")
	}
	path := filepath.Join(p.dir, fmt.Sprintf("%s_%s.pdf", p.name, p.now().Format("20060102_150405.000")))
	if err := doc.OutputFileAndClose(path); err != nil {
		return fmt.Errorf("pdf: write file: %w", err)
	}
	p.last = path
	log.Debug().Str("file", path).Msg("printout written")
	return nil
}

// LastFile is the path of the most recent printout.
func (p *PDFPrinter) LastFile() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

func (p *PDFPrinter) Kickout(context.Context) error {
	return printer.ErrUnavailable
}
