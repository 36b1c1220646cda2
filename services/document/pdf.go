// Package docsvc wraps rendered certificates into PDF documents.
package docsvc

import (
	"bytes"
	"io"
	"math"

	"github.com/jung-kurt/gofpdf"
	"github.com/pkg/errors"

	"github.com/digitalmadrasa/madrasa/core/certificate"
)

const imageName = "certificate"

// PDFWriter writes single-page documents whose page is exactly the image size,
// one point per pixel, without margins.
type PDFWriter struct {
	Title   string
	Creator string
}

var _ certificate.DocumentWriter = (*PDFWriter)(nil)

func NewPDFWriter(appName string) *PDFWriter {
	return &PDFWriter{Title: "Certificate", Creator: appName}
}

func (pw *PDFWriter) WriteDocument(w io.Writer, png []byte, width, height int) (certificate.Page, error) {
	if width <= 0 || height <= 0 {
		return certificate.Page{}, errors.Errorf("invalid image size %dx%d", width, height)
	}
	if len(png) == 0 {
		return certificate.Page{}, errors.New("empty image")
	}
	page := certificate.PageFor(width, height)

	// gofpdf swaps the custom size for landscape pages
	orientation := "P"
	if page.Orientation == certificate.Landscape {
		orientation = "L"
	}
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: orientation,
		UnitStr:        "pt",
		Size: gofpdf.SizeType{
			Wd: math.Min(page.Width, page.Height),
			Ht: math.Max(page.Width, page.Height),
		},
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetTitle(pw.Title, true)
	pdf.SetCreator(pw.Creator, true)
	pdf.AddPage()

	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader(imageName, opts, bytes.NewReader(png))
	pdf.ImageOptions(imageName, 0, 0, page.Width, page.Height, false, opts, 0, "")
	if err := pdf.Error(); err != nil {
		return certificate.Page{}, errors.Wrap(err, "building pdf")
	}
	if err := pdf.Output(w); err != nil {
		return certificate.Page{}, errors.Wrap(err, "writing pdf")
	}
	return page, nil
}
