/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package export renders staged documents for people: a printable cue sheet
// listing every line with its staging cues.
package export

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"scriptstage/internal/emit"

	"github.com/jung-kurt/gofpdf"
)

// Column widths in pt on an A4 page with 36pt margins (523pt usable).
var cueColumns = []struct {
	title string
	width float64
}{
	{"#", 30},
	{"Actor", 90},
	{"Cues", 163},
	{"Text", 240},
}

const (
	cueMargin     = 36.0
	cueFontSize   = 9.0
	cueLineHeight = 11.0
	cuePadding    = 3.0
)

// CueSheetPDF writes a table of index, actor, cues and text for doc to w.
// Cues are listed one token per line.
func CueSheetPDF(w io.Writer, title string, doc emit.Document) error {
	if len(doc.Lines) == 0 {
		return emit.ErrNoLines
	}
	pdf := gofpdf.New("P", "pt", "A4", "")
	pdf.SetMargins(cueMargin, cueMargin, cueMargin)
	pdf.SetAutoPageBreak(true, cueMargin)
	pdf.SetTitle(title, true)
	pdf.SetCreator("scriptstage", false)
	pdf.AliasNbPages("")
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetHeaderFunc(func() {
		pdf.SetFont("Helvetica", "B", 13)
		pdf.CellFormat(0, 18, tr(title), "", 1, "L", false, 0, "")
		pdf.Ln(4)
		drawHeaderRow(pdf)
	})
	pdf.SetFooterFunc(func() {
		pdf.SetY(-cueMargin + 8)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	pdf.AddPage()
	_, pageH := pdf.GetPageSize()
	for i, l := range doc.Lines {
		cells := [][]string{
			{strconv.Itoa(i)},
			splitCell(pdf, tr(l.Actor), cueColumns[1].width),
			splitTokens(pdf, l.Tokens(), cueColumns[2].width, tr),
			splitCell(pdf, tr(l.Text), cueColumns[3].width),
		}
		rows := 1
		for _, c := range cells {
			if len(c) > rows {
				rows = len(c)
			}
		}
		h := float64(rows)*cueLineHeight + 2*cuePadding
		if pdf.GetY()+h > pageH-cueMargin {
			pdf.AddPage()
		}
		drawRow(pdf, cells, h, i%2 == 1)
	}
	if err := pdf.Error(); err != nil {
		return fmt.Errorf("render cue sheet: %w", err)
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

// WriteCueSheetFile renders the cue sheet to path, creating parent directories.
func WriteCueSheetFile(path, title string, doc emit.Document) (err error) {
	if strings.TrimSpace(path) == "" {
		return errors.New("cue sheet path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			_ = os.Remove(path)
		}
	}()
	return CueSheetPDF(f, title, doc)
}

func drawHeaderRow(pdf *gofpdf.Fpdf) {
	pdf.SetFont("Helvetica", "B", cueFontSize)
	pdf.SetFillColor(220, 220, 220)
	pdf.SetDrawColor(120, 120, 120)
	for _, c := range cueColumns {
		pdf.CellFormat(c.width, cueLineHeight+2*cuePadding, c.title, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Helvetica", "", cueFontSize)
}

func drawRow(pdf *gofpdf.Fpdf, cells [][]string, h float64, shaded bool) {
	x0, y0 := pdf.GetXY()
	if shaded {
		pdf.SetFillColor(245, 245, 245)
	} else {
		pdf.SetFillColor(255, 255, 255)
	}
	x := x0
	for i, c := range cueColumns {
		pdf.Rect(x, y0, c.width, h, "FD")
		y := y0 + cuePadding
		for _, line := range cells[i] {
			pdf.SetXY(x+cuePadding, y)
			pdf.CellFormat(c.width-2*cuePadding, cueLineHeight, line, "", 0, "L", false, 0, "")
			y += cueLineHeight
		}
		x += c.width
	}
	pdf.SetXY(x0, y0+h)
}

// splitCell wraps s, already translated to the core font's code page, to the
// cell width. SplitLines measures bytes, matching the single-byte encoding.
func splitCell(pdf *gofpdf.Fpdf, s string, width float64) []string {
	if s == "" {
		return []string{""}
	}
	lines := pdf.SplitLines([]byte(s), width-2*cuePadding)
	if len(lines) == 0 {
		return []string{""}
	}
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = string(l)
	}
	return out
}

func splitTokens(pdf *gofpdf.Fpdf, tokens []string, width float64, tr func(string) string) []string {
	var out []string
	for _, t := range tokens {
		out = append(out, splitCell(pdf, tr(t), width)...)
	}
	if len(out) == 0 {
		out = []string{""}
	}
	return out
}
