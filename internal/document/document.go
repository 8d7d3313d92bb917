// document.go
//
// Split sheet agreements with collaborative e-signatures for Saldaña Music
// Copyright (c) 2026 Saldaña Music LLC <legal@saldanamusic.com> (https://www.saldanamusic.com)
//
// This file is part of splitsheets.
// splitsheets is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// splitsheets is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with splitsheets.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Saldaña Music LLC <legal@saldanamusic.com> (https://www.saldanamusic.com)"
//    in this material, copies, or source code of derived works.

// Package document renders split sheets to PDF.
package document

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/saldanamusic/splitsheets/internal/models"
	"github.com/saldanamusic/splitsheets/internal/sanitize"
	"go.uber.org/zap"
)

const (
	// MaxLogoBytes is the largest logo file that will be embedded.
	MaxLogoBytes = 500 * 1024

	// overflowThreshold is the vertical space (mm) below which the summary
	// table stops adding collaborator rows.
	overflowThreshold = 30.0

	pageMargin   = 15.0
	logoName     = "logo"
	logoHeight   = 15.0
	fullRows     = 10
	blocksOnPage = 4
)

// Kind selects a layout.
type Kind int

const (
	KindSummary Kind = iota
	KindFull
)

// Renderer turns split sheet snapshots into PDF bytes. It is safe for
// concurrent use; each call builds its own document.
type Renderer struct {
	log      *zap.Logger
	logo     []byte
	logoType string
}

// NewRenderer creates a renderer. The logo at logoPath is embedded when it
// exists, is at most MaxLogoBytes and decodes as PNG or JPEG. Any problem with
// the logo is logged and rendering proceeds without it.
func NewRenderer(logoPath string, log *zap.Logger) *Renderer {
	r := &Renderer{log: log.Named("document")}
	if logoPath == "" {
		return r
	}

	info, err := os.Stat(logoPath)
	if err != nil {
		r.log.Debug("logo not found", zap.String("path", logoPath), zap.Error(err))
		return r
	}
	if info.Size() > MaxLogoBytes {
		r.log.Warn("logo exceeds size limit, ignoring",
			zap.String("path", logoPath), zap.Int64("bytes", info.Size()))
		return r
	}

	var imageType string
	switch strings.ToLower(filepath.Ext(logoPath)) {
	case ".png":
		imageType = "PNG"
	case ".jpg", ".jpeg":
		imageType = "JPG"
	default:
		r.log.Warn("unsupported logo format, ignoring", zap.String("path", logoPath))
		return r
	}

	data, err := os.ReadFile(logoPath)
	if err != nil {
		r.log.Warn("failed to read logo", zap.String("path", logoPath), zap.Error(err))
		return r
	}

	probe := fpdf.New("P", "mm", "A4", "")
	probe.RegisterImageOptionsReader(logoName, fpdf.ImageOptions{ImageType: imageType}, bytes.NewReader(data))
	if probe.Err() {
		r.log.Warn("failed to decode logo", zap.String("path", logoPath), zap.Error(probe.Error()))
		return r
	}

	r.logo = data
	r.logoType = imageType
	return r
}

// Summary renders the single-page summary.
func (r *Renderer) Summary(sheet *models.SplitSheet) ([]byte, error) {
	return r.output(r.build(sheet, KindSummary, false))
}

// Full renders the multi-page variant.
func (r *Renderer) Full(sheet *models.SplitSheet) ([]byte, error) {
	return r.output(r.build(sheet, KindFull, false))
}

// WithAuditTrail renders kind and appends the signing audit page.
func (r *Renderer) WithAuditTrail(sheet *models.SplitSheet, kind Kind) ([]byte, error) {
	return r.output(r.build(sheet, kind, true))
}

// Hash returns the hex SHA-256 digest of a rendered document.
func Hash(doc []byte) string {
	sum := sha256.Sum256(doc)
	return hex.EncodeToString(sum[:])
}

// Filename returns the download name for a sheet's document.
func Filename(title string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(sanitize.Text(title)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	slug := strings.TrimSuffix(b.String(), "-")
	if slug == "" {
		slug = "untitled"
	}
	return fmt.Sprintf("split-sheet-%s.pdf", slug)
}

func (r *Renderer) output(pdf *fpdf.Fpdf) ([]byte, error) {
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render document: %w", err)
	}
	return buf.Bytes(), nil
}

// writer wraps fpdf with the sanitizing and code page translation every
// string goes through.
type writer struct {
	*fpdf.Fpdf
	tr func(string) string
}

func (w *writer) text(v interface{}) string {
	return w.tr(sanitize.Value(v))
}

func (w *writer) remaining() float64 {
	_, pageH := w.GetPageSize()
	_, _, _, bottom := w.GetMargins()
	return pageH - bottom - w.GetY()
}

func (r *Renderer) build(sheet *models.SplitSheet, kind Kind, audit bool) *fpdf.Fpdf {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetTitle(sanitize.Text(sheet.Title), true)
	pdf.SetCreator("Saldaña Music", true)

	// Fixed dates keep output, and therefore its hash, reproducible.
	stamp := sheet.CreatedAt
	if sheet.FinalizedAt != nil {
		stamp = *sheet.FinalizedAt
	}
	stamp = stamp.UTC()
	// Map-backed catalog entries are written in key order so equal input
	// yields equal bytes.
	pdf.SetCatalogSort(true)
	pdf.SetCreationDate(stamp)
	pdf.SetModificationDate(stamp)

	if r.logo != nil {
		pdf.RegisterImageOptionsReader(logoName, fpdf.ImageOptions{ImageType: r.logoType}, bytes.NewReader(r.logo))
	}

	w := &writer{Fpdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}

	switch kind {
	case KindFull:
		pdf.SetAutoPageBreak(true, pageMargin)
		r.cover(w, sheet)
		rightsTables(w, sheet)
		detailPages(w, sheet)
	default:
		pdf.SetAutoPageBreak(false, pageMargin)
		r.summary(w, sheet)
	}

	if audit {
		auditPage(w, sheet)
	}
	return pdf
}

func (r *Renderer) header(w *writer) {
	if r.logo != nil {
		w.ImageOptions(logoName, pageMargin, pageMargin, 0, logoHeight, false,
			fpdf.ImageOptions{ImageType: r.logoType}, 0, "")
		w.SetY(pageMargin + logoHeight + 3)
	}
	w.SetFont("Helvetica", "B", 10)
	w.SetTextColor(110, 110, 110)
	w.CellFormat(0, 6, w.tr("SALDAÑA MUSIC"), "", 1, "R", false, 0, "")
	w.SetTextColor(0, 0, 0)
}

func (r *Renderer) summary(w *writer, sheet *models.SplitSheet) {
	w.AddPage()
	r.header(w)

	w.SetFont("Helvetica", "B", 20)
	w.CellFormat(0, 12, w.text(sheet.Title), "", 1, "L", false, 0, "")
	w.SetFont("Helvetica", "", 10)
	for _, line := range metadata(sheet) {
		w.CellFormat(0, 6, w.text(line), "", 1, "L", false, 0, "")
	}
	w.Ln(6)

	widths := []float64{50, 55, 30, 20, 25}
	tableHeader(w, widths, []string{"Name", "Email", "Role", "Share", "Signed"})

	w.SetFont("Helvetica", "", 9)
	for i := range sheet.Collaborators {
		if w.remaining() < overflowThreshold {
			break
		}
		c := &sheet.Collaborators[i]
		signed := "Pending"
		if c.HasSigned {
			signed = "Signed"
		}
		cells := []string{
			sanitize.Truncate(c.DisplayName(), 30),
			sanitize.Truncate(c.Email, 34),
			string(c.Role),
			c.Percentage.StringFixed(2) + "%",
			signed,
		}
		for j, cell := range cells {
			w.CellFormat(widths[j], 8, w.text(cell), "1", 0, "L", false, 0, "")
		}
		w.Ln(-1)
	}

	w.Ln(4)
	w.SetFont("Helvetica", "B", 10)
	w.CellFormat(0, 6, w.text("Total: "+sheet.PercentageTotal().StringFixed(2)+"%"), "", 1, "R", false, 0, "")
}

func metadata(sheet *models.SplitSheet) []string {
	lines := make([]string, 0, 6)
	if sheet.Label != "" {
		lines = append(lines, "Label: "+sheet.Label)
	}
	if sheet.Studio != "" {
		lines = append(lines, "Studio: "+sheet.Studio)
	}
	if sheet.ProducerName != "" {
		lines = append(lines, "Producer: "+sheet.ProducerName)
	}
	lines = append(lines,
		"Status: "+string(sheet.Status),
		"Created: "+sheet.CreatedAt.UTC().Format("2006-01-02"),
	)
	if sheet.FinalizedAt != nil {
		lines = append(lines, "Finalized: "+sheet.FinalizedAt.UTC().Format(time.RFC3339))
	}
	return lines
}

func tableHeader(w *writer, widths []float64, titles []string) {
	w.SetFont("Helvetica", "B", 9)
	w.SetFillColor(230, 230, 230)
	for i, title := range titles {
		w.CellFormat(widths[i], 8, w.tr(title), "1", 0, "L", true, 0, "")
	}
	w.Ln(-1)
}

func (r *Renderer) cover(w *writer, sheet *models.SplitSheet) {
	w.AddPage()
	r.header(w)

	w.SetY(90)
	w.SetFont("Helvetica", "B", 28)
	w.MultiCell(0, 14, w.text(sheet.Title), "", "C", false)
	w.Ln(4)
	w.SetFont("Helvetica", "", 14)
	w.CellFormat(0, 8, w.tr("Split Sheet Agreement"), "", 1, "C", false, 0, "")
	w.Ln(10)
	w.SetFont("Helvetica", "", 11)
	for _, line := range metadata(sheet) {
		w.CellFormat(0, 7, w.text(line), "", 1, "C", false, 0, "")
	}
	w.CellFormat(0, 7, w.text(fmt.Sprintf("Collaborators: %d", len(sheet.Collaborators))), "", 1, "C", false, 0, "")
}

func rightsTables(w *writer, sheet *models.SplitSheet) {
	w.AddPage()

	var composition, master []models.Collaborator
	for _, c := range sheet.Collaborators {
		switch c.Role {
		case models.RoleProducer, models.RoleMasterOwner:
			master = append(master, c)
		default:
			composition = append(composition, c)
		}
	}

	rightsTable(w, "Composition Rights (Publishing)", composition)
	w.Ln(8)
	rightsTable(w, "Master Rights (Sound Recording)", master)
}

// rightsTable lists rows and pads the table with blank rows up to fullRows.
func rightsTable(w *writer, title string, rows []models.Collaborator) {
	w.SetFont("Helvetica", "B", 13)
	w.CellFormat(0, 9, w.tr(title), "", 1, "L", false, 0, "")

	widths := []float64{60, 40, 30, 50}
	tableHeader(w, widths, []string{"Name", "Role", "Share", "PRO / IPI"})

	w.SetFont("Helvetica", "", 9)
	count := len(rows)
	if count < fullRows {
		count = fullRows
	}
	for i := 0; i < count; i++ {
		cells := []string{"", "", "", ""}
		if i < len(rows) {
			c := &rows[i]
			cells = []string{
				sanitize.Truncate(c.DisplayName(), 34),
				string(c.Role),
				c.Percentage.StringFixed(2) + "%",
				sanitize.Truncate(strings.Trim(c.PRO+" / "+c.IPI, " /"), 28),
			}
		}
		for j, cell := range cells {
			w.CellFormat(widths[j], 8, w.text(cell), "1", 0, "L", false, 0, "")
		}
		w.Ln(-1)
	}
}

// detailPages writes one block per collaborator, blocksOnPage to a page,
// padding the last page with blank blocks.
func detailPages(w *writer, sheet *models.SplitSheet) {
	total := len(sheet.Collaborators)
	if rem := total % blocksOnPage; rem != 0 || total == 0 {
		total += blocksOnPage - rem
	}

	for i := 0; i < total; i++ {
		if i%blocksOnPage == 0 {
			w.AddPage()
			w.SetFont("Helvetica", "B", 13)
			w.CellFormat(0, 9, w.tr("Collaborator Details"), "", 1, "L", false, 0, "")
		}
		var c *models.Collaborator
		if i < len(sheet.Collaborators) {
			c = &sheet.Collaborators[i]
		}
		detailBlock(w, i+1, c)
	}
}

func detailBlock(w *writer, n int, c *models.Collaborator) {
	field := func(label, value string) {
		w.SetFont("Helvetica", "B", 8)
		w.CellFormat(35, 5.5, w.tr(label), "", 0, "L", false, 0, "")
		w.SetFont("Helvetica", "", 8)
		w.CellFormat(0, 5.5, w.text(value), "B", 1, "L", false, 0, "")
	}

	w.SetFont("Helvetica", "B", 10)
	w.CellFormat(0, 7, w.tr(fmt.Sprintf("Collaborator %d", n)), "", 1, "L", false, 0, "")

	var name, email, phone, address, taxID, pro, ipi, publisher, role, share, signed string
	if c != nil {
		name, email, phone, address = c.LegalName, c.Email, c.Phone, c.Address
		taxID, pro, ipi, publisher = c.TaxID, c.PRO, c.IPI, c.PublishingCompany
		role = string(c.Role)
		share = c.Percentage.StringFixed(2) + "%"
		if c.HasSigned && c.SignedAt != nil {
			signed = "Signed electronically " + c.SignedAt.UTC().Format(time.RFC3339)
		}
	}

	field("Legal name", name)
	field("Email", email)
	field("Phone", phone)
	field("Address", sanitize.Truncate(address, 90))
	field("Tax ID", taxID)
	field("PRO / IPI", strings.Trim(pro+" / "+ipi, " /"))
	field("Publisher", publisher)
	field("Role / Share", strings.Trim(role+" / "+share, " /"))
	field("Signature", signed)
	w.Ln(4)
}

func auditPage(w *writer, sheet *models.SplitSheet) {
	w.SetAutoPageBreak(true, pageMargin)
	w.AddPage()

	w.SetFont("Courier", "B", 12)
	w.CellFormat(0, 8, "AUDIT TRAIL", "", 1, "L", false, 0, "")
	w.SetFont("Courier", "", 9)

	line := func(s string) {
		w.MultiCell(0, 4.5, w.text(s), "", "L", false)
	}

	line("Document ID: " + sheet.ID)
	line("Title:       " + sheet.Title)
	line("Status:      " + string(sheet.Status))
	if sheet.FinalizedAt != nil {
		line("Finalized:   " + sheet.FinalizedAt.UTC().Format(time.RFC3339))
	}
	line(strings.Repeat("-", 80))

	n := 0
	for i := range sheet.Collaborators {
		c := &sheet.Collaborators[i]
		if !c.HasSigned {
			continue
		}
		n++
		signedAt := ""
		if c.SignedAt != nil {
			signedAt = c.SignedAt.UTC().Format(time.RFC3339)
		}
		line(fmt.Sprintf("[%d] %s", n, c.Email))
		line("    Signed at:  " + signedAt)
		line("    IP address: " + c.IPAddress)
		line("    User agent: " + c.UserAgent)
		line("    Signature:  " + c.SignatureHash)
		w.Ln(2)
	}
	if n == 0 {
		line("No signatures recorded.")
	}
}
