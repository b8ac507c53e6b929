package printer

import (
	"bytes"
	"fmt"
	"math"

	"github.com/jung-kurt/gofpdf"
	"github.com/skip2/go-qrcode"

	"github.com/wmstack/blueprintgo/internal/geometry"
	"github.com/wmstack/blueprintgo/internal/models"
)

// Block is one placed object prepared for printing: world-space position,
// extents and yaw, plus the display name.
type Block struct {
	Name       string
	Type       models.BlockType
	Position   models.Vec3
	Dimensions models.Dimensions
	Yaw        float64
}

// GenerateBlueprintPDF renders a top-down plan of the layout onto a single
// A4 landscape sheet: floors and zones as outlines, racks and obstacles as
// filled boxes with labels.
func GenerateBlueprintPDF(blocks []Block, extent geometry.AABB) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()
	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 8, "Warehouse Blueprint", "", 1, "C", false, 0, "")

	// Page area reserved for the plan.
	const planX, planY = 10.0, 25.0
	const planW, planH = 277.0, 175.0

	spanX := extent.MaxX - extent.MinX
	spanZ := extent.MaxZ - extent.MinZ
	if spanX <= 0 || spanZ <= 0 {
		return nil, fmt.Errorf("blueprint extent is degenerate: %+v", extent)
	}
	scale := planW / spanX
	if s := planH / spanZ; s < scale {
		scale = s
	}

	toPage := func(x, z float64) (float64, float64) {
		return planX + (x-extent.MinX)*scale, planY + (z-extent.MinZ)*scale
	}

	pdf.SetDrawColor(120, 120, 120)
	pdf.Rect(planX, planY, spanX*scale, spanZ*scale, "D")

	pdf.SetFont("Arial", "", 7)
	for _, b := range blocks {
		px, pz := toPage(b.Position.X, b.Position.Z)
		w := b.Dimensions.Width * scale
		d := b.Dimensions.Depth * scale

		pdf.TransformBegin()
		pdf.TransformRotate(-b.Yaw*180/math.Pi, px, pz)
		switch b.Type {
		case models.BlockFloor:
			pdf.SetDrawColor(60, 60, 60)
			pdf.Rect(px-w/2, pz-d/2, w, d, "D")
		case models.BlockZone:
			pdf.SetDrawColor(0, 90, 200)
			pdf.Rect(px-w/2, pz-d/2, w, d, "D")
		case models.BlockObstacle:
			pdf.SetFillColor(200, 80, 80)
			pdf.Rect(px-w/2, pz-d/2, w, d, "F")
		default: // rack
			pdf.SetFillColor(180, 180, 180)
			pdf.SetDrawColor(40, 40, 40)
			pdf.Rect(px-w/2, pz-d/2, w, d, "FD")
		}
		if b.Name != "" && w > 6 {
			pdf.SetXY(px-w/2, pz-2)
			pdf.CellFormat(w, 4, b.Name, "", 0, "C", false, 0, "")
		}
		pdf.TransformEnd()
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render blueprint: %w", err)
	}
	return buf.Bytes(), nil
}

// GenerateRackLabelsPDF creates an A4 sheet of QR labels, one per rack,
// for physical tagging. The QR payload is the rack name under the scan
// protocol prefix.
func GenerateRackLabelsPDF(racks []Block) ([]byte, error) {
	const (
		cols       = 3
		rows       = 8
		marginTop  = 10.0
		marginLeft = 10.0
		gap        = 2.0
	)
	pageW, pageH := 210.0, 297.0
	labelW := (pageW - marginLeft*2 - gap*float64(cols-1)) / cols
	labelH := (pageH - marginTop*2 - gap*float64(rows-1)) / rows
	perPage := cols * rows

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetFont("Arial", "B", 9)

	for i, r := range racks {
		if i%perPage == 0 {
			pdf.AddPage()
		}
		idx := i % perPage
		x := marginLeft + float64(idx%cols)*(labelW+gap)
		y := marginTop + float64(idx/cols)*(labelH+gap)

		qrPng, err := qrcode.Encode("BLUEPRINT.LOC/"+r.Name, qrcode.Low, 256)
		if err != nil {
			return nil, fmt.Errorf("failed to encode QR for %s: %w", r.Name, err)
		}
		imgName := fmt.Sprintf("qr_%d", i)
		pdf.RegisterImageOptionsReader(imgName, gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: true}, bytes.NewReader(qrPng))

		qrSize := labelH * 0.7
		if qrSize > labelW {
			qrSize = labelW * 0.9
		}
		pdf.ImageOptions(imgName, x+(labelW-qrSize)/2, y+1, qrSize, qrSize, false, gofpdf.ImageOptions{ImageType: "PNG"}, 0, "")
		pdf.SetXY(x, y+qrSize+2)
		pdf.CellFormat(labelW, 5, r.Name, "", 0, "C", false, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render labels: %w", err)
	}
	return buf.Bytes(), nil
}
