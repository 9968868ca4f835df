// Package render draws the combined rubric table as a PNG heatmap.
package render

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"

	"github.com/kiranshivaraju/medalyze/pkg/models"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Title is drawn above the grid.
const Title = "Rubric Heatmap for All Transcripts"

const (
	minWidth     = 1000
	minHeight    = 600
	minRowHeight = 30
	minColWidth  = 60
	maxLabelLen  = 48

	margin      = 20
	titleHeight = 40
	barGap      = 30
	barWidth    = 20
	barLabels   = 50
)

// ErrEmptyTable is returned when there is no cell to draw.
var ErrEmptyTable = errors.New("score table is empty")

var (
	background = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	missing    = color.RGBA{R: 0xd3, G: 0xd3, B: 0xd3, A: 0xff}
	darkText   = color.RGBA{R: 0x26, G: 0x26, B: 0x26, A: 0xff}
	lightText  = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
)

var face font.Face = basicfont.Face7x13

// HeatmapPNG renders the rubric columns of t. The Overall Score column is not
// drawn. Colours span the table's own minimum and maximum.
func HeatmapPNG(t models.ScoreTable) ([]byte, error) {
	img, err := Heatmap(t)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding png: %w", err)
	}
	return buf.Bytes(), nil
}

// Heatmap renders t into an image.
func Heatmap(t models.ScoreTable) (*image.RGBA, error) {
	if len(t.Scores) == 0 || len(t.Columns) == 0 {
		return nil, ErrEmptyTable
	}

	l := newLayout(t)
	img := image.NewRGBA(image.Rect(0, 0, l.width, l.height))
	draw.Draw(img, img.Bounds(), image.NewUniform(background), image.Point{}, draw.Src)

	drawText(img, Title, (l.width-textWidth(Title))/2, margin+13, darkText)

	lo, hi := valueRange(t.Scores)
	for r, row := range t.Scores {
		label := ""
		if r < len(t.RowLabels) {
			label = truncate(t.RowLabels[r])
		}
		y := l.gridTop + r*l.cellH
		drawText(img, label, l.gridLeft-margin/2-textWidth(label), y+l.cellH/2+5, darkText)

		for c := 0; c < l.cols; c++ {
			v := math.NaN()
			if c < len(row) {
				v = row[c]
			}
			cell := l.cell(r, c)
			if math.IsNaN(v) {
				draw.Draw(img, cell, image.NewUniform(missing), image.Point{}, draw.Src)
				continue
			}

			fill := Viridis(normalize(v, lo, hi))
			draw.Draw(img, cell, image.NewUniform(fill), image.Point{}, draw.Src)

			text := fmt.Sprintf("%.2f", v)
			ink := lightText
			if luminance(fill) > 0.408 {
				ink = darkText
			}
			drawText(img, text, cell.Min.X+(l.cellW-textWidth(text))/2, cell.Min.Y+l.cellH/2+5, ink)
		}
	}

	for c := 0; c < l.cols; c++ {
		label := truncate(t.Columns[c])
		x := l.gridLeft + c*l.cellW + l.cellW/2 - 7
		drawVerticalText(img, label, x, l.gridBottom()+margin/2, darkText)
	}

	drawColorbar(img, l, lo, hi)
	return img, nil
}

type layout struct {
	width, height   int
	rows, cols      int
	cellW, cellH    int
	gridLeft        int
	gridTop         int
	colLabelsHeight int
}

func newLayout(t models.ScoreTable) layout {
	l := layout{rows: len(t.Scores), cols: len(t.Columns)}

	rowLabels := 0
	for _, s := range t.RowLabels {
		rowLabels = max(rowLabels, textWidth(truncate(s)))
	}
	for _, s := range t.Columns {
		l.colLabelsHeight = max(l.colLabelsHeight, textWidth(truncate(s)))
	}

	l.gridLeft = margin + rowLabels + margin/2
	l.gridTop = margin + titleHeight
	right := barGap + barWidth + barLabels + margin
	bottom := margin/2 + l.colLabelsHeight + margin

	l.width = max(minWidth, l.gridLeft+l.cols*minColWidth+right)
	l.cellW = (l.width - l.gridLeft - right) / l.cols

	l.height = max(minHeight, l.gridTop+l.rows*minRowHeight+bottom)
	l.cellH = (l.height - l.gridTop - bottom) / l.rows
	return l
}

func (l layout) cell(r, c int) image.Rectangle {
	x := l.gridLeft + c*l.cellW
	y := l.gridTop + r*l.cellH
	return image.Rect(x, y, x+l.cellW, y+l.cellH)
}

func (l layout) gridRight() int  { return l.gridLeft + l.cols*l.cellW }
func (l layout) gridBottom() int { return l.gridTop + l.rows*l.cellH }

func (l layout) colorbar() image.Rectangle {
	x := l.gridRight() + barGap
	return image.Rect(x, l.gridTop, x+barWidth, l.gridBottom())
}

func drawColorbar(img *image.RGBA, l layout, lo, hi float64) {
	bar := l.colorbar()
	h := bar.Dy()
	for y := 0; y < h; y++ {
		frac := 1.0
		if h > 1 {
			frac = 1 - float64(y)/float64(h-1)
		}
		row := image.Rect(bar.Min.X, bar.Min.Y+y, bar.Max.X, bar.Min.Y+y+1)
		draw.Draw(img, row, image.NewUniform(Viridis(frac)), image.Point{}, draw.Src)
	}

	drawText(img, fmt.Sprintf("%.2f", hi), bar.Max.X+5, bar.Min.Y+11, darkText)
	drawText(img, fmt.Sprintf("%.2f", lo), bar.Max.X+5, bar.Max.Y, darkText)
}

// valueRange returns the smallest and largest non-NaN scores.
func valueRange(rows [][]float64) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, row := range rows {
		for _, v := range row {
			if math.IsNaN(v) {
				continue
			}
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}
	if math.IsInf(lo, 1) {
		return 0, 0
	}
	return lo, hi
}

// normalize maps v into [0, 1]. A flat range maps everything to 0.
func normalize(v, lo, hi float64) float64 {
	if hi <= lo {
		return 0
	}
	return (v - lo) / (hi - lo)
}

// luminance is the relative luminance of c as defined by WCAG.
func luminance(c color.RGBA) float64 {
	lin := func(v uint8) float64 {
		s := float64(v) / 255
		if s <= 0.03928 {
			return s / 12.92
		}
		return math.Pow((s+0.055)/1.055, 2.4)
	}
	return 0.2126*lin(c.R) + 0.7152*lin(c.G) + 0.0722*lin(c.B)
}

func truncate(s string) string {
	r := []rune(s)
	if len(r) <= maxLabelLen {
		return s
	}
	return string(r[:maxLabelLen-3]) + "..."
}

func textWidth(s string) int {
	return font.MeasureString(face, s).Ceil()
}

// drawText draws s with its baseline at y.
func drawText(dst draw.Image, s string, x, y int, c color.Color) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

// drawVerticalText draws s rotated a quarter turn clockwise, reading top to
// bottom, with its first glyph at (x, y).
func drawVerticalText(dst *image.RGBA, s string, x, y int, c color.Color) {
	w := textWidth(s)
	if w == 0 {
		return
	}
	const h = 13
	tmp := image.NewAlpha(image.Rect(0, 0, w, h))
	d := &font.Drawer{Dst: tmp, Src: image.Opaque, Face: face, Dot: fixed.P(0, 11)}
	d.DrawString(s)

	src := image.NewUniform(c)
	for ty := 0; ty < h; ty++ {
		for tx := 0; tx < w; tx++ {
			a := tmp.AlphaAt(tx, ty)
			if a.A == 0 {
				continue
			}
			p := image.Pt(x+h-1-ty, y+tx)
			mask := image.NewUniform(a)
			draw.DrawMask(dst, image.Rectangle{Min: p, Max: p.Add(image.Pt(1, 1))}, src, image.Point{}, mask, image.Point{}, draw.Over)
		}
	}
}
