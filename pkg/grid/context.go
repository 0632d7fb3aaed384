package grid

import (
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	xdraw "golang.org/x/image/draw"
)

const (
	contextCaptionHeight = 60
	contextBorder        = 9
	contextCaptionSize   = 24
)

var (
	offTrayFill   = color.NRGBA{230, 230, 230, 255}
	contextCenter = color.NRGBA{255, 255, 0, 255}
	contextPaper  = color.NRGBA{255, 255, 255, 255}
)

// ContextView renders cell (row, col) with its eight neighbors in a 3x3
// mosaic so an annotator can judge a cavity against its surroundings.
// Neighbors beyond the tray edge are grey, the center cell gets a yellow
// frame, and caption is written above the center column.
func ContextView(img image.Image, cells []CellRect, row, col int, caption string) (*image.NRGBA, error) {
	rows, cols, err := gridDims(cells)
	if err != nil {
		return nil, err
	}
	if row < 0 || row >= rows || col < 0 || col >= cols {
		return nil, fmt.Errorf("%w: cell (%d,%d) outside %dx%d grid", ErrInvalidRegion, row, col, rows, cols)
	}

	cw, ch := cells[0].Width(), cells[0].Height()
	canvas := imaging.New(3*cw, 3*ch+contextCaptionHeight, contextPaper)

	for dr := -1; dr <= 1; dr++ {
		for dc := -1; dc <= 1; dc++ {
			r, c := row+dr, col+dc
			at := image.Pt((dc+1)*cw, (dr+1)*ch+contextCaptionHeight)
			slot := image.Rectangle{Min: at, Max: at.Add(image.Pt(cw, ch))}

			if r < 0 || r >= rows || c < 0 || c >= cols {
				fillRect(canvas, slot, offTrayFill)
				continue
			}
			cell := cells[r*cols+c]
			src := image.Rect(cell.X1, cell.Y1, cell.X1+cw, cell.Y1+ch)
			xdraw.Draw(canvas, slot, img, src.Min, xdraw.Src)
		}
	}

	center := image.Rect(cw, ch+contextCaptionHeight, 2*cw, 2*ch+contextCaptionHeight)
	strokeRect(canvas, center.Inset(-contextBorder), contextCenter, contextBorder)

	if caption != "" {
		face, err := labelFace(contextCaptionSize)
		if err != nil {
			return nil, err
		}
		defer face.Close()
		drawTag(canvas, face, cw+4, 12, caption, tagForeground, contextPaper, 0)
	}
	return canvas, nil
}
