// Package preview renders density slices of a noise graph as images, for
// checking graphs without a GPU.
package preview

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"os"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/gogpu/terrain/noise"
)

// Options controls Slice and Render.
type Options struct {
	// Low and High are the densities drawn black and white. Both zero
	// means [-1, 1].
	Low, High float32
	// Width and Height are the rendered size; zero keeps the slice size.
	Width, Height int
	// Smooth scales with Catmull-Rom instead of nearest neighbour.
	Smooth bool
	// Label is drawn in the top-left corner when set.
	Label string
}

func (o Options) levels() (lo, hi float32) {
	if o.Low == 0 && o.High == 0 {
		return -1, 1
	}
	return o.Low, o.High
}

// Horizontal returns the lattice of a w x d slice at height y, with its
// first sample at (x0, z0) in units of spacing.
func Horizontal(x0, z0 int64, w, d int, y, spacing float64) noise.Lattice {
	return noise.Lattice{
		Origin:  [3]int64{x0, int64(math.Round(y / spacing)), z0},
		Size:    [3]int{w, 1, d},
		Spacing: spacing,
	}
}

// Slice evaluates plan over lat, which must be one sample high, and maps
// density to gray levels. Solid ground (positive density) is bright. Image
// x follows world x and image y follows world z.
func Slice(ev *noise.Evaluator, plan *noise.CompiledGraph, lat noise.Lattice, opts Options) (*image.Gray, error) {
	if err := lat.Validate(); err != nil {
		return nil, fmt.Errorf("preview: %w", err)
	}
	if lat.Size[1] != 1 {
		return nil, fmt.Errorf("preview: slice lattice is %d samples high, want 1", lat.Size[1])
	}
	lo, hi := opts.levels()
	if !(hi > lo) {
		return nil, errors.New("preview: high level must be above low level")
	}
	if ev == nil {
		ev = noise.NewEvaluator()
	}

	density := make([]float32, lat.Len())
	ev.Evaluate(plan, lat, &noise.Output{Density: density})

	img := image.NewGray(image.Rect(0, 0, lat.Size[0], lat.Size[2]))
	scale := 255 / (hi - lo)
	for k := range lat.Size[2] {
		row := img.Pix[k*img.Stride:]
		for i := range lat.Size[0] {
			v := (density[lat.Index(i, 0, k)] - lo) * scale
			if !(v > 0) {
				v = 0
			}
			row[i] = uint8(min(v, 255) + 0.5)
		}
	}
	return img, nil
}

// Render scales src to the requested size and draws the label.
func Render(src image.Image, opts Options) *image.RGBA {
	b := src.Bounds()
	w, h := opts.Width, opts.Height
	if w <= 0 {
		w = b.Dx()
	}
	if h <= 0 {
		h = b.Dy()
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	var scaler xdraw.Scaler = xdraw.NearestNeighbor
	if opts.Smooth {
		scaler = xdraw.CatmullRom
	}
	scaler.Scale(dst, dst.Bounds(), src, b, xdraw.Src, nil)

	if opts.Label != "" {
		label(dst, opts.Label)
	}
	return dst
}

func label(dst *image.RGBA, text string) {
	face := basicfont.Face7x13
	d := &font.Drawer{Dst: dst, Src: image.NewUniform(color.RGBA{R: 255, G: 220, B: 0, A: 255}), Face: face}
	width := d.MeasureString(text).Ceil()
	box := image.Rect(0, 0, width+4, face.Height+4).Intersect(dst.Bounds())
	xdraw.Draw(dst, box, image.NewUniform(color.RGBA{A: 200}), image.Point{}, xdraw.Over)
	d.Dot = fixed.P(2, 2+face.Ascent)
	d.DrawString(text)
}

// EncodePNG writes img as PNG.
func EncodePNG(w io.Writer, img image.Image) error {
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("preview: encode png: %w", err)
	}
	return nil
}

// WritePNG writes img to path as PNG.
func WritePNG(path string, img image.Image) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("preview: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("preview: %w", cerr)
		}
	}()
	return EncodePNG(f, img)
}
