package detector

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
)

// letterbox scales img to fit a size x size square anchored top-left,
// padding the rest with black. It returns the applied scale.
func letterbox(img image.Image, size int) (*image.NRGBA, float32) {
	b := img.Bounds()
	scale := float32(size) / float32(max(b.Dx(), b.Dy()))

	newWidth := max(1, int(float32(b.Dx())*scale))
	newHeight := max(1, int(float32(b.Dy())*scale))

	resized := imaging.Resize(img, newWidth, newHeight, imaging.Linear)
	canvas := imaging.New(size, size, color.Black)
	return imaging.Paste(canvas, resized, image.Pt(0, 0)), scale
}

// toCHW converts an RGB image to a planar float tensor computing
// (v - mean) / std per channel.
func toCHW(img *image.NRGBA, mean, std float32) []float32 {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	plane := w * h
	out := make([]float32, 3*plane)

	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < w; x++ {
			px := row[x*4:]
			i := y*w + x
			out[i] = (float32(px[0]) - mean) / std
			out[plane+i] = (float32(px[1]) - mean) / std
			out[2*plane+i] = (float32(px[2]) - mean) / std
		}
	}
	return out
}

func sigmoid(x float32) float32 {
	return 1.0 / (1.0 + float32(math.Exp(float64(-x))))
}

func clamp(x, lo, hi float32) float32 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
