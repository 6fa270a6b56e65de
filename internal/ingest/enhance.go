package ingest

import (
	"image"
	"image/color"
	"sort"

	"github.com/disintegration/imaging"
)

// enhanceForOCR prepares a rasterized page for tesseract. Scanned legal
// documents are frequently low-contrast photocopies; the pipeline is
// grayscale, 2x Lanczos upscale, contrast and sharpen, a 3x3 median
// despeckle, then a hard binarize.
func enhanceForOCR(img image.Image) image.Image {
	out := imaging.Grayscale(img)
	bounds := out.Bounds()
	out = imaging.Resize(out, bounds.Dx()*2, 0, imaging.Lanczos)
	out = imaging.AdjustContrast(out, 30)
	out = imaging.Sharpen(out, 1.5)
	return binarize(median3x3(out), 128)
}

// median3x3 applies a 3x3 median filter over a grayscale image. Removes
// salt-and-pepper scan noise that the contrast boost amplifies.
func median3x3(src *image.NRGBA) *image.NRGBA {
	bounds := src.Bounds()
	dst := image.NewNRGBA(bounds)
	var window [9]uint8

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			n := 0
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := x+dx, y+dy
					if nx < bounds.Min.X || nx >= bounds.Max.X || ny < bounds.Min.Y || ny >= bounds.Max.Y {
						continue
					}
					window[n] = src.NRGBAAt(nx, ny).R
					n++
				}
			}
			sort.Slice(window[:n], func(i, j int) bool { return window[i] < window[j] })
			v := window[n/2]
			dst.SetNRGBA(x, y, color.NRGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return dst
}

// binarize thresholds a grayscale image to pure black and white. Pixels
// at exactly the threshold stay black.
func binarize(src *image.NRGBA, threshold uint8) *image.NRGBA {
	bounds := src.Bounds()
	dst := image.NewNRGBA(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			v := uint8(0)
			if src.NRGBAAt(x, y).R > threshold {
				v = 255
			}
			dst.SetNRGBA(x, y, color.NRGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return dst
}
