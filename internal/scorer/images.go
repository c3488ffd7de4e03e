package scorer

import (
	"bytes"
	"fmt"
	"image"
	"math"
	"os"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

const (
	minImageDimension = 100
	skinRatioMax      = 0.6
	skinPenalty       = 25
	lowResPenalty     = 10
	histogramPenalty  = 5
	aspectPenalty     = 5
	editorScanBytes   = 8192
	sampleGrid        = 64
)

var editorSignatures = [][]byte{
	[]byte("Adobe Photoshop"),
	[]byte("Photoshop"),
	[]byte("GIMP"),
	[]byte("Paint.NET"),
	[]byte("Pixelmator"),
}

type imageCheck struct {
	penalty  int
	issues   []string
	warnings []string
	flags    []string
}

// checkImage runs the best-effort image heuristics for one file. A file
// that cannot be read or decoded degrades to a warning, never a failure.
func checkImage(path string) imageCheck {
	var res imageCheck

	data, err := os.ReadFile(path)
	if err != nil {
		res.warnings = append(res.warnings, fmt.Sprintf("image %s unreadable: skipped checks", path))
		return res
	}

	// Editor signatures in embedded metadata are a warning only, never
	// a penalty: edited product photos are common and legitimate.
	scan := data
	if len(scan) > editorScanBytes {
		scan = scan[:editorScanBytes]
	}
	for _, sig := range editorSignatures {
		if bytes.Contains(scan, sig) {
			res.warnings = append(res.warnings, fmt.Sprintf("image %s carries editor signature %q", path, sig))
			break
		}
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		res.warnings = append(res.warnings, fmt.Sprintf("image %s undecodable: skipped pixel checks", path))
		return res
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	if w < minImageDimension || h < minImageDimension {
		res.penalty += lowResPenalty
		res.issues = append(res.issues, fmt.Sprintf("image %s below resolution floor (%dx%d)", path, w, h))
	}

	if w > 0 && h > 0 {
		ratio := float64(w) / float64(h)
		if ratio > 5 || ratio < 0.2 {
			res.penalty += aspectPenalty
			res.warnings = append(res.warnings, fmt.Sprintf("image %s has extreme aspect ratio %.2f", path, ratio))
		}
	}

	skinRatio, lumaMean, lumaStddev := samplePixels(img)

	if skinRatio > skinRatioMax {
		res.penalty += skinPenalty
		res.issues = append(res.issues, fmt.Sprintf("image %s: high skin-tone ratio %.2f, manual review required", path, skinRatio))
		res.flags = append(res.flags, "manual_image_review")
	}

	if lumaMean < 30 || lumaMean > 225 || lumaStddev < 20 {
		res.penalty += histogramPenalty
		res.warnings = append(res.warnings, fmt.Sprintf("image %s has an outlier luminance histogram (mean %.0f, stddev %.0f)", path, lumaMean, lumaStddev))
	}

	return res
}

// samplePixels walks up to a sampleGrid x sampleGrid lattice of pixels and
// returns the skin-tone hit ratio plus luminance mean and stddev.
func samplePixels(img image.Image) (skinRatio, lumaMean, lumaStddev float64) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return 0, 0, 0
	}

	stepX := w / sampleGrid
	if stepX < 1 {
		stepX = 1
	}
	stepY := h / sampleGrid
	if stepY < 1 {
		stepY = 1
	}

	var (
		samples  float64
		skinHits float64
		lumaSum  float64
		lumaSqs  float64
	)

	for y := b.Min.Y; y < b.Max.Y; y += stepY {
		for x := b.Min.X; x < b.Max.X; x += stepX {
			r16, g16, b16, _ := img.At(x, y).RGBA()
			r := float64(r16 >> 8)
			g := float64(g16 >> 8)
			bb := float64(b16 >> 8)

			samples++
			if isSkinTone(r, g, bb) {
				skinHits++
			}

			luma := 0.299*r + 0.587*g + 0.114*bb
			lumaSum += luma
			lumaSqs += luma * luma
		}
	}

	if samples == 0 {
		return 0, 0, 0
	}
	lumaMean = lumaSum / samples
	variance := lumaSqs/samples - lumaMean*lumaMean
	if variance < 0 {
		variance = 0
	}
	return skinHits / samples, lumaMean, math.Sqrt(variance)
}

// isSkinTone is the naive RGB skin heuristic: reddish pixels with moderate
// spread between channels.
func isSkinTone(r, g, b float64) bool {
	maxC := math.Max(r, math.Max(g, b))
	minC := math.Min(r, math.Min(g, b))
	return r > 95 && g > 40 && b > 20 &&
		maxC-minC > 15 &&
		math.Abs(r-g) > 15 &&
		r > g && r > b
}
