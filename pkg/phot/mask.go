package phot

import "math"

// FourPixelMask returns the 2x2 block of pixels closest to a sub-pixel
// position. Positions are pixel-edge based: the fractional part decides
// whether the block extends up or down from the containing pixel.
func FourPixelMask(row, col float64) [][2]int {
	rowOff := [2]int{-1, 0}
	if row-math.Floor(row) >= 0.5 {
		rowOff = [2]int{0, 1}
	}
	colOff := [2]int{-1, 0}
	if col-math.Floor(col) >= 0.5 {
		colOff = [2]int{0, 1}
	}

	r, c := int(row), int(col)
	return [][2]int{
		{r + rowOff[0], c + colOff[0]},
		{r + rowOff[0], c + colOff[1]},
		{r + rowOff[1], c + colOff[0]},
		{r + rowOff[1], c + colOff[1]},
	}
}

// NinePixelMask returns the 3x3 block around the pixel nearest a sub-pixel
// position. Indices falling below zero (position on the image edge) are
// dropped.
func NinePixelMask(row, col float64) [][2]int {
	rowInt := int(row + 0.5)
	colInt := int(col + 0.5)

	var rows, cols []int
	for _, r := range []int{rowInt - 1, rowInt, rowInt + 1} {
		if r >= 0 {
			rows = append(rows, r)
		}
	}
	for _, c := range []int{colInt - 1, colInt, colInt + 1} {
		if c >= 0 {
			cols = append(cols, c)
		}
	}

	mask := make([][2]int, 0, len(rows)*len(cols))
	for _, r := range rows {
		for _, c := range cols {
			mask = append(mask, [2]int{r, c})
		}
	}
	return mask
}

// maskSum sums the masked pixels of an image, skipping indices outside the
// image.
func maskSum(img Image, mask [][2]int) float64 {
	sum := 0.0
	for _, idx := range mask {
		if img.In(idx[0], idx[1]) {
			sum += img.At(idx[0], idx[1])
		}
	}
	return sum
}
