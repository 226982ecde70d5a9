package diag

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"

	"voxel-stream/internal/world"
)

// Residency map colors
var (
	ColorEmpty      = color.RGBA{0x10, 0x10, 0x14, 0xff}
	ColorGenerating = color.RGBA{0x80, 0x80, 0x80, 0xff}
	ColorGenerated  = color.RGBA{0xd0, 0xb0, 0x30, 0xff}
	ColorMeshed     = color.RGBA{0x30, 0xb0, 0x50, 0xff}
	ColorDirty      = color.RGBA{0x40, 0x80, 0xe0, 0xff}
	ColorFailed     = color.RGBA{0xe0, 0x30, 0x30, 0xff}
)

func statusColor(st world.ChunkStatus) color.RGBA {
	switch {
	case st.Failed:
		return ColorFailed
	case !st.Generated:
		return ColorGenerating
	case st.Dirty:
		return ColorDirty
	case st.Meshed:
		return ColorMeshed
	default:
		return ColorGenerated
	}
}

// ResidencyImage draws one cell per chunk over the bounding square of the
// resident set, north up, then scales it by scale with nearest-neighbour
// sampling. An empty set yields a single empty cell.
func ResidencyImage(statuses []world.ChunkStatus, scale int) *image.RGBA {
	if scale < 1 {
		scale = 1
	}
	if len(statuses) == 0 {
		img := image.NewRGBA(image.Rect(0, 0, scale, scale))
		draw.Draw(img, img.Bounds(), image.NewUniform(ColorEmpty), image.Point{}, draw.Src)
		return img
	}

	minX, maxX := statuses[0].Coord.X, statuses[0].Coord.X
	minZ, maxZ := statuses[0].Coord.Z, statuses[0].Coord.Z
	for _, st := range statuses[1:] {
		minX = min(minX, st.Coord.X)
		maxX = max(maxX, st.Coord.X)
		minZ = min(minZ, st.Coord.Z)
		maxZ = max(maxZ, st.Coord.Z)
	}

	small := image.NewRGBA(image.Rect(0, 0, maxX-minX+1, maxZ-minZ+1))
	draw.Draw(small, small.Bounds(), image.NewUniform(ColorEmpty), image.Point{}, draw.Src)
	for _, st := range statuses {
		small.SetRGBA(st.Coord.X-minX, st.Coord.Z-minZ, statusColor(st))
	}
	if scale == 1 {
		return small
	}

	b := small.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx()*scale, b.Dy()*scale))
	draw.NearestNeighbor.Scale(out, out.Bounds(), small, b, draw.Src, nil)
	return out
}
