package world

// BlockType is the one-byte material tag stored per cell.
type BlockType uint8

const (
	BlockTypeAir BlockType = iota
	BlockTypeBedrock
	BlockTypeStone
	BlockTypeDirt
	BlockTypeGrass
	BlockTypeSand
	BlockTypeSnow
	BlockTypeWater

	// BlockTypePlant never appears in a grid. The mesher emits it for
	// vegetation overlay quads so the renderer can tell them apart.
	BlockTypePlant
)

var blockNames = [...]string{
	BlockTypeAir:     "air",
	BlockTypeBedrock: "bedrock",
	BlockTypeStone:   "stone",
	BlockTypeDirt:    "dirt",
	BlockTypeGrass:   "grass",
	BlockTypeSand:    "sand",
	BlockTypeSnow:    "snow",
	BlockTypeWater:   "water",
	BlockTypePlant:   "plant",
}

func (b BlockType) String() string {
	if int(b) < len(blockNames) {
		return blockNames[b]
	}
	return "unknown"
}

var blockColors = [...][4]uint8{
	BlockTypeAir:     {0, 0, 0, 0},
	BlockTypeBedrock: {40, 40, 44, 255},
	BlockTypeStone:   {125, 125, 125, 255},
	BlockTypeDirt:    {121, 85, 58, 255},
	BlockTypeGrass:   {95, 159, 53, 255},
	BlockTypeSand:    {219, 207, 163, 255},
	BlockTypeSnow:    {240, 244, 250, 255},
	BlockTypeWater:   {48, 92, 196, 160},
	BlockTypePlant:   {70, 140, 40, 255},
}

// Color returns the flat RGBA color used by previews and exports.
func (b BlockType) Color() [4]uint8 {
	if int(b) < len(blockColors) {
		return blockColors[b]
	}
	return [4]uint8{255, 0, 255, 255}
}

// IsOpaque reports whether the block hides the faces of its neighbours.
func (b BlockType) IsOpaque() bool {
	return b != BlockTypeAir && b != BlockTypeWater && b != BlockTypePlant
}

// IsSolid reports whether the block counts as ground for height queries.
func (b BlockType) IsSolid() bool {
	return b.IsOpaque()
}

// ColumnClass is the per-column classification derived at generation time.
type ColumnClass uint8

const (
	ColumnPlain ColumnClass = iota
	ColumnBeach
	ColumnUnderwater
	ColumnPeak
)

func (c ColumnClass) String() string {
	switch c {
	case ColumnPlain:
		return "plain"
	case ColumnBeach:
		return "beach"
	case ColumnUnderwater:
		return "underwater"
	case ColumnPeak:
		return "peak"
	default:
		return "unknown"
	}
}
