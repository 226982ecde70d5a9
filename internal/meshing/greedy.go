package meshing

import (
	"voxel-stream/internal/world"
)

// VertexStride is number of float32 per vertex (pos.xyz + normal.xyz + material)
const VertexStride = 7

// MeshData is a CPU-side indexed triangle list ready for upload.
type MeshData struct {
	Vertices []float32
	Indices  []uint32
}

// Empty reports whether the mesh has no geometry.
func (m *MeshData) Empty() bool { return len(m.Indices) == 0 }

// VertexCount returns the number of vertices.
func (m *MeshData) VertexCount() int { return len(m.Vertices) / VertexStride }

// QuadCount returns the number of quads (two triangles each).
func (m *MeshData) QuadCount() int { return len(m.Indices) / 6 }

var dims = [3]int{world.ChunkSizeX, world.ChunkSizeY, world.ChunkSizeZ}

// facePass decides whether the cell cur shows a face towards nb, and with
// which material. Zero means no face.
type facePass func(cur, nb world.BlockType) world.BlockType

func solidFace(cur, nb world.BlockType) world.BlockType {
	if cur.IsOpaque() && !nb.IsOpaque() {
		return cur
	}
	return world.BlockTypeAir
}

// buildGreedy sweeps the three axes in both directions, builds a 2D mask of
// visible faces per layer and merges equal-material runs into quads.
func buildGreedy(n *Neighborhood, pass facePass, out *MeshData) {
	ox, oz := n.Coord.X*world.ChunkSizeX, n.Coord.Z*world.ChunkSizeZ
	origin := [3]float32{float32(ox), 0, float32(oz)}

	for d := 0; d < 3; d++ {
		u := (d + 1) % 3
		v := (d + 2) % 3
		du, dv := dims[u], dims[v]
		mask := make([]world.BlockType, du*dv)

		for _, sign := range [2]int{-1, 1} {
			var normal [3]float32
			normal[d] = float32(sign)

			for i := 0; i < dims[d]; i++ {
				// Fill the mask for this layer
				var pos, step [3]int
				step[d] = sign
				empty := true
				for b := 0; b < dv; b++ {
					for a := 0; a < du; a++ {
						pos[d], pos[u], pos[v] = i, a, b
						cur := n.at(pos[0], pos[1], pos[2])
						nb := n.at(pos[0]+step[0], pos[1]+step[1], pos[2]+step[2])
						m := pass(cur, nb)
						mask[b*du+a] = m
						if m != world.BlockTypeAir {
							empty = false
						}
					}
				}
				if empty {
					continue
				}

				plane := float32(i)
				if sign > 0 {
					plane++
				}

				// Greedy merge over mask (width along u, height along v)
				for b := 0; b < dv; b++ {
					for a := 0; a < du; {
						m := mask[b*du+a]
						if m == world.BlockTypeAir {
							a++
							continue
						}
						w := 1
						for a+w < du && mask[b*du+a+w] == m {
							w++
						}
						h := 1
					grow:
						for b+h < dv {
							for k := 0; k < w; k++ {
								if mask[(b+h)*du+a+k] != m {
									break grow
								}
							}
							h++
						}

						var p0, eu, ev [3]float32
						p0[d], p0[u], p0[v] = plane, float32(a), float32(b)
						eu[u] = float32(w)
						ev[v] = float32(h)
						for k := 0; k < 3; k++ {
							p0[k] += origin[k]
						}
						emitQuad(out, p0, eu, ev, sign > 0, normal, m)

						// zero-out mask region
						for hh := 0; hh < h; hh++ {
							for ww := 0; ww < w; ww++ {
								mask[(b+hh)*du+a+ww] = world.BlockTypeAir
							}
						}
						a += w
					}
				}
			}
		}
	}
}

// emitQuad appends four vertices and six indices. Corners run p0, p0+eu,
// p0+eu+ev, p0+ev, which is counter-clockwise seen from the positive side of
// the plane; front=false reverses the winding.
func emitQuad(out *MeshData, p0, eu, ev [3]float32, front bool, normal [3]float32, m world.BlockType) {
	corners := [4][3]float32{
		p0,
		{p0[0] + eu[0], p0[1] + eu[1], p0[2] + eu[2]},
		{p0[0] + eu[0] + ev[0], p0[1] + eu[1] + ev[1], p0[2] + eu[2] + ev[2]},
		{p0[0] + ev[0], p0[1] + ev[1], p0[2] + ev[2]},
	}
	if !front {
		corners[1], corners[3] = corners[3], corners[1]
	}
	appendQuad(out, corners, normal, m)
}

func appendQuad(out *MeshData, corners [4][3]float32, normal [3]float32, m world.BlockType) {
	base := uint32(len(out.Vertices) / VertexStride)
	mat := float32(m)
	for _, c := range corners {
		out.Vertices = append(out.Vertices,
			c[0], c[1], c[2],
			normal[0], normal[1], normal[2],
			mat,
		)
	}
	out.Indices = append(out.Indices, base, base+1, base+2, base+2, base+3, base)
}

// BuildChunkMeshes meshes a captured chunk into its opaque and water meshes.
// Vegetation quads go into the opaque mesh.
func BuildChunkMeshes(n *Neighborhood) (solid, water MeshData) {
	solid.Vertices = make([]float32, 0, 1024)
	solid.Indices = make([]uint32, 0, 256)
	buildGreedy(n, solidFace, &solid)
	buildVegetation(n, &solid)
	buildWater(n, &water)
	return solid, water
}
