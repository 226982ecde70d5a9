package world

import (
	"encoding/binary"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
)

// Journal keeps the edit logs of evicted chunks, zstd-compressed, so a chunk
// that comes back into range is regenerated with the player's changes. It is
// bounded: when full, the oldest entry is dropped.
type Journal struct {
	mu       sync.Mutex
	capacity int
	entries  map[ChunkCoord]journalEntry
	order    []ChunkCoord // insertion order, oldest first

	enc *zstd.Encoder
	dec *zstd.Decoder

	rawBytes        int
	compressedBytes int
}

// NewJournal creates a journal holding at most capacity chunks. A capacity of
// zero disables it: Store discards and Load finds nothing.
func NewJournal(capacity int) (*Journal, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, errors.Wrap(err, "create zstd encoder")
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, errors.Wrap(err, "create zstd decoder")
	}
	if capacity < 0 {
		capacity = 0
	}
	return &Journal{
		capacity: capacity,
		entries:  make(map[ChunkCoord]journalEntry),
		enc:      enc,
		dec:      dec,
	}, nil
}

// Store records the edits of coord, replacing any earlier record. An empty
// edit list removes the record.
func (j *Journal) Store(coord ChunkCoord, edits []Edit) {
	if j.capacity == 0 {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	if len(edits) == 0 {
		j.deleteLocked(coord)
		return
	}

	raw := encodeEdits(edits)
	packed := j.enc.EncodeAll(raw, make([]byte, 0, len(raw)/2))
	if _, ok := j.entries[coord]; ok {
		j.deleteLocked(coord)
	}
	for len(j.order) >= j.capacity {
		j.deleteLocked(j.order[0])
	}
	j.entries[coord] = journalEntry{packed: packed, rawLen: len(raw)}
	j.order = append(j.order, coord)
	j.rawBytes += len(raw)
	j.compressedBytes += len(packed)
}

// Load returns the edits recorded for coord in index order, or nil.
func (j *Journal) Load(coord ChunkCoord) ([]Edit, error) {
	j.mu.Lock()
	e, ok := j.entries[coord]
	j.mu.Unlock()
	if !ok {
		return nil, nil
	}
	raw, err := j.dec.DecodeAll(e.packed, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "decode journal entry %d,%d", coord.X, coord.Z)
	}
	return decodeEdits(raw)
}

// Len returns the number of chunks with recorded edits.
func (j *Journal) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.entries)
}

// Sizes reports the uncompressed and compressed size of the stored records.
func (j *Journal) Sizes() (raw, compressed int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.rawBytes, j.compressedBytes
}

// Close releases the codec resources.
func (j *Journal) Close() {
	j.enc.Close()
	j.dec.Close()
}

func (j *Journal) deleteLocked(coord ChunkCoord) {
	e, ok := j.entries[coord]
	if !ok {
		return
	}
	delete(j.entries, coord)
	j.rawBytes -= e.rawLen
	j.compressedBytes -= len(e.packed)
	for i, c := range j.order {
		if c == coord {
			j.order = append(j.order[:i], j.order[i+1:]...)
			break
		}
	}
}

type journalEntry struct {
	packed []byte
	rawLen int
}

// Record layout: uvarint count, then count * (uint16 LE index, block byte).
func encodeEdits(edits []Edit) []byte {
	buf := make([]byte, binary.MaxVarintLen64, binary.MaxVarintLen64+len(edits)*3)
	n := binary.PutUvarint(buf, uint64(len(edits)))
	buf = buf[:n]
	for _, e := range edits {
		buf = binary.LittleEndian.AppendUint16(buf, e.Index)
		buf = append(buf, byte(e.Block))
	}
	return buf
}

func decodeEdits(raw []byte) ([]Edit, error) {
	count, n := binary.Uvarint(raw)
	if n <= 0 {
		return nil, errors.New("journal record: bad edit count")
	}
	raw = raw[n:]
	if uint64(len(raw)) != count*3 {
		return nil, errors.Errorf("journal record: %d bytes for %d edits", len(raw), count)
	}
	out := make([]Edit, count)
	for i := range out {
		idx := binary.LittleEndian.Uint16(raw[i*3:])
		if int(idx) >= ChunkVolume {
			return nil, errors.Errorf("journal record: index %d out of range", idx)
		}
		out[i] = Edit{Index: idx, Block: BlockType(raw[i*3+2])}
	}
	return out, nil
}
