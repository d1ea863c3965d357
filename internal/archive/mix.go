package archive

import (
	"errors"
	"fmt"
	"math/big"
	"slices"

	"golang.org/x/crypto/blowfish"

	"github.com/Mailaender/OpenRA/internal/binio"
)

const (
	mixFlagChecksum  = 0x00010000
	mixFlagEncrypted = 0x00020000

	mixEntrySize     = 12
	mixKeySourceSize = 80
	mixKeyBlockSize  = 40
	mixKeySize       = 56

	// LocalMixDatabase is the entry that lists the filenames of a mix.
	LocalMixDatabase = "local mix database.dat"

	lmdNamesOffset = 48
)

// public key that Westwood used to wrap the blowfish keys of encrypted
// mix headers
var (
	mixKeyModulus, _ = new(big.Int).SetString("51bcda086d39fce4565160d651713fa2e8aa54fa6682b04aabdd0e6af8b0c1e6d1fb4f3daa437f15", 16)
	mixKeyExponent   = big.NewInt(0x10001)
)

type mixEntry struct {
	ID     uint32
	Offset uint32
	Length uint32
}

type mixHeader struct {
	flags     uint32
	dataStart int64
	dataSize  int64
	entries   []mixEntry
}

// readMixHeader parses the plain Tiberian Dawn header, the flagged Red
// Alert header, or an encrypted one. Structural mismatches are reported as
// binio.ErrNotThisFormat.
func readMixHeader(c *binio.Cursor) (mixHeader, error) {
	first, err := c.ReadU16LE()
	if err != nil {
		return mixHeader{}, notMix("short header")
	}
	if first != 0 {
		c.SeekTo(0)
		return readMixTable(c, c, mixHeader{})
	}

	h, err := readFlaggedMixHeader(c)
	if errors.Is(err, binio.ErrNotThisFormat) {
		// an empty Tiberian Dawn mix also starts with a zero word
		c.SeekTo(0)
		if td, tdErr := readMixTable(c, c, mixHeader{}); tdErr == nil && len(td.entries) == 0 && td.dataStart+td.dataSize == c.Len() {
			return td, nil
		}
	}
	return h, err
}

func notMix(format string, args ...any) error {
	return fmt.Errorf("mix: %s: %w", fmt.Sprintf(format, args...), binio.ErrNotThisFormat)
}

func readFlaggedMixHeader(c *binio.Cursor) (mixHeader, error) {
	var h mixHeader
	hi, err := c.ReadU16LE()
	if err != nil {
		return h, notMix("short header")
	}
	h.flags = uint32(hi) << 16
	if h.flags&^(mixFlagChecksum|mixFlagEncrypted) != 0 {
		return h, notMix("flags 0x%08x", h.flags)
	}

	if h.flags&mixFlagEncrypted == 0 {
		return readMixTable(c, c, h)
	}

	table, dataStart, err := decryptMixHeader(c)
	if err != nil {
		return h, err
	}
	h.dataStart = dataStart
	return readMixTable(c, table, h)
}

// readMixTable reads the entry count, body size and entries from table.
// The body of unencrypted mixes starts right after the table.
func readMixTable(c, table *binio.Cursor, h mixHeader) (mixHeader, error) {
	count, err := table.ReadU16LE()
	if err != nil {
		return h, notMix("short header")
	}
	dataSize, err := table.ReadU32LE()
	if err != nil {
		return h, notMix("short header")
	}
	if table.Remaining() < int64(count)*mixEntrySize {
		return h, notMix("%d entries exceed header", count)
	}

	h.entries = make([]mixEntry, count)
	for i := range h.entries {
		if err := table.ReadStruct(&h.entries[i]); err != nil {
			return h, err
		}
	}

	if h.flags&mixFlagEncrypted == 0 {
		h.dataStart = table.Position()
	}
	h.dataSize = int64(dataSize)
	if h.dataStart+h.dataSize > c.Len() {
		return h, notMix("body of %d bytes at %d exceeds %d", h.dataSize, h.dataStart, c.Len())
	}

	return h, nil
}

// decryptMixHeader reads the key source at the cursor and returns a cursor
// over the decrypted header, along with the offset the body starts at.
func decryptMixHeader(c *binio.Cursor) (*binio.Cursor, int64, error) {
	keySource, err := c.ReadBytes(mixKeySourceSize)
	if err != nil {
		return nil, 0, fmt.Errorf("mix: short key source: %w", binio.ErrNotThisFormat)
	}
	fish, err := blowfish.NewCipher(mixBlowfishKey(keySource))
	if err != nil {
		return nil, 0, fmt.Errorf("mix key: %w", err)
	}

	start := c.Position()
	first, err := c.Peek(blowfish.BlockSize)
	if err != nil {
		return nil, 0, fmt.Errorf("mix: short encrypted header: %w", binio.ErrNotThisFormat)
	}
	decryptMixBlocks(fish, first)

	// six header bytes plus the table, rounded up to whole blocks
	count := int64(first[0]) | int64(first[1])<<8
	blocks := (6 + count*mixEntrySize + blowfish.BlockSize - 1) / blowfish.BlockSize

	if blocks*blowfish.BlockSize > c.Remaining() {
		return nil, 0, fmt.Errorf("mix: encrypted header of %d blocks: %w", blocks, binio.ErrNotThisFormat)
	}
	header, err := c.ReadBytes(int(blocks * blowfish.BlockSize))
	if err != nil {
		return nil, 0, err
	}
	decryptMixBlocks(fish, header)

	return binio.CursorFromBytes(header), start + int64(len(header)), nil
}

// mixBlowfishKey unwraps the 56 byte blowfish key from the RSA key source.
// Both 40 byte blocks are little-endian integers; each yields 39 key bytes.
func mixBlowfishKey(source []byte) []byte {
	key := make([]byte, 0, 2*(mixKeyBlockSize-1))
	for block := 0; block < mixKeySourceSize/mixKeyBlockSize; block++ {
		le := source[block*mixKeyBlockSize : (block+1)*mixKeyBlockSize]
		n := new(big.Int).SetBytes(reversed(le))
		n.Exp(n, mixKeyExponent, mixKeyModulus)
		plain := reversed(n.FillBytes(make([]byte, mixKeyBlockSize)))
		key = append(key, plain[:mixKeyBlockSize-1]...)
	}
	return key[:mixKeySize]
}

func reversed(b []byte) []byte {
	out := slices.Clone(b)
	slices.Reverse(out)
	return out
}

// decryptMixBlocks decrypts whole blocks in place. Westwood's cipher works
// on little-endian words, so each word is byte swapped around the standard
// big-endian implementation.
func decryptMixBlocks(fish *blowfish.Cipher, data []byte) {
	for i := 0; i+blowfish.BlockSize <= len(data); i += blowfish.BlockSize {
		block := data[i : i+blowfish.BlockSize]
		swapWords(block)
		fish.Decrypt(block, block)
		swapWords(block)
	}
}

func swapWords(block []byte) {
	slices.Reverse(block[0:4])
	slices.Reverse(block[4:8])
}

// SniffMix reports whether c is positioned at a structurally valid mix
// header. The position is restored.
func SniffMix(c *binio.Cursor) bool {
	pos := c.Position()
	defer c.SeekTo(pos)

	sub, err := c.Slice(pos, c.Len()-pos)
	if err != nil {
		return false
	}
	_, err = readMixHeader(sub)
	return err == nil
}

// Mix is a read-only Westwood mix file. Entries are stored by filename
// hash; names come from the embedded local mix database and from the
// candidate names supplied at open time. Unresolved entries are listed
// under their id as eight hex digits.
type Mix struct {
	name      string
	src       *binio.Source
	index     *Index
	byID      map[uint32]Entry
	encrypted bool
}

// TryOpenMix opens src as a mix file. names are candidate filenames used to
// resolve entry ids.
func TryOpenMix(src *binio.Source, name string, names []string) (*Mix, error) {
	h, err := readMixHeader(binio.NewCursor(src))
	if err != nil {
		return nil, err
	}

	m := &Mix{
		name:      name,
		src:       src,
		byID:      make(map[uint32]Entry, len(h.entries)),
		encrypted: h.flags&mixFlagEncrypted != 0,
	}

	for _, e := range h.entries {
		if int64(e.Offset)+int64(e.Length) > h.dataSize {
			return nil, binio.Malformed("mix %s entry %08X runs past the body", name, e.ID)
		}
		if _, dup := m.byID[e.ID]; dup {
			return nil, binio.Malformed("mix %s has duplicate id %08X", name, e.ID)
		}
		m.byID[e.ID] = Entry{Offset: h.dataStart + int64(e.Offset), Length: int64(e.Length)}
	}

	candidates := slices.Clone(names)
	if lmd, ok := m.lookupID(LocalMixDatabase); ok {
		data, err := m.segment(lmd)
		if err == nil {
			if b, err := data.Bytes(); err == nil {
				if listed, err := parseLocalMixDatabase(b); err == nil {
					candidates = append(candidates, listed...)
				}
			}
		}
		candidates = append(candidates, LocalMixDatabase)
	}

	resolved := make(map[uint32]string)
	used := make(map[string]bool)
	for _, n := range candidates {
		for _, id := range []uint32{ClassicHash(n), CRCHash(n)} {
			if _, ok := m.byID[id]; ok && resolved[id] == "" && !used[n] {
				resolved[id] = n
				used[n] = true
			}
		}
	}

	entries := make([]Entry, 0, len(m.byID))
	for _, e := range h.entries {
		entry := m.byID[e.ID]
		entry.Name = resolved[e.ID]
		if entry.Name == "" {
			entry.Name = fmt.Sprintf("%08X", e.ID)
		}
		m.byID[e.ID] = entry
		entries = append(entries, entry)
	}

	if m.index, err = NewIndex(entries); err != nil {
		return nil, fmt.Errorf("mix %s: %w", name, err)
	}
	return m, nil
}

func (m *Mix) lookupID(name string) (Entry, bool) {
	for _, id := range []uint32{ClassicHash(name), CRCHash(name)} {
		if e, ok := m.byID[id]; ok {
			return e, true
		}
	}
	return Entry{}, false
}

func (m *Mix) lookup(name string) (Entry, bool) {
	if e, ok := m.index.Lookup(name); ok {
		return e, true
	}
	return m.lookupID(name)
}

func (m *Mix) segment(e Entry) (*binio.Source, error) {
	return m.src.Segment(e.Offset, e.Length)
}

func (m *Mix) Name() string {
	return m.name
}

// Encrypted reports whether the header was blowfish encrypted.
func (m *Mix) Encrypted() bool {
	return m.encrypted
}

// Index returns the resolved directory of the mix.
func (m *Mix) Index() *Index {
	return m.index
}

func (m *Mix) Contents() []string {
	return m.index.Contents()
}

// Contains reports whether name is listed or hashes to a stored id.
func (m *Mix) Contains(name string) bool {
	_, ok := m.lookup(name)
	return ok
}

func (m *Mix) Open(name string) (*binio.Source, bool, error) {
	e, ok := m.lookup(name)
	if !ok {
		return nil, false, nil
	}
	seg, err := m.segment(e)
	if err != nil {
		return nil, false, fmt.Errorf("mix entry %s: %w", name, err)
	}
	return seg, true, nil
}

func (m *Mix) OpenPackage(name string, opener Opener) (Package, bool, error) {
	return openNested(m, name, opener)
}

func (m *Mix) Close() error {
	return m.src.Close()
}

// parseLocalMixDatabase returns the filenames listed by an XCC local mix
// database: a count at offset 48 followed by NUL terminated names.
func parseLocalMixDatabase(data []byte) ([]string, error) {
	c := binio.CursorFromBytes(data)
	if err := c.SeekTo(lmdNamesOffset); err != nil {
		return nil, err
	}
	count, err := c.ReadI32LE()
	if err != nil {
		return nil, err
	}
	if count < 0 || int64(count) > c.Remaining() {
		return nil, binio.Malformed("local mix database lists %d names", count)
	}

	names := make([]string, 0, count)
	for i := 0; i < int(count); i++ {
		var name []byte
		for {
			b, err := c.ReadU8()
			if err != nil {
				return nil, err
			}
			if b == 0 {
				break
			}
			name = append(name, b)
		}
		names = append(names, string(name))
	}
	return names, nil
}
