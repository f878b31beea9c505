package amp

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// File is the reassembly state of one transfer, keyed by its hash. Metadata
// fields are filled in as their blocks arrive; zero values mean not known.
type File struct {
	Hash string

	// From the FILE block
	Name     string
	Stamp    string
	Modified time.Time

	// From the ID, DESC and PROG blocks
	FromCallsign string
	Description  string
	Program      string

	// From the SIZE block
	Size       int
	BlockCount int
	BlockSize  int

	sizeKnown     bool
	headers       map[string]bool
	data          map[int]string
	completeFired bool

	// Sorted block numbers, updated as blocks arrive. Update events share
	// them, so they are only ever appended to, resliced or replaced.
	seen   []int
	needed []int

	compressors *CompressorRegistry
	loc         *time.Location
}

func newFile(hash string, compressors *CompressorRegistry, loc *time.Location) *File {
	return &File{
		Hash:        hash,
		headers:     make(map[string]bool),
		data:        make(map[int]string),
		seen:        []int{},
		compressors: compressors,
		loc:         loc,
	}
}

// addBlock applies b and reports whether it changed the file. Header fields
// are last-write-wins, but a header block identical to one already seen is
// not new. Data blocks are first-write-wins.
func (f *File) addBlock(b *Block) bool {
	p, err := b.Payload()
	if err != nil {
		return false
	}
	if chunk, ok := p.(DataChunk); ok {
		if _, held := f.data[chunk.Num]; held {
			return false
		}
		f.data[chunk.Num] = chunk.Text
		f.seen = insertSorted(f.seen, chunk.Num)
		if f.sizeKnown {
			f.needed = removeSorted(f.needed, chunk.Num)
		}
		return true
	}

	switch v := p.(type) {
	case FileHeader:
		f.Name = v.Name
		f.Stamp = v.Stamp
		if t, err := v.ModTime(f.loc); err == nil {
			f.Modified = t
		}
	case StationID:
		f.FromCallsign = v.Callsign
	case Description:
		f.Description = v.Text
	case ProgramInfo:
		f.Program = strings.TrimSpace(v.Name + " " + v.Version)
	case SizeHeader:
		changed := !f.sizeKnown || f.Size != v.Size || f.BlockCount != v.BlockCount || f.BlockSize != v.BlockSize
		f.Size, f.BlockCount, f.BlockSize = v.Size, v.BlockCount, v.BlockSize
		f.sizeKnown = true
		if changed {
			f.needed = f.missing()
		}
	}

	key := string(b.Keyword) + " " + b.Checksum()
	if f.headers[key] {
		return false
	}
	f.headers[key] = true
	return true
}

// SizeKnown reports whether the SIZE block has been received.
func (f *File) SizeKnown() bool { return f.sizeKnown }

// HasBlock reports whether data block num is held.
func (f *File) HasBlock(num int) bool {
	_, ok := f.data[num]
	return ok
}

// BlocksSeen returns the data block numbers held, in ascending order.
func (f *File) BlocksSeen() []int {
	return slices.Clone(f.seen)
}

// BlocksNeeded returns the missing data block numbers, or nil while the
// SIZE block is unknown.
func (f *File) BlocksNeeded() []int {
	if !f.sizeKnown {
		return nil
	}
	return slices.Clone(f.needed)
}

// IsComplete reports whether the name, the size and every data block are
// known.
func (f *File) IsComplete() bool {
	return f.Name != "" && f.sizeKnown && len(f.needed) == 0
}

func (f *File) missing() []int {
	needed := []int{}
	for n := 1; n <= f.BlockCount; n++ {
		if _, ok := f.data[n]; !ok {
			needed = append(needed, n)
		}
	}
	return needed
}

// insertSorted adds n to s. Appending past the end leaves every shorter view
// of s intact; an insert anywhere else copies.
func insertSorted(s []int, n int) []int {
	if len(s) == 0 || n > s[len(s)-1] {
		return append(s, n)
	}
	i, found := slices.BinarySearch(s, n)
	if found {
		return s
	}
	out := make([]int, 0, len(s)+1)
	out = append(out, s[:i]...)
	out = append(out, n)
	return append(out, s[i:]...)
}

// removeSorted drops n from s without writing to its backing array.
func removeSorted(s []int, n int) []int {
	i, found := slices.BinarySearch(s, n)
	switch {
	case !found:
		return s
	case i == 0:
		return s[1:]
	case i == len(s)-1:
		return s[:i]
	}
	out := make([]int, 0, len(s)-1)
	out = append(out, s[:i]...)
	return append(out, s[i+1:]...)
}

// Update returns the current state as an update event. The block lists are
// shared with the file and must not be modified.
func (f *File) Update() FileUpdateEvent {
	return FileUpdateEvent{
		Hash:         f.Hash,
		Filename:     f.Name,
		BlocksSeen:   f.seen[:len(f.seen):len(f.seen)],
		BlocksNeeded: f.needed[:len(f.needed):len(f.needed)],
		BlockCount:   f.BlockCount,
		BlockSize:    f.BlockSize,
		FileSize:     f.Size,
		SizeKnown:    f.sizeKnown,
	}
}

// RawContent joins the data blocks as transmitted.
func (f *File) RawContent() (string, error) {
	if !f.sizeKnown {
		return "", NewFileError(ErrMetadataMissing, "SIZE block not received", f.Hash)
	}
	if needed := f.BlocksNeeded(); len(needed) > 0 {
		return "", NewFileError(ErrNotReady, fmt.Sprintf("missing blocks %v", needed), f.Hash)
	}
	var sb strings.Builder
	sb.Grow(f.Size)
	for n := 1; n <= f.BlockCount; n++ {
		sb.WriteString(f.data[n])
	}
	raw := sb.String()
	if len(raw) != f.Size {
		return "", NewFileError(ErrContentIntegrity,
			fmt.Sprintf("reassembled %d bytes, SIZE declares %d", len(raw), f.Size), f.Hash)
	}
	return raw, nil
}

// Content recovers the original file content: the data blocks are joined,
// checked against the declared size, unwrapped from their binary-to-text
// encoding and decompressed. Unrecognized markers are left in place.
func (f *File) Content() ([]byte, error) {
	raw, err := f.RawContent()
	if err != nil {
		return nil, err
	}
	content, _, err := Unwrap(raw)
	if err != nil {
		return nil, err
	}
	if f.compressors != nil {
		if c := f.compressors.Match(content); c != nil {
			return c.Decompress(content)
		}
	}
	return content, nil
}
