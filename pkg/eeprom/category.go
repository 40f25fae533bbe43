package eeprom

import (
	"context"
	"encoding/binary"
)

// category locates one category's byte-stream bounds within the
// SII address space: start is the word address of its first data
// word, lenWords its length in words.
type category struct {
	kind     CategoryType
	start    uint16
	lenWords uint16
}

// findCategory walks the category list starting at firstCategoryStart
// looking for kind, returning ErrNoCategory if the End marker is
// reached first.
func (r *Reader) findCategory(ctx context.Context, kind CategoryType) (category, error) {
	addr := firstCategoryStart
	for {
		buf, err := r.readRaw(ctx, addr)
		if err != nil {
			return category{}, err
		}
		gotType := CategoryType(binary.LittleEndian.Uint16(buf[0:2]))
		dataLen := binary.LittleEndian.Uint16(buf[2:4])
		addr += 2

		if gotType == kind {
			return category{kind: gotType, start: addr, lenWords: dataLen}, nil
		}
		if gotType == CategoryEnd {
			return category{}, ErrNoCategory
		}
		addr += dataLen
	}
}

// sectionReader streams the bytes of one category, fetching word
// chunks from the EEPROM lazily and buffering leftovers between calls.
type sectionReader struct {
	r          *Reader
	next       uint16 // next word address to fetch
	remaining  []byte // buffered, not-yet-consumed bytes
	byteCount  uint16
	limitBytes uint16
}

func newSectionReader(r *Reader, cat category) *sectionReader {
	return &sectionReader{r: r, next: cat.start, limitBytes: cat.lenWords * 2}
}

func (s *sectionReader) fill(ctx context.Context) error {
	if len(s.remaining) > 0 {
		return nil
	}
	data, err := s.r.readRaw(ctx, s.next)
	if err != nil {
		return err
	}
	s.next += uint16(len(data) / 2)
	s.remaining = data
	return nil
}

func (s *sectionReader) next1(ctx context.Context) (byte, bool, error) {
	if s.byteCount >= s.limitBytes {
		return 0, false, nil
	}
	if err := s.fill(ctx); err != nil {
		return 0, false, err
	}
	if len(s.remaining) == 0 {
		return 0, false, nil
	}
	b := s.remaining[0]
	s.remaining = s.remaining[1:]
	s.byteCount++
	return b, true, nil
}

func (s *sectionReader) skip(ctx context.Context, n uint16) error {
	for i := uint16(0); i < n; i++ {
		if _, ok, err := s.next1(ctx); err != nil {
			return err
		} else if !ok {
			return ErrSectionUnderrun
		}
	}
	return nil
}

// take reads exactly n bytes, returning ErrSectionUnderrun if the
// section runs out first.
func (s *sectionReader) take(ctx context.Context, n int) ([]byte, error) {
	out := make([]byte, 0, n)
	for len(out) < n {
		b, ok, err := s.next1(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrSectionUnderrun
		}
		out = append(out, b)
	}
	return out, nil
}

// tryTake reads n bytes, returning ok=false (no error) once the
// section is exhausted exactly at a record boundary — used for loop
// conditions like "while there are more sync manager entries".
func (s *sectionReader) tryTake(ctx context.Context, n int) ([]byte, bool, error) {
	out := make([]byte, 0, n)
	for len(out) < n {
		b, ok, err := s.next1(ctx)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			if len(out) == 0 {
				return nil, false, nil
			}
			return nil, false, ErrSectionOverrun
		}
		out = append(out, b)
	}
	return out, true, nil
}
