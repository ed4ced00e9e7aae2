// Package rob implements a reassembly buffer: the data structure a
// QUIC-family stream receiver uses to turn possibly-reordered,
// possibly-overlapping, possibly-duplicated byte ranges into an
// in-order, contiguous byte stream. It maintains two cooperating skip
// lists keyed by half-open 64-bit offset ranges — a gap list tracking
// unreceived regions and a chunk list holding fixed-size buffers of
// received bytes — and is not safe for concurrent use: the owner
// (a stream/connection state machine) is responsible for
// serializing Push/DataAt/Pop/RemovePrefix calls.
package rob

// chunkPayload is the fixed-size buffer backing one chunk-list node.
// Its byte slots outside the ranges actually written by Push are
// indeterminate; readers never observe them because the gap list
// prevents DataAt from reading past the first unreceived byte.
type chunkPayload struct {
	buf []byte
}

// Buffer is a reassembly buffer for one logical stream. The zero value
// is not usable; construct one with New.
type Buffer struct {
	chunkSize uint64
	gaps      *skipList[struct{}]
	chunks    *skipList[*chunkPayload]
	alloc     Allocator
	prng      Source
}

// New creates an empty Buffer for a stream whose bytes are absorbed in
// chunkSize-byte chunks. prng is shared between the gap and chunk skip
// lists for level selection. If alloc is nil, a HeapAllocator is used.
//
// chunkSize must be at least 1; violating this is a programming error
// and panics rather than returning an error, matching the wider pack's
// convention of rejecting invalid constructor arguments immediately
// (see drand-drand's chain/memdb.NewStore). New cannot fail with
// ErrOutOfMemory: it allocates only skip list node headers, which are
// plain Go values the garbage collector manages directly rather than
// values routed through the pluggable Allocator — the Allocator backs
// only chunk payload buffers, allocated lazily by Push.
func New(chunkSize uint64, prng Source, alloc Allocator) *Buffer {
	assertf(chunkSize >= 1, "chunk_size must be >= 1, got %d", chunkSize)
	if alloc == nil {
		alloc = HeapAllocator{}
	}

	b := &Buffer{
		chunkSize: chunkSize,
		alloc:     alloc,
		prng:      prng,
		gaps:      newSkipList[struct{}](32, prng),
		chunks:    newSkipList[*chunkPayload](19, prng),
	}

	level := b.gaps.randLevel()
	full := &skipNode[struct{}]{
		Range:   Range{0, ^uint64(0)},
		forward: make([]*skipNode[struct{}], level+1),
	}
	b.gaps.insert(full, level)

	return b
}

// Push marks [offset, offset+len(data)) as received and copies data
// into the chunk list, restricted to whatever is still a gap. Bytes
// outside any current gap are silently dropped, making Push idempotent
// over duplicates. It returns ErrOffsetOverflow if offset+len(data)
// would wrap past 2^64, without mutating any state, and
// ErrOutOfMemory if a chunk allocation fails partway through — in
// that case some gap splits and chunk writes from this call may
// already be visible; the Buffer itself remains structurally valid.
func (b *Buffer) Push(offset uint64, data []byte) error {
	n := uint64(len(data))
	if n == 0 {
		return nil
	}
	if offset > ^uint64(0)-n {
		return ErrOffsetOverflow
	}

	q := Range{offset, offset + n}

	gn, gpred := b.gaps.lowerBound(q)
	if gn == nil {
		return nil
	}

	var chunkHint *skipNode[*chunkPayload]
	stale := false

	for gn != nil {
		m := q.Intersect(gn.Range)
		if m.IsEmpty() {
			break
		}

		segment := data[m.Begin-offset : m.Begin-offset+m.Len()]

		if gn.Range.Equal(m) {
			next := b.gaps.next(gn)
			if stale {
				_, gpred = b.gaps.lowerBound(q)
			}
			b.gaps.remove(gn, gpred)

			var err error
			chunkHint, err = b.writeData(chunkHint, m.Begin, segment)
			if err != nil {
				return err
			}
			gn = next
			stale = true
			continue
		}

		left, right := gn.Range.Cut(m)
		switch {
		case !left.IsEmpty() && !right.IsEmpty():
			gn.Range = left
			level := b.gaps.randLevel()
			newGap := &skipNode[struct{}]{
				Range:   right,
				forward: make([]*skipNode[struct{}], level+1),
			}
			b.gaps.insert(newGap, level)
		case !left.IsEmpty():
			gn.Range = left
		default:
			gn.Range = right
		}

		var err error
		chunkHint, err = b.writeData(chunkHint, m.Begin, segment)
		if err != nil {
			return err
		}
		gn = b.gaps.next(gn)
		stale = true
	}

	return nil
}

// writeData copies data into the chunk list starting at offset, which
// the caller guarantees overlaps no already-received position (it lies
// within former gap space). hint is the chunk list node to resume from
// (nil on the first call of a Push), and writeData returns the node
// the caller should pass as hint on its next call, keeping the whole
// of Push's outer loop amortized O(datalen/chunk_size).
func (b *Buffer) writeData(hint *skipNode[*chunkPayload], offset uint64, data []byte) (*skipNode[*chunkPayload], error) {
	if hint == nil {
		if found, _ := b.chunks.lowerBound(Range{offset, offset + 1}); found != nil {
			hint = found
		}
	}

	for {
		switch {
		case hint == nil || offset < hint.Range.Begin:
			aligned := (offset / b.chunkSize) * b.chunkSize
			buf, err := b.alloc.Alloc(int(b.chunkSize))
			if err != nil {
				return hint, ErrOutOfMemory
			}
			level := b.chunks.randLevel()
			node := &skipNode[*chunkPayload]{
				Range:   Range{aligned, aligned + b.chunkSize},
				Value:   &chunkPayload{buf: buf},
				forward: make([]*skipNode[*chunkPayload], level+1),
			}
			b.chunks.insert(node, level)
			hint = node
		case hint.Range.Begin+b.chunkSize < offset:
			assertf(false, "write-data hint [%d,%d) is more than chunk_size behind offset %d", hint.Range.Begin, hint.Range.Begin+b.chunkSize, offset)
		}

		avail := hint.Range.Begin + b.chunkSize - offset
		n := min64(uint64(len(data)), avail)
		copy(hint.Value.buf[offset-hint.Range.Begin:], data[:n])

		offset += n
		data = data[n:]
		if len(data) == 0 {
			return hint, nil
		}
		hint = b.chunks.next(hint)
	}
}

// DataAt returns the longest contiguous run of received bytes starting
// exactly at offset, as a slice borrowed from the underlying chunk's
// payload. The view is valid only until the next mutating Buffer
// operation. It returns nil when offset has not yet been received.
func (b *Buffer) DataAt(offset uint64) []byte {
	gn := b.gaps.front()
	if gn == nil {
		// The entire representable stream has been received; there is
		// no gap left to bound a run against.
		return nil
	}
	if gn.Range.Begin <= offset {
		return nil
	}

	dn := b.chunks.front()
	assertf(dn != nil, "data-at(%d) called with no chunk buffered", offset)
	assertf(dn.Range.Begin <= offset && offset < dn.Range.Begin+b.chunkSize,
		"data-at(%d): front chunk [%d,%d) does not contain offset", offset, dn.Range.Begin, dn.Range.Begin+b.chunkSize)

	bound := dn.Range.Begin + b.chunkSize
	if gn.Range.Begin < bound {
		bound = gn.Range.Begin
	}

	start := offset - dn.Range.Begin
	return dn.Value.buf[start : start+(bound-offset)]
}

// Pop signals that the caller has consumed [offset, offset+len) at the
// head of the chunk list. If the consumed range does not yet reach the
// end of the front chunk, the chunk is retained; otherwise it is
// removed from the chunk list and freed. The gap list is unaffected.
// Pop panics if the chunk list is empty: a precondition violation —
// callers must not Pop without having observed a positive DataAt
// length first.
func (b *Buffer) Pop(offset, length uint64) {
	dn := b.chunks.front()
	assertf(dn != nil, "pop(%d,%d) called on an empty chunk list", offset, length)

	if offset+length < dn.Range.Begin+b.chunkSize {
		return
	}

	popped := b.chunks.popFront()
	b.alloc.Free(popped.Value.buf)
}

// RemovePrefix unconditionally declares that all bytes below offset
// are no longer of interest, whether or not they were ever received.
// Gaps entirely below offset are dropped; a gap straddling offset is
// shrunk to begin at offset. Chunks entirely below offset are dropped
// and freed; a chunk straddling offset is retained untouched (DataAt
// still reports lengths correctly relative to the new gap floor).
func (b *Buffer) RemovePrefix(offset uint64) {
	for {
		gn := b.gaps.front()
		if gn == nil {
			break
		}
		if gn.Range.End <= offset {
			b.gaps.popFront()
			continue
		}
		if gn.Range.Begin < offset {
			gn.Range.Begin = offset
		}
		break
	}

	for {
		dn := b.chunks.front()
		if dn == nil {
			return
		}
		if dn.Range.Begin+b.chunkSize > offset {
			return
		}
		popped := b.chunks.popFront()
		b.alloc.Free(popped.Value.buf)
	}
}

// FirstGapOffset returns the begin of the first gap, or MaxUint64 if
// the gap list is empty — meaning the entire representable stream has
// been received.
func (b *Buffer) FirstGapOffset() uint64 {
	gn := b.gaps.front()
	if gn == nil {
		return ^uint64(0)
	}
	return gn.Range.Begin
}

// Free releases every node of both the gap list and the chunk list,
// returning chunk payload buffers to the Allocator. The Buffer must
// not be used afterward.
func (b *Buffer) Free() {
	for n := b.chunks.popFront(); n != nil; n = b.chunks.popFront() {
		b.alloc.Free(n.Value.buf)
	}
	for b.gaps.popFront() != nil {
	}
}
