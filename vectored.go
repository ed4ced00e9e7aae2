package rob

import (
	"io"
	"net"
	"os"

	"golang.org/x/sys/unix"
)

// Segments returns, without copying, the ordered byte slices making up
// the contiguous run of received data starting at offset — the same
// run repeated DataAt/Pop calls would walk one chunk at a time,
// gathered up front for a single vectored write. It stops at the
// first gap or the boundary of the last buffered chunk, exactly like
// DataAt would. It does not pop or otherwise modify the Buffer.
func (b *Buffer) Segments(offset uint64) [][]byte {
	var bufs [][]byte
	gn := b.gaps.front()
	dn, _ := b.chunks.lowerBound(Range{offset, offset + 1})
	for ; gn != nil && dn != nil && dn.Range.Begin <= offset && offset < gn.Range.Begin; dn = b.chunks.next(dn) {
		bound := min64(dn.Range.Begin+b.chunkSize, gn.Range.Begin)
		bufs = append(bufs, dn.Value.buf[offset-dn.Range.Begin:bound-dn.Range.Begin])
		offset = bound
	}
	return bufs
}

// WriteVectored writes the contiguous run of received bytes starting
// at offset to w without first concatenating the run's chunks into a
// single buffer. When w is a *os.File, it uses unix.Writev directly;
// otherwise it falls back to net.Buffers, which performs the same
// vectored write over any io.Writer that supports it (e.g. a
// *net.TCPConn) and a plain sequential write otherwise.
func (b *Buffer) WriteVectored(w io.Writer, offset uint64) (int, error) {
	bufs := b.Segments(offset)
	if len(bufs) == 0 {
		return 0, nil
	}

	if f, ok := w.(*os.File); ok {
		return unix.Writev(int(f.Fd()), bufs)
	}

	n, err := (net.Buffers(bufs)).WriteTo(w)
	return int(n), err
}

// FlushAt writes the contiguous run of received bytes starting at
// offset to f at fileOffset using Pwritev, so the write neither
// disturbs f's file position nor requires gathering the run's chunks
// into one contiguous buffer first.
func (b *Buffer) FlushAt(f *os.File, offset uint64, fileOffset int64) (int, error) {
	bufs := b.Segments(offset)
	if len(bufs) == 0 {
		return 0, nil
	}
	return unix.Pwritev(int(f.Fd()), bufs, fileOffset)
}
