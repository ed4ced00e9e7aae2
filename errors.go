package rob

import (
	"errors"
	"fmt"
)

// ErrOutOfMemory is returned by Push when a chunk allocation fails.
// The Buffer remains structurally valid; a failing Push may still
// have applied some gap splits and chunk writes before the
// allocation that failed.
var ErrOutOfMemory = errors.New("rob: allocator returned no memory")

// ErrOffsetOverflow is returned by Push when offset+len would wrap
// past 2^64. No state is mutated when this error is returned.
var ErrOffsetOverflow = errors.New("rob: offset+len overflows uint64")

// assertf panics with a formatted message. It guards precondition
// violations that indicate a caller or internal bug, never a runtime
// condition a caller can recover from.
func assertf(cond bool, format string, args ...any) {
	if !cond {
		panic(fmt.Sprintf("rob: "+format, args...))
	}
}
