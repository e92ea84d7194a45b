package fork

import (
	"errors"

	"github.com/golang/snappy"
)

// maxDecompressedEntry bounds how large a single cached value is allowed to
// decompress to, so a truncated or corrupted cache entry can't balloon
// memory on read. Mirrors the teacher's RLPx frame codec, which applies the
// same guard (snappyMaxDecompressed) before decompressing a wire frame.
const maxDecompressedEntry = 64 * 1024 * 1024 // 64 MiB

// ErrCacheEntryTooLarge is returned when a stored cache entry's
// uncompressed length exceeds maxDecompressedEntry.
var ErrCacheEntryTooLarge = errors.New("fork: cache entry too large to decompress")

func snappyEncode(src []byte) []byte {
	return snappy.Encode(nil, src)
}

func snappyDecode(src []byte) ([]byte, error) {
	n, err := snappy.DecodedLen(src)
	if err != nil {
		return nil, err
	}
	if n > maxDecompressedEntry {
		return nil, ErrCacheEntryTooLarge
	}
	return snappy.Decode(nil, src)
}
