package box

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
	"m7s.live/qtmp4/pkg"
)

// QuickTime compressed movie resource:
//
//	cmov
//	  dcom: unsigned int(32) compression_type; // 'zlib'
//	  cmvd: unsigned int(32) uncompressed_size;
//	        unsigned int(8) data[]; // the compressed 'moov' atom

const maxCompressedMovieSize = 256 << 20

// InflateMovie returns the uncompressed moov atom described by the dcom and cmvd payloads.
func InflateMovie(dcom, cmvd []byte) ([]byte, error) {
	if len(dcom) < 4 {
		return nil, short(TypeDCOM, 4, len(dcom))
	}
	if method := string(dcom[:4]); method != "zlib" {
		return nil, fmt.Errorf("%w: compressed movie header uses '%s'", pkg.ErrUnsupportedCodec, method)
	}
	if len(cmvd) < 4 {
		return nil, short(TypeCMVD, 4, len(cmvd))
	}
	size := binary.BigEndian.Uint32(cmvd)
	if size > maxCompressedMovieSize {
		return nil, fmt.Errorf("%w: compressed movie header claims %d bytes", pkg.ErrMalformedAtom, size)
	}
	zr, err := zlib.NewReader(bytes.NewReader(cmvd[4:]))
	if err != nil {
		return nil, fmt.Errorf("%w: cmvd: %v", pkg.ErrMalformedAtom, err)
	}
	defer zr.Close()
	moov := make([]byte, size)
	if _, err = io.ReadFull(zr, moov); err != nil {
		return nil, fmt.Errorf("%w: cmvd inflated short: %v", pkg.ErrMalformedAtom, err)
	}
	return moov, nil
}
