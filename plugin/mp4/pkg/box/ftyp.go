package box

import (
	"encoding/binary"
	"strings"
)

// aligned(8) class FileTypeBox extends Box(‘ftyp’) {
// 	unsigned int(32) major_brand;
// 	unsigned int(32) minor_version;
// 	unsigned int(32) compatible_brands[];
// }

type FileTypeBox struct {
	MajorBrand       [4]byte
	MinorVersion     uint32
	CompatibleBrands [][4]byte
}

// Decode reads ftyp and styp payloads. A trailing partial brand is ignored.
func (ftyp *FileTypeBox) Decode(b []byte) error {
	if len(b) < 8 {
		return short(TypeFTYP, 8, len(b))
	}
	ftyp.MajorBrand = [4]byte(b)
	ftyp.MinorVersion = binary.BigEndian.Uint32(b[4:])
	for n := 8; n+4 <= len(b); n += 4 {
		ftyp.CompatibleBrands = append(ftyp.CompatibleBrands, [4]byte(b[n:]))
	}
	return nil
}

// QuickTime reports the classic 'qt  ' brand.
func (ftyp *FileTypeBox) QuickTime() bool {
	return ftyp.MajorBrand == [4]byte{'q', 't', ' ', ' '}
}

func (ftyp *FileTypeBox) String() string {
	brands := make([]string, len(ftyp.CompatibleBrands))
	for i, b := range ftyp.CompatibleBrands {
		brands[i] = TypeName(b)
	}
	return TypeName(ftyp.MajorBrand) + " [" + strings.Join(brands, ",") + "]"
}
