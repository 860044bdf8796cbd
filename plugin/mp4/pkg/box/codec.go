package box

import (
	"m7s.live/qtmp4/pkg/codec"
)

// sample entry formats whose codec is decided by the esds object type
var ESDSFormats = map[[4]byte]bool{
	f("mp4a"): true,
	f("mp4v"): true,
	f("mp4s"): true,
}

var formatFamilies = map[[4]byte]codec.Family{
	f("raw "):            codec.FamilyPCM,
	f("twos"):            codec.FamilyPCM,
	f("sowt"):            codec.FamilyPCM,
	f("in24"):            codec.FamilyPCM,
	f("in32"):            codec.FamilyPCM,
	f("fl32"):            codec.FamilyPCM,
	f("fl64"):            codec.FamilyPCM,
	f("lpcm"):            codec.FamilyPCM,
	{'N', 'O', 'N', 'E'}: codec.FamilyPCM,
	{0, 0, 0, 0}:         codec.FamilyPCM,

	f("ac-3"):          codec.FamilyAC3,
	f("sac3"):          codec.FamilyAC3,
	f("ec-3"):          codec.FamilyEAC3,
	f("dtsc"):          codec.FamilyDTS,
	f("dtsh"):          codec.FamilyDTS,
	f("dtsl"):          codec.FamilyDTS,
	f("dtse"):          codec.FamilyDTS,
	f("alac"):          codec.FamilyALAC,
	f(".mp3"):          codec.FamilyMP3,
	{'m', 's', 0, 'U'}: codec.FamilyMP3,

	f("avc1"): codec.FamilyH264,
	f("avc2"): codec.FamilyH264,
	f("avc3"): codec.FamilyH264,
	f("avc4"): codec.FamilyH264,
	f("hvc1"): codec.FamilyHEVC,
	f("hev1"): codec.FamilyHEVC,

	f("mpeg"): codec.FamilyMPEG1,
	f("m1v "): codec.FamilyMPEG1,
	f("m1v1"): codec.FamilyMPEG1,
	f("mpg1"): codec.FamilyMPEG1,
	f("m2v1"): codec.FamilyMPEG2,
	f("mpg2"): codec.FamilyMPEG2,
	f("mx3n"): codec.FamilyMPEG2,
	f("mx3p"): codec.FamilyMPEG2,
	f("mx4n"): codec.FamilyMPEG2,
	f("mx4p"): codec.FamilyMPEG2,
	f("mx5n"): codec.FamilyMPEG2,
	f("mx5p"): codec.FamilyMPEG2,
	f("hdv1"): codec.FamilyMPEG2,
	f("hdv2"): codec.FamilyMPEG2,
	f("hdv3"): codec.FamilyMPEG2,
	f("xdv2"): codec.FamilyMPEG2,
	f("xdvc"): codec.FamilyMPEG2,

	f("XVID"): codec.FamilyMPEG4P2,
	f("xvid"): codec.FamilyMPEG4P2,
	f("DIVX"): codec.FamilyMPEG4P2,
	f("divx"): codec.FamilyMPEG4P2,
	f("DX50"): codec.FamilyMPEG4P2,
	f("FMP4"): codec.FamilyMPEG4P2,
	f("3IV2"): codec.FamilyMPEG4P2,
	f("3iv2"): codec.FamilyMPEG4P2,

	f("apch"): codec.FamilyProRes,
	f("apcn"): codec.FamilyProRes,
	f("apcs"): codec.FamilyProRes,
	f("apco"): codec.FamilyProRes,
	f("ap4h"): codec.FamilyProRes,
	f("ap4x"): codec.FamilyProRes,
}

// FamilyByFormat maps a sample entry fourcc to its codec family. Formats in
// ESDSFormats are not listed, use FamilyByObjectType for them.
func FamilyByFormat(format [4]byte) (family codec.Family, ok bool) {
	family, ok = formatFamilies[format]
	return
}

// ffmpeg isom.c const AVCodecTag ff_mp4_obj_type[]
func FamilyByObjectType(oti uint8) (codec.Family, bool) {
	switch {
	case oti == 0x40, oti >= 0x66 && oti <= 0x68:
		return codec.FamilyAAC, true
	case oti == 0x69, oti == 0x6b:
		return codec.FamilyMP3, true
	case oti == 0xa5:
		return codec.FamilyAC3, true
	case oti == 0xa6:
		return codec.FamilyEAC3, true
	case oti == 0xa9:
		return codec.FamilyDTS, true
	case oti == 0x20:
		return codec.FamilyMPEG4P2, true
	case oti >= 0x60 && oti <= 0x65:
		return codec.FamilyMPEG2, true
	case oti == 0x6a:
		return codec.FamilyMPEG1, true
	case oti == 0xe0:
		return codec.FamilyVobSub, true
	case oti == 0x21:
		return codec.FamilyH264, true
	}
	return "", false
}

// PCMLayout reports byte order and sample type implied by a PCM fourcc.
// bits is 0 when the format does not fix the sample size.
func PCMLayout(format [4]byte) (bits int, bigEndian, float bool) {
	switch string(format[:]) {
	case "twos":
		return 0, true, false
	case "sowt", "raw ", "NONE", "\x00\x00\x00\x00":
		return 0, false, false
	case "in24":
		return 24, true, false
	case "in32":
		return 32, true, false
	case "fl32":
		return 32, true, true
	case "fl64":
		return 64, true, true
	}
	return 0, true, false
}
