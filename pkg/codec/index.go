package codec

type ICodecCtx interface {
	FourCC() FourCC
	GetInfo() string
	GetBase() ICodecCtx
}

// Family is the codec family a sample description resolves to.
type Family string

const (
	FamilyPCM     Family = "PCM"
	FamilyAAC     Family = "AAC"
	FamilyAC3     Family = "AC-3"
	FamilyEAC3    Family = "E-AC-3"
	FamilyDTS     Family = "DTS"
	FamilyALAC    Family = "ALAC"
	FamilyMP3     Family = "MP3"
	FamilyH264    Family = "AVC/H.264"
	FamilyHEVC    Family = "HEVC/H.265"
	FamilyMPEG1   Family = "MPEG-1"
	FamilyMPEG2   Family = "MPEG-2"
	FamilyMPEG4P2 Family = "MPEG-4p2"
	FamilyProRes  Family = "ProRes"
	FamilyVobSub  Family = "VobSub"
)

func (f Family) IsAudio() bool {
	switch f {
	case FamilyPCM, FamilyAAC, FamilyAC3, FamilyEAC3, FamilyDTS, FamilyALAC, FamilyMP3:
		return true
	}
	return false
}

func (f Family) IsVideo() bool {
	switch f {
	case FamilyH264, FamilyHEVC, FamilyMPEG1, FamilyMPEG2, FamilyMPEG4P2, FamilyProRes:
		return true
	}
	return false
}
