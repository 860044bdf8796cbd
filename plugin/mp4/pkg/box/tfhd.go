package box

import (
	"encoding/binary"
)

// aligned(8) class TrackFragmentHeaderBox extends FullBox(‘tfhd’, 0, tf_flags){
//     unsigned int(32) track_ID;
//     // all the following are optional fields
//     unsigned int(64) base_data_offset;
//     unsigned int(32) sample_description_index;
//     unsigned int(32) default_sample_duration;
//     unsigned int(32) default_sample_size;
//     unsigned int(32) default_sample_flags
// }

const (
	TF_FLAG_BASE_DATA_OFFSET                 uint32 = 0x000001
	TF_FLAG_SAMPLE_DESCRIPTION_INDEX_PRESENT uint32 = 0x000002
	TF_FLAG_DEFAULT_SAMPLE_DURATION_PRESENT  uint32 = 0x000008
	TF_FLAG_DEFAULT_SAMPLE_SIZE_PRESENT      uint32 = 0x000010
	TF_FLAG_DEFAULT_SAMPLE_FLAGS_PRESENT     uint32 = 0x000020
	TF_FLAG_DURATION_IS_EMPTY                uint32 = 0x010000
	TF_FLAG_DEFAULT_BASE_IS_MOOF             uint32 = 0x020000

	//ffmpeg isom.h
	MOV_FRAG_SAMPLE_FLAG_DEGRADATION_PRIORITY_MASK uint32 = 0x0000ffff
	MOV_FRAG_SAMPLE_FLAG_IS_NON_SYNC               uint32 = 0x00010000
	MOV_FRAG_SAMPLE_FLAG_PADDING_MASK              uint32 = 0x000e0000
	MOV_FRAG_SAMPLE_FLAG_REDUNDANCY_MASK           uint32 = 0x00300000
	MOV_FRAG_SAMPLE_FLAG_DEPENDED_MASK             uint32 = 0x00c00000
	MOV_FRAG_SAMPLE_FLAG_DEPENDS_MASK              uint32 = 0x03000000

	MOV_FRAG_SAMPLE_FLAG_DEPENDS_NO  uint32 = 0x02000000
	MOV_FRAG_SAMPLE_FLAG_DEPENDS_YES uint32 = 0x01000000
)

// TrackFragmentHeaderBox leaves absent optional fields nil.
type TrackFragmentHeaderBox struct {
	Flags                  uint32
	TrackID                uint32
	BaseDataOffset         *uint64
	SampleDescriptionIndex *uint32
	DefaultSampleDuration  *uint32
	DefaultSampleSize      *uint32
	DefaultSampleFlags     *uint32
}

func (tfhd *TrackFragmentHeaderBox) DefaultBaseIsMoof() bool {
	return tfhd.Flags&TF_FLAG_DEFAULT_BASE_IS_MOOF != 0
}

func (tfhd *TrackFragmentHeaderBox) Decode(b []byte) (err error) {
	var fullbox FullBox
	fullbox, b, err = DecodeFullBox(b, TypeTFHD)
	if err != nil {
		return
	}
	tfhd.Flags = fullbox.Flags
	need := 4
	for _, f := range [...]struct {
		flag uint32
		size int
	}{
		{TF_FLAG_BASE_DATA_OFFSET, 8},
		{TF_FLAG_SAMPLE_DESCRIPTION_INDEX_PRESENT, 4},
		{TF_FLAG_DEFAULT_SAMPLE_DURATION_PRESENT, 4},
		{TF_FLAG_DEFAULT_SAMPLE_SIZE_PRESENT, 4},
		{TF_FLAG_DEFAULT_SAMPLE_FLAGS_PRESENT, 4},
	} {
		if tfhd.Flags&f.flag != 0 {
			need += f.size
		}
	}
	if len(b) < need {
		return short(TypeTFHD, need, len(b))
	}
	tfhd.TrackID = binary.BigEndian.Uint32(b)
	n := 4
	next32 := func() *uint32 {
		v := binary.BigEndian.Uint32(b[n:])
		n += 4
		return &v
	}
	if tfhd.Flags&TF_FLAG_BASE_DATA_OFFSET != 0 {
		v := binary.BigEndian.Uint64(b[n:])
		tfhd.BaseDataOffset = &v
		n += 8
	}
	if tfhd.Flags&TF_FLAG_SAMPLE_DESCRIPTION_INDEX_PRESENT != 0 {
		tfhd.SampleDescriptionIndex = next32()
	}
	if tfhd.Flags&TF_FLAG_DEFAULT_SAMPLE_DURATION_PRESENT != 0 {
		tfhd.DefaultSampleDuration = next32()
	}
	if tfhd.Flags&TF_FLAG_DEFAULT_SAMPLE_SIZE_PRESENT != 0 {
		tfhd.DefaultSampleSize = next32()
	}
	if tfhd.Flags&TF_FLAG_DEFAULT_SAMPLE_FLAGS_PRESENT != 0 {
		tfhd.DefaultSampleFlags = next32()
	}
	return
}
