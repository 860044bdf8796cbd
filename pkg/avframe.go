package pkg

import "m7s.live/qtmp4/pkg/util"

type (
	Nalu = [][]byte

	Nalus struct {
		Nalus []Nalu
	}
)

func (nalus *Nalus) Append(bytes ...[]byte) {
	nalus.Nalus = append(nalus.Nalus, bytes)
}

func (nalus *Nalus) Reset() {
	nalus.Nalus = nalus.Nalus[:0]
}

// ParseAVCC splits length prefixed NAL units.
func (nalus *Nalus) ParseAVCC(reader *util.Buffers, naluSizeLen int) error {
	for reader.Length > 0 {
		l, err := reader.ReadBE(naluSizeLen)
		if err != nil {
			return err
		}
		nalu, err := reader.ReadBytes(int(l))
		if err != nil {
			return err
		}
		nalus.Append(nalu)
	}
	return nil
}
