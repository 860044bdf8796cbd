package mp4

import (
	"bytes"
	"encoding/binary"
	"log/slog"

	"m7s.live/qtmp4/pkg"
)

// dataStart is where the mdat payload of movie() begins: a 16 byte ftyp
// followed by the 8 byte mdat header.
const dataStart = 24

func be16(values ...uint16) (b []byte) {
	for _, v := range values {
		b = binary.BigEndian.AppendUint16(b, v)
	}
	return
}

func be32(values ...uint32) (b []byte) {
	for _, v := range values {
		b = binary.BigEndian.AppendUint32(b, v)
	}
	return
}

func box(t string, payload ...[]byte) []byte {
	body := bytes.Join(payload, nil)
	b := be32(uint32(8 + len(body)))
	b = append(b, t...)
	return append(b, body...)
}

func fullBox(t string, version byte, flags uint32, payload ...[]byte) []byte {
	head := []byte{version, byte(flags >> 16), byte(flags >> 8), byte(flags)}
	return box(t, append([][]byte{head}, payload...)...)
}

// withChild appends child to the children of parent.
func withChild(parent []byte, child []byte) []byte {
	return box(string(parent[4:8]), parent[8:], child)
}

func movie(mdat []byte, moov ...[]byte) []byte {
	var file []byte
	file = append(file, box("ftyp", []byte("isom"), be32(0))...)
	file = append(file, box("mdat", mdat)...)
	return append(file, box("moov", moov...)...)
}

func mvhd(timescale, duration uint32) []byte {
	return fullBox("mvhd", 0, 0, be32(0, 0, timescale, duration), make([]byte, 80))
}

func tkhd(id uint32, width, height uint16) []byte {
	b := make([]byte, 80)
	binary.BigEndian.PutUint32(b[8:], id)
	binary.BigEndian.PutUint32(b[72:], uint32(width)<<16)
	binary.BigEndian.PutUint32(b[76:], uint32(height)<<16)
	return fullBox("tkhd", 0, 3, b)
}

// 'und' packed as three 5 bit letters
const langUnd = 0x55c4

func mdhd(timescale uint32, lang uint16) []byte {
	return fullBox("mdhd", 0, 0, be32(0, 0, timescale, 0), be16(lang, 0))
}

func hdlr(handler, name string) []byte {
	return fullBox("hdlr", 0, 0, be32(0), []byte(handler), make([]byte, 12), []byte(name), []byte{0})
}

func sampleEntry(format string, body ...[]byte) []byte {
	return box(format, make([]byte, 6), be16(1), bytes.Join(body, nil))
}

func audioBody(channels, bits uint16, rate uint32) []byte {
	b := make([]byte, 20)
	binary.BigEndian.PutUint16(b[8:], channels)
	binary.BigEndian.PutUint16(b[10:], bits)
	binary.BigEndian.PutUint32(b[16:], rate<<16)
	return b
}

func visualBody(width, height uint16) []byte {
	b := make([]byte, 70)
	binary.BigEndian.PutUint16(b[16:], width)
	binary.BigEndian.PutUint16(b[18:], height)
	binary.BigEndian.PutUint16(b[32:], 1)
	binary.BigEndian.PutUint16(b[66:], 24)
	return b
}

// esds wraps an AAC decoder config around dsi.
func esds(oti byte, dsi []byte) []byte {
	dc := append([]byte{0x04, byte(13 + 2 + len(dsi)), oti, 0x15, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0x05, byte(len(dsi))}, dsi...)
	es := append([]byte{0x03, byte(3 + len(dc)), 0, 1, 0}, dc...)
	return fullBox("esds", 0, 0, es)
}

func stsd(entries ...[]byte) []byte {
	return fullBox("stsd", 0, 0, be32(uint32(len(entries))), bytes.Join(entries, nil))
}

// stts takes count, delta pairs.
func stts(pairs ...uint32) []byte {
	return fullBox("stts", 0, 0, be32(uint32(len(pairs)/2)), be32(pairs...))
}

// ctts takes count, offset pairs.
func ctts(pairs ...uint32) []byte {
	return fullBox("ctts", 0, 0, be32(uint32(len(pairs)/2)), be32(pairs...))
}

func stsz(uniform uint32, count uint32, sizes ...uint32) []byte {
	return fullBox("stsz", 0, 0, be32(uniform, count), be32(sizes...))
}

// stsc takes first chunk, samples per chunk, description index triples.
func stsc(triples ...uint32) []byte {
	return fullBox("stsc", 0, 0, be32(uint32(len(triples)/3)), be32(triples...))
}

func stco(offsets ...uint32) []byte {
	return fullBox("stco", 0, 0, be32(uint32(len(offsets))), be32(offsets...))
}

func stss(samples ...uint32) []byte {
	return fullBox("stss", 0, 0, be32(uint32(len(samples))), be32(samples...))
}

// elst takes segment duration, media time, rate triples.
func elst(triples ...uint32) []byte {
	return box("edts", fullBox("elst", 0, 0, be32(uint32(len(triples)/3)), be32(triples...)))
}

func trak(id uint32, handler string, timescale uint32, entry []byte, stbl ...[]byte) []byte {
	return box("trak",
		tkhd(id, 0, 0),
		box("mdia",
			mdhd(timescale, langUnd),
			hdlr(handler, ""),
			box("minf", box("stbl", append([][]byte{stsd(entry)}, stbl...)...)),
		),
	)
}

// videoTrak is an mp4v track without esds, which needs nothing beyond the
// sample description to verify.
func videoTrak(id uint32, timescale uint32, stbl ...[]byte) []byte {
	return trak(id, "vide", timescale, sampleEntry("mp4v", visualBody(320, 240)), stbl...)
}

func pcmTrak(id uint32, timescale uint32, stbl ...[]byte) []byte {
	return trak(id, "soun", timescale, sampleEntry("sowt", audioBody(2, 16, timescale)), stbl...)
}

func fill(n int, c byte) []byte {
	return bytes.Repeat([]byte{c}, n)
}

type testReader struct {
	*Demuxer
	records *pkg.RecordCollector
}

// open parses file with warnings collected for inspection.
func open(file []byte, opts ...Option) (*testReader, error) {
	records := pkg.NewRecordCollector(slog.LevelWarn)
	d := NewDemuxer(bytes.NewReader(file), append([]Option{WithLogger(slog.New(records))}, opts...)...)
	return &testReader{d, records}, d.ReadHeaders()
}

func timecodes(t *Track) (list []int64) {
	for _, e := range t.Index {
		list = append(list, e.Timecode)
	}
	return
}

// recorder collects every delivered sample in delivery order.
type recorder struct {
	trackID uint32
	log     *[]delivery
}

type delivery struct {
	trackID  uint32
	timecode int64
	data     []byte
	flushed  bool
}

func (r *recorder) ProcessSample(data []byte, entry pkg.IndexEntry) error {
	*r.log = append(*r.log, delivery{trackID: r.trackID, timecode: entry.Timecode, data: data})
	return nil
}

func (r *recorder) Flush() error {
	*r.log = append(*r.log, delivery{trackID: r.trackID, flushed: true})
	return nil
}
