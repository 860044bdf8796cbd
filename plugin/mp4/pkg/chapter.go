package mp4

import (
	"bytes"
	"cmp"
	"encoding/binary"
	"errors"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding/unicode"

	"m7s.live/qtmp4/pkg"
	. "m7s.live/qtmp4/plugin/mp4/pkg/box"
)

const (
	itunesMean     = "com.apple.iTunes"
	itunesSMPB     = "iTunSMPB"
	maxChapterText = 64 << 10
)

// ChapterEntry is one chapter start. Timecode is in nanoseconds.
type ChapterEntry struct {
	Name     string
	Timecode int64
}

var tagNames = map[string]string{
	"\xa9nam": "title",
	"\xa9ART": "artist",
	"aART":    "album_artist",
	"\xa9alb": "album",
	"\xa9day": "date",
	"\xa9gen": "genre",
	"\xa9cmt": "comment",
	"\xa9wrt": "composer",
	"\xa9too": "encoder",
	"\xa9lyr": "lyrics",
	"desc":    "description",
	"ldes":    "long_description",
	"cprt":    "copyright",
	"trkn":    "track",
	"disk":    "disc",
	"tvsh":    "show",
	"tvnn":    "network",
}

// recode turns chapter or tag text into UTF-8. Text with a byte order mark is
// UTF-16, other invalid UTF-8 is read in the configured legacy charset.
func (d *Demuxer) recode(b []byte) string {
	if len(b) >= 2 && (b[0] == 0xfe && b[1] == 0xff || b[0] == 0xff && b[1] == 0xfe) {
		return decodeUTF16(b)
	}
	if utf8.Valid(b) {
		return string(b)
	}
	if enc, _ := charset.Lookup(d.opts.ChapterCharset); enc != nil {
		if out, err := enc.NewDecoder().Bytes(b); err == nil {
			return string(out)
		}
	}
	return strings.ToValidUTF8(string(b), "�")
}

// decodeUTF16 reads big endian UTF-16 unless a byte order mark says otherwise.
func decodeUTF16(b []byte) string {
	out, err := unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewDecoder().Bytes(b)
	if err != nil {
		return strings.ToValidUTF8(string(b), "\uFFFD")
	}
	return string(out)
}

func (d *Demuxer) handleChpl(st *parseState, atom Atom) error {
	b, err := d.payload(st, atom)
	if err != nil {
		return err
	}
	var chpl ChapterListBox
	if err = chpl.Decode(b); err != nil && !errors.Is(err, pkg.ErrTableLengthMismatch) {
		return err
	}
	for _, e := range chpl {
		c := ChapterEntry{Name: d.recode(e.Title), Timecode: int64(e.Start) * 100}
		d.chapters = append(d.chapters, c)
		d.diag.Debug(pkg.DebugChapters, "chapter", "name", c.Name, "timecode", c.Timecode)
	}
	return err
}

// handleMeta accepts both the ISO full box and the QuickTime plain box layout.
func (d *Demuxer) handleMeta(st *parseState, atom Atom) error {
	if atom.PayloadSize() >= 8 {
		head, err := ReadPayload(st.r, Atom{Offset: atom.Offset, HeaderSize: atom.HeaderSize, Size: atom.HeaderSize + 8})
		if err != nil {
			return err
		}
		// a QuickTime meta starts with its hdlr child right away
		if [4]byte(head[4:]) != TypeHDLR {
			atom.HeaderSize += 4
		}
	}
	return Children(st.r, atom, func(child Atom) error {
		if child.Type == TypeILST {
			return d.handleIlst(st, child)
		}
		return nil
	})
}

func (d *Demuxer) handleIlst(st *parseState, atom Atom) error {
	return Children(st.r, atom, func(item Atom) error {
		key, value, err := d.ilstItem(st, item)
		if err != nil {
			return d.fault(nil, err)
		}
		if key == "" {
			return nil
		}
		d.tags[key] = value
		d.diag.Debug(pkg.DebugChapters, "tag", "key", key, "value", value)
		if key == itunesMean+":"+itunesSMPB {
			d.encoderDelay = parseEncoderDelay(value)
		}
		return nil
	})
}

// ilstItem returns the tag name and text of one metadata item. Binary
// values such as cover art are skipped.
func (d *Demuxer) ilstItem(st *parseState, item Atom) (key, value string, err error) {
	var (
		mean, name string
		data       *DataBox
	)
	err = Children(st.r, item, func(child Atom) error {
		switch child.Type {
		case TypeMEAN, TypeNAME, TypeDATA:
		default:
			return nil
		}
		b, err := ReadPayload(st.r, child)
		if err != nil {
			return err
		}
		switch child.Type {
		case TypeMEAN:
			mean, err = DecodeString(b, TypeMEAN)
		case TypeNAME:
			name, err = DecodeString(b, TypeNAME)
		case TypeDATA:
			if data == nil {
				data = &DataBox{}
				err = data.Decode(b)
			}
		}
		return err
	})
	if err != nil || data == nil {
		return
	}
	if item.Type == TypeFREEFORM {
		if name == "" {
			return
		}
		key = mean + ":" + name
	} else if key = tagNames[string(item.Type[:])]; key == "" {
		key = strings.TrimSpace(TypeName(item.Type))
	}
	switch data.TypeIndicator {
	case DataTypeUTF16:
		value = decodeUTF16(data.Value)
	case DataTypeImplicit, DataTypeUTF8:
		value = d.recode(data.Value)
		if item.Type == [4]byte{'t', 'r', 'k', 'n'} || item.Type == [4]byte{'d', 'i', 's', 'k'} {
			value = indexPair(data.Value)
		}
	case DataTypeInteger:
		value = strconv.FormatInt(beInt(data.Value), 10)
	default:
		key = ""
	}
	return
}

// indexPair formats the binary "n of total" trkn and disk values.
func indexPair(b []byte) string {
	if len(b) < 6 {
		return ""
	}
	n, total := binary.BigEndian.Uint16(b[2:]), binary.BigEndian.Uint16(b[4:])
	if total == 0 {
		return strconv.Itoa(int(n))
	}
	return strconv.Itoa(int(n)) + "/" + strconv.Itoa(int(total))
}

func beInt(b []byte) int64 {
	var v int64
	for _, c := range b {
		v = v<<8 | int64(c)
	}
	if n := len(b); n > 0 && n < 8 && b[0]&0x80 != 0 {
		v -= 1 << (8 * n)
	}
	return v
}

// parseEncoderDelay reads the priming sample count, the second hex field of iTunSMPB.
func parseEncoderDelay(smpb string) uint32 {
	fields := strings.Fields(smpb)
	if len(fields) < 2 {
		return 0
	}
	v, err := strconv.ParseUint(fields[1], 16, 32)
	if err != nil {
		return 0
	}
	return uint32(v)
}

// markChapterTracks turns text tracks referenced through tref/chap into chapter tracks.
func (d *Demuxer) markChapterTracks() {
	for _, id := range d.chapterTracks {
		t, ok := d.tracks.Get(id)
		if !ok {
			continue
		}
		switch t.Handler {
		case TypeTEXT, TypeSBTL:
			t.Type = TrackChapter
			d.diag.Debug(pkg.DebugChapters, "chapter track", "track", id)
		}
	}
}

// readChapterTracks reads the QuickTime chapter track samples, a 16 bit
// length followed by the text. Nero chapters take precedence.
func (d *Demuxer) readChapterTracks() {
	if len(d.chapters) > 0 || !d.opts.ParseChapterTrack {
		return
	}
	for _, t := range d.tracks.Items {
		if t.Type != TrackChapter {
			continue
		}
		for _, e := range t.Index {
			buf := make([]byte, min(e.Size, maxChapterText))
			if err := pkg.ReadFull(d.stream, buf, e.Pos); err != nil {
				d.diag.Warn(t.TrackID, err)
				break
			}
			if len(buf) < 2 {
				continue
			}
			n := min(int(binary.BigEndian.Uint16(buf)), len(buf)-2)
			text := bytes.TrimRight(buf[2:2+n], "\x00")
			c := ChapterEntry{Name: d.recode(text), Timecode: e.Timecode}
			d.chapters = append(d.chapters, c)
			d.diag.Debug(pkg.DebugChapters, "chapter", "track", t.TrackID, "name", c.Name, "timecode", c.Timecode)
		}
	}
}

func (d *Demuxer) sortChapters() {
	slices.SortStableFunc(d.chapters, func(a, b ChapterEntry) int {
		return cmp.Compare(a.Timecode, b.Timecode)
	})
}
