package mp4

import (
	"golang.org/x/text/language"

	. "m7s.live/qtmp4/plugin/mp4/pkg/box"
)

const undetermined = "und"

// Macintosh language codes, indexed by code. Empty slots have no ISO 639-2 equivalent.
var macLanguages = [...]string{
	"eng", "fra", "deu", "ita", "nld", "swe", "spa", "dan", "por", "nor",
	"heb", "jpn", "ara", "fin", "ell", "isl", "mlt", "tur", "hrv", "zho",
	"urd", "hin", "tha", "kor", "lit", "pol", "hun", "est", "lav", "sme",
	"fao", "fas", "rus", "zho", "nld", "gle", "sqi", "ron", "ces", "slk",
	"slv", "yid", "srp", "mkd", "bul", "ukr", "bel", "uzb", "kaz", "aze",
	"aze", "hye", "kat", "ron", "kir", "tgk", "tuk", "mon", "mon", "pus",
	"kur", "kas", "snd", "bod", "nep", "san", "mar", "ben", "asm", "guj",
	"pan", "ori", "mal", "kan", "tam", "tel", "sin", "mya", "khm", "lao",
	"vie", "ind", "tgl", "msa", "msa", "amh", "tir", "orm", "som", "swa",
	"kin", "run", "nya", "mlg", "epo",
}

// languageOf returns the ISO 639-2 code of a media header, "und" when the
// field is unset or does not name a language.
func languageOf(mdhd MediaHeaderBox) string {
	code := mdhd.Language
	if mdhd.RawLanguage < 0x400 {
		if int(mdhd.RawLanguage) >= len(macLanguages) {
			return undetermined
		}
		code = macLanguages[mdhd.RawLanguage]
	}
	return normalizeLanguage(code)
}

func normalizeLanguage(code string) string {
	base, err := language.ParseBase(code)
	if err != nil {
		return undetermined
	}
	if iso := base.ISO3(); iso != "" {
		return iso
	}
	return undetermined
}
