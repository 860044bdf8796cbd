package pkg

import "errors"

var (
	ErrMalformedAtom            = errors.New("malformed atom")
	ErrTableLengthMismatch      = errors.New("table length mismatch")
	ErrInconsistentTables       = errors.New("inconsistent tables")
	ErrUnsupportedCodec         = errors.New("unsupported codec")
	ErrMissingRequiredParameter = errors.New("missing required parameter")
	ErrIoFailure                = errors.New("io failure")
	ErrNoSegmentFound           = errors.New("no segment found")
	ErrNoTracks                 = errors.New("no tracks")
	ErrHeadersNotRead           = errors.New("headers not read")
	ErrUnknownTrack             = errors.New("unknown track")
	ErrNoPacketizer             = errors.New("no packetizer")
)

// FaultKind names the non-fatal fault classes that are reported at most once per track.
type FaultKind string

const (
	FaultMalformedAtom       FaultKind = "malformed_atom"
	FaultTableLengthMismatch FaultKind = "table_length_mismatch"
	FaultInconsistentTables  FaultKind = "inconsistent_tables"
	FaultUnsupportedCodec    FaultKind = "unsupported_codec"
	FaultMissingParameter    FaultKind = "missing_required_parameter"
)

func KindOf(err error) FaultKind {
	switch {
	case errors.Is(err, ErrMalformedAtom):
		return FaultMalformedAtom
	case errors.Is(err, ErrTableLengthMismatch):
		return FaultTableLengthMismatch
	case errors.Is(err, ErrInconsistentTables):
		return FaultInconsistentTables
	case errors.Is(err, ErrUnsupportedCodec):
		return FaultUnsupportedCodec
	case errors.Is(err, ErrMissingRequiredParameter):
		return FaultMissingParameter
	}
	return ""
}

// Fatal reports whether err aborts the whole read.
func Fatal(err error) bool {
	return errors.Is(err, ErrIoFailure) || errors.Is(err, ErrNoSegmentFound) || errors.Is(err, ErrNoTracks)
}
