package mp4

import (
	"bytes"
	"testing"

	"m7s.live/qtmp4/pkg"
)

func TestDefaultOptions(t *testing.T) {
	t.Setenv("QTMP4_DEBUG", "qtmp4_full")
	t.Setenv("DEBUG", "qtmp4_full")
	t.Setenv("KEYFRAMEOPENGOP", "false")
	t.Setenv("QTMP4_KEYFRAMEOPENGOP", "false")
	opts := DefaultOptions()
	if opts.Debug != "" || !opts.KeyframeOpenGOP {
		t.Errorf("environment leaked into options %+v", opts)
		return
	}
	if opts.ResyncLookahead != 16<<20 || opts.InterleaveWindow != 4<<20 {
		t.Errorf("unexpected defaults %+v", opts)
		return
	}
	d := NewDemuxer(bytes.NewReader(nil))
	if d.diag.On(pkg.DebugTables) {
		t.Error("debug topics enabled from the environment")
	}
}
