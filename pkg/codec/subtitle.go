package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

const VobSubPaletteLen = 16 * 4

var FourCC_VOBSUB = FourCC{'m', 'p', '4', 's'}

// VobSubCtx holds the 16 entry YCbCr palette of a VobSub track and the
// .idx style header derived from it.
type VobSubCtx struct {
	Palette [16]uint32
	Width   int
	Height  int
	Header  []byte
}

func NewVobSubCtx(palette []byte, width, height int) (*VobSubCtx, error) {
	if len(palette) < VobSubPaletteLen {
		return nil, errors.New("vobsub: palette shorter than 64 bytes")
	}
	ctx := &VobSubCtx{Width: width, Height: height}
	for i := range ctx.Palette {
		ctx.Palette[i] = binary.BigEndian.Uint32(palette[i*4:])
	}
	if ctx.Width == 0 || ctx.Height == 0 {
		ctx.Width, ctx.Height = 720, 576
	}
	var sb strings.Builder
	sb.WriteString("# VobSub index file, v7 (do not modify this line!)\n")
	fmt.Fprintf(&sb, "size: %dx%d\npalette: ", ctx.Width, ctx.Height)
	for i, ycbcr := range ctx.Palette {
		if i > 0 {
			sb.WriteString(", ")
		}
		r, g, b := ycbcrToRGB(ycbcr)
		fmt.Fprintf(&sb, "%02x%02x%02x", r, g, b)
	}
	sb.WriteString("\n")
	ctx.Header = []byte(sb.String())
	return ctx, nil
}

func ycbcrToRGB(v uint32) (r, g, b uint8) {
	y := float64((v >> 16) & 0xff)
	cr := float64((v>>8)&0xff) - 128
	cb := float64(v&0xff) - 128
	clamp := func(f float64) uint8 {
		switch {
		case f < 0:
			return 0
		case f > 255:
			return 255
		}
		return uint8(f + 0.5)
	}
	return clamp(y + 1.402*cr), clamp(y - 0.344136*cb - 0.714136*cr), clamp(y + 1.772*cb)
}

func (*VobSubCtx) FourCC() FourCC {
	return FourCC_VOBSUB
}

func (ctx *VobSubCtx) GetInfo() string {
	return fmt.Sprintf("size: %dx%d", ctx.Width, ctx.Height)
}

func (ctx *VobSubCtx) GetBase() ICodecCtx {
	return ctx
}

func (ctx *VobSubCtx) GetRecord() []byte {
	return ctx.Header
}
