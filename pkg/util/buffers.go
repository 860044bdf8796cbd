package util

import (
	"io"
	"net"
)

// Buffers reads across a list of byte slices without joining them. Slices
// returned by ReadBytes alias the input when they fit in one buffer.
type Buffers struct {
	Offset int
	Length int
	index  int
	cur    []byte
	net.Buffers
}

func NewBuffersFromBytes(b ...[]byte) *Buffers {
	ret := &Buffers{Buffers: net.Buffers(b)}
	for _, level0 := range b {
		ret.Length += len(level0)
	}
	if len(b) > 0 {
		ret.cur = b[0]
	}
	return ret
}

func (buffers *Buffers) next() {
	for len(buffers.cur) == 0 && buffers.index+1 < len(buffers.Buffers) {
		buffers.index++
		buffers.cur = buffers.Buffers[buffers.index]
	}
}

func (buffers *Buffers) forward(n int) {
	buffers.cur = buffers.cur[n:]
	buffers.Length -= n
	buffers.Offset += n
	buffers.next()
}

func (buffers *Buffers) ReadByte() (byte, error) {
	if buffers.Length == 0 {
		return 0, io.EOF
	}
	buffers.next()
	b := buffers.cur[0]
	buffers.forward(1)
	return b, nil
}

// ReadBE reads an n byte big endian integer.
func (buffers *Buffers) ReadBE(n int) (num int, err error) {
	if n > buffers.Length {
		return -1, io.ErrUnexpectedEOF
	}
	for i := 0; i < n; i++ {
		b, _ := buffers.ReadByte()
		num = num<<8 | int(b)
	}
	return
}

func (buffers *Buffers) ReadBytes(n int) ([]byte, error) {
	if n > buffers.Length {
		return nil, io.ErrUnexpectedEOF
	}
	buffers.next()
	if n <= len(buffers.cur) {
		b := buffers.cur[:n:n]
		buffers.forward(n)
		return b, nil
	}
	b := make([]byte, 0, n)
	for len(b) < n {
		take := min(n-len(b), len(buffers.cur))
		b = append(b, buffers.cur[:take]...)
		buffers.forward(take)
	}
	return b, nil
}

func (buffers *Buffers) Skip(n int) error {
	if n > buffers.Length {
		return io.ErrUnexpectedEOF
	}
	for n > 0 {
		take := min(n, len(buffers.cur))
		buffers.forward(take)
		n -= take
	}
	return nil
}
