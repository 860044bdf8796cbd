package pkg

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"m7s.live/qtmp4/pkg/codec"
)

// ByteStream is the seekable input of a reader.
type ByteStream interface {
	io.ReaderAt
	Size() int64
}

type fileStream struct {
	*io.SectionReader
	file *os.File
}

func (f *fileStream) Close() error {
	return f.file.Close()
}

// OpenFile opens path as a ByteStream. The returned value also implements io.Closer.
func OpenFile(path string) (ByteStream, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	return &fileStream{io.NewSectionReader(file, 0, info.Size()), file}, nil
}

type httpStream struct {
	ctx    context.Context
	client *http.Client
	url    string
	size   int64
}

// OpenURL opens an http(s) resource as a ByteStream. Every read is a range
// request, so the server has to support them.
func OpenURL(ctx context.Context, url string) (ByteStream, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return nil, err
	}
	s := &httpStream{ctx: ctx, client: http.DefaultClient, url: url}
	res, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: %s", url, res.Status)
	}
	if res.ContentLength < 0 || !strings.Contains(res.Header.Get("Accept-Ranges"), "bytes") {
		return nil, fmt.Errorf("%s: server does not serve byte ranges", url)
	}
	s.size = res.ContentLength
	return s, nil
}

func (s *httpStream) Size() int64 {
	return s.size
}

func (s *httpStream) ReadAt(p []byte, off int64) (n int, err error) {
	if off >= s.size {
		return 0, io.EOF
	}
	end := min(off+int64(len(p)), s.size)
	req, err := http.NewRequestWithContext(s.ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", off, end-1))
	res, err := s.client.Do(req)
	if err != nil {
		return
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusPartialContent {
		return 0, fmt.Errorf("range %d-%d: %s", off, end-1, res.Status)
	}
	n, err = io.ReadFull(res.Body, p[:end-off])
	if err == nil && end-off < int64(len(p)) {
		err = io.EOF
	}
	return
}

// ReadFull reads exactly len(buf) bytes at off. Any short read is an ErrIoFailure.
func ReadFull(s ByteStream, buf []byte, off int64) error {
	n, err := s.ReadAt(buf, off)
	if n == len(buf) {
		return nil
	}
	if err == nil || err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return fmt.Errorf("%w: read %d of %d bytes at %d: %v", ErrIoFailure, n, len(buf), off, err)
}

// IndexEntry locates one sample in the file. Timecode and Duration are nanoseconds.
type IndexEntry struct {
	Pos      int64
	Size     uint32
	Timecode int64
	Duration int64
	Keyframe bool
}

func (e IndexEntry) String() string {
	return fmt.Sprintf("pos %d size %d tc %d dur %d key %t", e.Pos, e.Size, e.Timecode, e.Duration, e.Keyframe)
}

type Packetizer interface {
	ProcessSample(data []byte, entry IndexEntry) error
	Flush() error
}

type PacketizerFactory func(decision *codec.Decision) (Packetizer, error)
