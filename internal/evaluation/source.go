package evaluation

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"treeval/internal/cfg"
	"treeval/internal/common"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/rs/zerolog/log"
)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
	lz4Magic  = []byte{0x04, 0x22, 0x4d, 0x18}
)

// Source is the raw byte stream of one run's input, decompressed if needed.
// It is acquired once per run and must be closed.
type Source struct {
	Name        string
	Compression string

	r       io.Reader
	closers []func() error
	cmd     *exec.Cmd
	drained bool
}

// OpenSource opens the input configured in settings: a file, standard input or the
// standard output of a shell command.
func OpenSource(ctx context.Context, settings *cfg.Settings) (*Source, error) {
	switch {
	case settings.InputPipe != "":
		return OpenPipe(ctx, settings.InputPipe, settings.Compression)
	case settings.InputStdin || settings.InputFile == common.StdinPath:
		return openReader("stdin", os.Stdin, settings.Compression, nil)
	case settings.InputFile != "":
		return OpenFile(settings.InputFile, settings.Compression)
	default:
		return nil, common.Configurationf("no input source configured")
	}
}

// OpenFile opens path. With compression "auto" the codec is chosen by file extension,
// falling back to the stream's magic bytes.
func OpenFile(path, compression string) (*Source, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("%w: open input %s: %v", common.ErrStream, path, err)
	}
	if compression == common.CompressionAuto {
		if byExt := compressionFromExt(path); byExt != "" {
			compression = byExt
		}
	}
	return openReader(path, f, compression, f.Close)
}

// OpenPipe runs command through sh -c and reads its standard output.
func OpenPipe(ctx context.Context, command, compression string) (*Source, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Stderr = os.Stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: pipe %q: %v", common.ErrStream, command, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: start %q: %v", common.ErrStream, command, err)
	}

	src, err := openReader("pipe:"+command, stdout, compression, nil)
	if err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return nil, err
	}
	src.cmd = cmd
	return src, nil
}

func openReader(name string, r io.Reader, compression string, closeFn func() error) (*Source, error) {
	src := &Source{Name: name}
	if closeFn != nil {
		src.closers = append(src.closers, closeFn)
	}

	br := bufio.NewReaderSize(r, 64*1024)
	if compression == common.CompressionAuto {
		compression = sniffCompression(br)
	}
	src.Compression = compression

	switch compression {
	case common.CompressionNone:
		src.r = br
	case common.CompressionGzip:
		zr, err := gzip.NewReader(br)
		if err != nil {
			src.Close()
			return nil, fmt.Errorf("%w: %s: gzip: %v", common.ErrStream, name, err)
		}
		src.r = zr
		src.closers = append(src.closers, zr.Close)
	case common.CompressionZstd:
		zr, err := zstd.NewReader(br)
		if err != nil {
			src.Close()
			return nil, fmt.Errorf("%w: %s: zstd: %v", common.ErrStream, name, err)
		}
		src.r = zr
		src.closers = append(src.closers, func() error { zr.Close(); return nil })
	case common.CompressionLZ4:
		src.r = lz4.NewReader(br)
	default:
		src.Close()
		return nil, common.Configurationf("unknown compression %q", compression)
	}

	log.Info().Str("input", name).Str("compression", compression).Msg("Input opened")
	return src, nil
}

func (s *Source) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	if err == io.EOF {
		s.drained = true
	} else if err != nil {
		err = fmt.Errorf("%w: read %s: %v", common.ErrStream, s.Name, err)
	}
	return n, err
}

// Close releases the decompressor and the underlying file. A pipe command is killed if
// its output was not read to the end; otherwise its exit status is reported.
func (s *Source) Close() error {
	var first error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	s.closers = nil

	if s.cmd != nil {
		cmd := s.cmd
		s.cmd = nil
		if !s.drained {
			_ = cmd.Process.Kill()
			_ = cmd.Wait()
			return first
		}
		if err := cmd.Wait(); err != nil && first == nil {
			first = fmt.Errorf("%w: %s: %v", common.ErrStream, s.Name, err)
		}
	}
	return first
}

func compressionFromExt(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz", ".gzip":
		return common.CompressionGzip
	case ".zst", ".zstd":
		return common.CompressionZstd
	case ".lz4":
		return common.CompressionLZ4
	default:
		return ""
	}
}

// sniffCompression peeks at the first bytes without consuming them.
func sniffCompression(br *bufio.Reader) string {
	head, _ := br.Peek(4)
	switch {
	case bytes.HasPrefix(head, gzipMagic):
		return common.CompressionGzip
	case bytes.HasPrefix(head, zstdMagic):
		return common.CompressionZstd
	case bytes.HasPrefix(head, lz4Magic):
		return common.CompressionLZ4
	default:
		return common.CompressionNone
	}
}
