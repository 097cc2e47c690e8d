package compression

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"io"
)

// gzipMagic is the signature at the start of every gzip stream.
var gzipMagic = []byte{0x1f, 0x8b}

// IsCompressedImage reports whether `header`, the first bytes of a file, looks
// like a compressed disk image rather than a raw one. A raw FAT image starts with
// a jump instruction (0xEB or 0xE9), an MBR with boot code, or zeroes, none of
// which collide with the gzip signature.
func IsCompressedImage(header []byte) bool {
	return bytes.HasPrefix(header, gzipMagic)
}

// countingWriter tracks the number of bytes that made it to the underlying writer.
type countingWriter struct {
	w     io.Writer
	total int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.total += int64(n)
	return n, err
}

// CompressImage compresses a disk image using RLE8 and gzip.
//
// The returned int64 gives the number of compressed bytes written to `output`.
// If an error occurred, the value is undefined and should not be used.
func CompressImage(input io.Reader, output io.Writer) (int64, error) {
	counter := &countingWriter{w: output}
	gzWriter, err := gzip.NewWriterLevel(counter, gzip.BestCompression)
	if err != nil {
		return 0, err
	}

	_, err = CompressRLE8(input, gzWriter)
	if err != nil {
		gzWriter.Close()
		return counter.total, err
	}

	err = gzWriter.Close()
	return counter.total, err
}

// CompressImageToBytes is a convenience wrapper around [CompressImage] that
// returns the compressed image in a new byte slice.
func CompressImageToBytes(image []byte) ([]byte, error) {
	var buffer bytes.Buffer
	_, err := CompressImage(bytes.NewReader(image), &buffer)
	if err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

// DecompressImage takes a gzipped, RLE8-encoded disk image and decompresses it
// to the original raw bytes.
//
// The returned int64 gives the number of bytes written to the output (i.e. the
// decompressed size of the image).
func DecompressImage(input io.Reader, output io.Writer) (int64, error) {
	gzReader, err := gzip.NewReader(input)
	if err != nil {
		return 0, err
	}
	defer gzReader.Close()
	return DecompressRLE8(gzReader, output)
}

// DecompressImageToBytes decompresses an entire image into memory.
func DecompressImageToBytes(input io.Reader) ([]byte, error) {
	var buffer bytes.Buffer
	writer := bufio.NewWriter(&buffer)

	_, err := DecompressImage(input, writer)
	if err != nil {
		return nil, err
	}
	err = writer.Flush()
	if err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}
