package compression

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

// maxRepeatCount is the largest number of extra occurrences one RLE8 group can
// encode. A full group therefore covers maxRepeatCount + 2 bytes.
const maxRepeatCount = 255

// appendRun appends the RLE8 encoding of `run` to `encoded`.
func appendRun(encoded []byte, run ByteRun) []byte {
	remaining := run.RunLength
	for remaining >= 2 {
		repeatCount := min(remaining-2, maxRepeatCount)
		encoded = append(encoded, run.Byte, run.Byte, byte(repeatCount))
		remaining -= repeatCount + 2
	}
	if remaining == 1 {
		encoded = append(encoded, run.Byte)
	}
	return encoded
}

// CompressRLE8 RLE8-encodes everything in `input` and writes it to `output`. It
// returns the number of encoded bytes written.
func CompressRLE8(input io.Reader, output io.Writer) (int64, error) {
	writer := bufio.NewWriter(output)
	encoded := make([]byte, 0, 16)
	total := int64(0)

	for run, err := range NewRLEGrouper(input).Runs() {
		if err != nil {
			return total, fmt.Errorf("error reading input: %w", err)
		}

		encoded = appendRun(encoded[:0], run)
		n, err := writer.Write(encoded)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, writer.Flush()
}

// DecompressRLE8 expands RLE8-encoded data from `input` into `output`, returning
// the number of decoded bytes written. Input that ends between a doubled byte and
// its repeat count fails with [io.ErrUnexpectedEOF].
func DecompressRLE8(input io.Reader, output io.Writer) (int64, error) {
	source := bufio.NewReader(input)
	sink := bufio.NewWriter(output)
	total := int64(0)

	// A doubled byte announces a repeat count, but once a group is complete the
	// next byte starts fresh even if it has the same value.
	pending := -1

	for {
		current, err := source.ReadByte()
		if errors.Is(err, io.EOF) {
			return total, sink.Flush()
		} else if err != nil {
			return total, fmt.Errorf("error reading input: %w", err)
		}

		if int(current) != pending {
			if err = sink.WriteByte(current); err != nil {
				return total, fmt.Errorf("failed to write to output: %w", err)
			}
			total++
			pending = int(current)
			continue
		}

		repeatCount, err := source.ReadByte()
		if errors.Is(err, io.EOF) {
			sink.Flush()
			return total, fmt.Errorf(
				"%w: missing repeat count after two %02x bytes",
				io.ErrUnexpectedEOF,
				current,
			)
		} else if err != nil {
			return total, fmt.Errorf("error reading input: %w", err)
		}

		// The first of the two bytes was already written.
		for range int(repeatCount) + 1 {
			if err = sink.WriteByte(current); err != nil {
				return total, fmt.Errorf("failed to write to output: %w", err)
			}
			total++
		}
		pending = -1
	}
}
