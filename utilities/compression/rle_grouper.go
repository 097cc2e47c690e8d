package compression

import (
	"bufio"
	"errors"
	"io"
	"iter"
)

// ByteRun represents a single run of a particular byte value.
type ByteRun struct {
	// Byte is the byte value for this run.
	Byte byte
	// RunLength gives the number of times the byte occurs in the run (not the
	// number of times it's repeated). A valid run is always at least 1.
	RunLength int
}

// InvalidRLERun is returned by [RunLengthGrouper.GetNextRun] at the end of the
// input or when an error occurred.
var InvalidRLERun = ByteRun{Byte: 0, RunLength: 0}

// RunLengthGrouper splits a byte stream into runs of identical bytes.
type RunLengthGrouper struct {
	rd *bufio.Reader
}

func NewRLEGrouper(rd io.Reader) RunLengthGrouper {
	return RunLengthGrouper{rd: bufio.NewReader(rd)}
}

// GetNextRun returns a [ByteRun] for the next byte or run of byte values in the
// stream. At the end of the input it returns [InvalidRLERun] and [io.EOF].
func (grouper RunLengthGrouper) GetNextRun() (ByteRun, error) {
	firstByte, err := grouper.rd.ReadByte()
	if err != nil {
		return InvalidRLERun, err
	}

	runLength := 1
	for {
		currentByte, err := grouper.rd.ReadByte()
		if err == io.EOF {
			break
		} else if err != nil {
			return InvalidRLERun, err
		}

		if currentByte != firstByte {
			// Hit a different byte, back up so the next run starts with it.
			grouper.rd.UnreadByte()
			break
		}
		runLength++
	}
	return ByteRun{Byte: firstByte, RunLength: runLength}, nil
}

// Runs iterates over every run in the stream. The end of the input ends the
// sequence; any other read error is yielded once, as the last item.
func (grouper RunLengthGrouper) Runs() iter.Seq2[ByteRun, error] {
	return func(yield func(ByteRun, error) bool) {
		for {
			run, err := grouper.GetNextRun()
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(run, err) || err != nil {
				return
			}
		}
	}
}
