package engine

import (
	"fmt"
)

// Result is the native status code returned by every filesystem engine primitive.
// Values outside this package are translated into the error taxonomy of the
// `fatbind` package and never shown to callers directly.
type Result int

var resultMessages map[Result]string

const (
	ResultOK Result = iota
	// ResultDiskError means the block layer failed underneath the engine.
	ResultDiskError
	// ResultInternalError means the engine found an inconsistent structure, such as a
	// broken cluster chain.
	ResultInternalError
	ResultNotReady
	ResultNoFile
	ResultNoPath
	ResultInvalidName
	ResultDenied
	ResultInvalidObject
	ResultNotEnabled
	// ResultNoFilesystem means the volume doesn't hold a file system the engine
	// understands.
	ResultNoFilesystem
	ResultInvalidParameter
	ResultTooManyOpenFiles
)

func init() {
	resultMessages = make(map[Result]string, 16)
	resultMessages[ResultOK] = "Succeeded"
	resultMessages[ResultDiskError] = "A hard error occurred in the low level disk I/O layer"
	resultMessages[ResultInternalError] = "Assertion failed"
	resultMessages[ResultNotReady] = "The physical drive cannot work"
	resultMessages[ResultNoFile] = "Could not find the file"
	resultMessages[ResultNoPath] = "Could not find the path"
	resultMessages[ResultInvalidName] = "The path name format is invalid"
	resultMessages[ResultDenied] = "Access denied"
	resultMessages[ResultInvalidObject] = "The object is invalid"
	resultMessages[ResultNotEnabled] = "The volume has no work area"
	resultMessages[ResultNoFilesystem] = "There is no valid FAT volume"
	resultMessages[ResultInvalidParameter] = "Given parameter is invalid"
	resultMessages[ResultTooManyOpenFiles] = "Number of open files exceeds the limit"
}

// StrResult returns a human-readable description of a result code.
func StrResult(code Result) string {
	message, ok := resultMessages[code]
	if ok {
		return message
	}
	return fmt.Sprintf("result %d not recognized.", int(code))
}

func (r Result) String() string {
	return StrResult(r)
}

// OK is shorthand for `r == ResultOK`.
func (r Result) OK() bool {
	return r == ResultOK
}
