package partition

import (
	_ "embed"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/google/uuid"
)

// typeRow is a single row of the embedded partition type table.
type typeRow struct {
	// Scheme is either "mbr" or "gpt".
	Scheme string `csv:"scheme"`
	// ID is a hex system indicator for MBR rows, or a type GUID for GPT rows.
	ID   string `csv:"id"`
	Name string `csv:"name"`
}

//go:embed types.csv
var partitionTypesRawCSV string

var mbrTypeNames map[uint8]string
var gptTypeNames map[uuid.UUID]string

// MBRTypeName returns a human-readable name for an MBR system indicator. Unknown
// indicators are rendered in hex.
func MBRTypeName(sysInd uint8) string {
	name, ok := mbrTypeNames[sysInd]
	if ok {
		return name
	}
	return fmt.Sprintf("0x%02x", sysInd)
}

// GPTTypeName returns a human-readable name for a GPT partition type GUID. Unknown
// GUIDs are returned in their canonical string form.
func GPTTypeName(typeGUID uuid.UUID) string {
	name, ok := gptTypeNames[typeGUID]
	if ok {
		return name
	}
	return strings.ToUpper(typeGUID.String())
}

func init() {
	csvReader := csv.NewReader(strings.NewReader(partitionTypesRawCSV))
	csvReader.Comma = '|'

	var rows []typeRow
	err := gocsv.UnmarshalCSV(csvReader, &rows)
	if err != nil {
		panic(fmt.Errorf("failed to decode partition type table: %w", err))
	}

	mbrTypeNames = make(map[uint8]string)
	gptTypeNames = make(map[uuid.UUID]string)

	for i, row := range rows {
		switch row.Scheme {
		case "mbr":
			sysInd, err := strconv.ParseUint(row.ID, 16, 8)
			if err != nil {
				panic(fmt.Errorf("bad system indicator %q on row %d: %w", row.ID, i+1, err))
			}
			mbrTypeNames[uint8(sysInd)] = row.Name
		case "gpt":
			typeGUID, err := uuid.Parse(row.ID)
			if err != nil {
				panic(fmt.Errorf("bad type GUID %q on row %d: %w", row.ID, i+1, err))
			}
			gptTypeNames[typeGUID] = row.Name
		default:
			panic(fmt.Errorf("unknown partition scheme %q on row %d", row.Scheme, i+1))
		}
	}
}
