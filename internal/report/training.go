package report

import (
	"encoding/csv"
	"io"
	"strings"

	"github.com/scanforge/sourceguard/internal/instr"
	"github.com/scanforge/sourceguard/internal/object"
)

// TrainingRow is one exported line of the offline training corpus (spec §6):
// <file-hash>,<language>,<object-name>,<token-sequence>,<instruction-hash>,<label?>.
// Label is empty for unlabeled export; a human or a separate labeling pass
// fills it in afterward, so it is carried as a plain optional string rather
// than a bool.
type TrainingRow struct {
	FileHash        string
	Language        string
	ObjectName      string
	TokenSequence   []string
	InstructionHash string
	Label           string
}

// BuildTrainingRow assembles one row for a scored Scan Object. fileHash
// identifies the source file the object was compiled from (independent of
// the object's own token-sequence hash, so two objects from the same file
// share it); the object's own instruction hash comes from the compiler's
// Merkle-like arena hasher, not the token-sequence hash used for
// deduplication (see object.ScanObject.Hash's doc comment).
func BuildTrainingRow(fileHash string, obj *object.ScanObject, hasher *instr.Hasher, id instr.CodeObjectID, label string) TrainingRow {
	sum := hasher.Hash(id)
	return TrainingRow{
		FileHash:        fileHash,
		Language:        obj.Language,
		ObjectName:      obj.Name,
		TokenSequence:   obj.Tokens(),
		InstructionHash: hashHex(sum),
		Label:           label,
	}
}

func hashHex(sum [32]byte) string {
	var b strings.Builder
	b.Grow(64)
	const hexDigits = "0123456789abcdef"
	for _, v := range sum {
		b.WriteByte(hexDigits[v>>4])
		b.WriteByte(hexDigits[v&0xf])
	}
	return b.String()
}

// WriteTrainingCSV writes rows in the spec §6 column order, using ' ' to
// join the token sequence within its single CSV field so the file stays
// strictly one row per Scan Object.
func WriteTrainingCSV(w io.Writer, rows []TrainingRow) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	header := []string{"file_hash", "language", "object_name", "token_sequence", "instruction_hash", "label"}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range rows {
		record := []string{
			r.FileHash,
			r.Language,
			r.ObjectName,
			strings.Join(r.TokenSequence, " "),
			r.InstructionHash,
			r.Label,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
