package align

import (
	"bufio"
	"bytes"
	"io"

	"github.com/grailbio/hts/sam"
	"github.com/pkg/errors"
)

// nmTag is the SAM edit-distance tag.
var nmTag = sam.NewTag("NM")

// samOptionalField is the index of the first optional field of a SAM record.
const samOptionalField = 11

// CountPerfect reads SAM text from r and counts the alignment records with an
// NM:i:0 field. Header lines are skipped.
func CountPerfect(r io.Reader) (int, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(nil, 1<<24)
	var (
		n    int
		line int
	)
	for sc.Scan() {
		line++
		rec := sc.Bytes()
		if len(rec) == 0 || rec[0] == '@' {
			continue
		}
		fields := bytes.Split(rec, []byte{'\t'})
		if len(fields) < samOptionalField {
			return n, errors.Errorf("sam line %d: %d fields, want at least %d", line, len(fields), samOptionalField)
		}
		for _, f := range fields[samOptionalField:] {
			if len(f) < 2 || f[0] != nmTag[0] || f[1] != nmTag[1] {
				continue
			}
			aux, err := sam.ParseAux(f)
			if err != nil {
				return n, errors.Wrapf(err, "sam line %d", line)
			}
			if isZero(aux.Value()) {
				n++
			}
			break
		}
	}
	if err := sc.Err(); err != nil {
		return n, errors.Wrap(err, "read sam")
	}
	return n, nil
}

// isZero reports whether an integer aux value is zero.
func isZero(v interface{}) bool {
	switch v := v.(type) {
	case int8:
		return v == 0
	case uint8:
		return v == 0
	case int16:
		return v == 0
	case uint16:
		return v == 0
	case int32:
		return v == 0
	case uint32:
		return v == 0
	case int:
		return v == 0
	}
	return false
}
