// Package gs1 decodes the GS1 element strings printed on pharmaceutical packs
// (DataMatrix / GS1-128) into the fields a stock scan needs.
package gs1

import (
	"regexp"
	"strings"
	"time"

	"github.com/pkg/errors"

	"parami-backend/internal/models"
)

// GroupSeparator is the FNC1 stand-in between variable length fields.
const GroupSeparator = '\x1d'

const (
	aiGTIN   = "01"
	aiBatch  = "10"
	aiExpiry = "17"
	aiSerial = "21"
)

var ErrMalformed = errors.New("malformed GS1 element string")

// Record is a decoded scan. Only RawData and Type are always set.
type Record struct {
	GTIN         string
	BatchNumber  string
	ExpiryDate   *time.Time
	SerialNumber string
	RawData      string
	Type         models.ScanType
}

var (
	bracketed  = regexp.MustCompile(`\((\d{2})\)([^()]*)`)
	digitsOnly = regexp.MustCompile(`^\d+$`)
)

// Parse decodes raw. Bracketed "(01)...(17)..." and FNC1 separated forms are
// recognised, with or without a "]C1", "]d2" or "]Q3" symbology prefix.
// A plain 8, 12, 13 or 14 digit payload is taken as a GTIN but stays a BARCODE
// record, since the same digits are often the product SKU. Anything else is
// returned as a BARCODE record holding only the raw data.
func Parse(raw string) (Record, error) {
	rec := Record{RawData: raw, Type: models.ScanTypeBarcode}

	data := strings.TrimSpace(raw)
	if len(data) >= 3 && data[0] == ']' {
		data = data[3:]
	}
	data = strings.TrimLeft(data, string(GroupSeparator))

	var fields map[string]string
	var err error
	switch {
	case strings.HasPrefix(data, "("):
		fields, err = parseBracketed(data)
	case len(data) >= 16 && strings.HasPrefix(data, aiGTIN) && digitsOnly.MatchString(data[:16]):
		fields, err = parseConcatenated(data)
	default:
		if isGTINLength(data) {
			rec.GTIN = NormalizeGTIN(data)
		}
		return rec, nil
	}
	if err != nil {
		return rec, err
	}

	if err := apply(&rec, fields); err != nil {
		return rec, err
	}
	rec.Type = models.ScanTypeGS1
	return rec, nil
}

func isGTINLength(s string) bool {
	switch len(s) {
	case 8, 12, 13, 14:
		return digitsOnly.MatchString(s)
	}
	return false
}

// NormalizeGTIN left-pads an 8, 12 or 13 digit GTIN to 14 digits. Any other
// value is returned trimmed but otherwise unchanged.
func NormalizeGTIN(s string) string {
	s = strings.TrimSpace(s)
	if !isGTINLength(s) || len(s) == 14 {
		return s
	}
	return strings.Repeat("0", 14-len(s)) + s
}

func parseBracketed(data string) (map[string]string, error) {
	matches := bracketed.FindAllStringSubmatch(data, -1)
	if len(matches) == 0 {
		return nil, errors.Wrap(ErrMalformed, "no application identifiers")
	}
	fields := make(map[string]string, len(matches))
	for _, m := range matches {
		fields[m[1]] = strings.TrimRight(m[2], string(GroupSeparator))
	}
	return fields, nil
}

// parseConcatenated walks AIs back to back; variable length fields end at a
// group separator or at the end of the data.
func parseConcatenated(data string) (map[string]string, error) {
	fields := make(map[string]string)
	for len(data) > 0 {
		if data[0] == GroupSeparator {
			data = data[1:]
			continue
		}
		if len(data) < 2 {
			return nil, errors.Wrapf(ErrMalformed, "dangling data %q", data)
		}
		ai := data[:2]
		data = data[2:]

		var n int
		switch ai {
		case aiGTIN:
			n = 14
		case aiExpiry:
			n = 6
		case aiBatch, aiSerial:
			n = strings.IndexByte(data, GroupSeparator)
			if n < 0 {
				n = len(data)
			}
			if n > 20 {
				return nil, errors.Wrapf(ErrMalformed, "AI %s longer than 20 characters", ai)
			}
		default:
			return nil, errors.Wrapf(ErrMalformed, "unsupported AI %s", ai)
		}

		if len(data) < n {
			return nil, errors.Wrapf(ErrMalformed, "AI %s truncated", ai)
		}
		fields[ai] = data[:n]
		data = data[n:]
	}
	return fields, nil
}

func apply(rec *Record, fields map[string]string) error {
	if v, ok := fields[aiGTIN]; ok {
		if len(v) != 14 || !digitsOnly.MatchString(v) {
			return errors.Wrapf(ErrMalformed, "GTIN %q must be 14 digits", v)
		}
		rec.GTIN = v
	}
	if v, ok := fields[aiBatch]; ok {
		if v == "" || len(v) > 20 {
			return errors.Wrapf(ErrMalformed, "batch %q", v)
		}
		rec.BatchNumber = v
	}
	if v, ok := fields[aiSerial]; ok {
		if v == "" || len(v) > 20 {
			return errors.Wrapf(ErrMalformed, "serial %q", v)
		}
		rec.SerialNumber = v
	}
	if v, ok := fields[aiExpiry]; ok {
		t, err := ParseExpiry(v)
		if err != nil {
			return err
		}
		rec.ExpiryDate = &t
	}
	if rec.GTIN == "" {
		return errors.Wrap(ErrMalformed, "GTIN (01) missing")
	}
	return nil
}

// ParseExpiry decodes a YYMMDD expiry. Day 00 means the last day of the month.
func ParseExpiry(v string) (time.Time, error) {
	if len(v) != 6 || !digitsOnly.MatchString(v) {
		return time.Time{}, errors.Wrapf(ErrMalformed, "expiry %q must be YYMMDD", v)
	}
	yy := int(v[0]-'0')*10 + int(v[1]-'0')
	mm := int(v[2]-'0')*10 + int(v[3]-'0')
	dd := int(v[4]-'0')*10 + int(v[5]-'0')
	if mm < 1 || mm > 12 {
		return time.Time{}, errors.Wrapf(ErrMalformed, "expiry month %02d", mm)
	}

	year, month := 2000+yy, time.Month(mm)
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if dd == 0 {
		dd = last
	}
	if dd > last {
		return time.Time{}, errors.Wrapf(ErrMalformed, "expiry day %02d", dd)
	}
	return time.Date(year, month, dd, 0, 0, 0, 0, time.UTC), nil
}
