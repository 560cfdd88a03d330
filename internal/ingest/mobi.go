package ingest

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// PalmDoc compression identifiers from the record-zero header.
const (
	palmDocNoCompression   = 1
	palmDocLZ77Compression = 2
	palmDocHuffCompression = 17480
)

const (
	pdbHeaderSize       = 78
	pdbRecordEntrySize  = 8
	mobiEncodingUTF8    = 65001
	mobiEncodingCP1252  = 1252
	mobiExtraFlagOffset = 0xF2
)

// extractMobi parses the Palm Database envelope, decompresses the PalmDoc
// text records, and strips the embedded HTML markup. HUFF/CDIC compressed
// books are rejected.
func extractMobi(data []byte) (string, error) {
	records, err := pdbRecords(data)
	if err != nil {
		return "", err
	}
	if len(records) == 0 {
		return "", fmt.Errorf("%w: no records", ErrCorruptDocument)
	}

	header := records[0]
	if len(header) < 14 {
		return "", fmt.Errorf("%w: truncated PalmDoc header", ErrCorruptDocument)
	}

	compression := binary.BigEndian.Uint16(header[0:2])
	textLength := binary.BigEndian.Uint32(header[4:8])
	recordCount := int(binary.BigEndian.Uint16(header[8:10]))

	if compression == palmDocHuffCompression {
		return "", fmt.Errorf("%w: HUFF/CDIC compression is not supported", ErrCorruptDocument)
	}
	if compression != palmDocNoCompression && compression != palmDocLZ77Compression {
		return "", fmt.Errorf("%w: unknown compression type %d", ErrCorruptDocument, compression)
	}
	if recordCount >= len(records) {
		recordCount = len(records) - 1
	}

	encoding := uint32(mobiEncodingCP1252)
	extraFlags := uint16(0)
	if len(header) >= 24 && bytes.Equal(header[16:20], []byte("MOBI")) {
		mobiHeaderLen := binary.BigEndian.Uint32(header[20:24])
		if len(header) >= 32 {
			encoding = binary.BigEndian.Uint32(header[28:32])
		}
		if mobiHeaderLen >= 0xE4 && len(header) >= mobiExtraFlagOffset+2 {
			extraFlags = binary.BigEndian.Uint16(header[mobiExtraFlagOffset : mobiExtraFlagOffset+2])
		}
	}

	var text bytes.Buffer
	for i := 1; i <= recordCount; i++ {
		record := trimTrailingEntries(records[i], extraFlags)
		if compression == palmDocLZ77Compression {
			decompressPalmDoc(record, &text)
		} else {
			text.Write(record)
		}
	}

	raw := text.Bytes()
	if uint32(len(raw)) > textLength {
		raw = raw[:textLength]
	}

	markup := decodeMobiText(raw, encoding)
	return stripHTML(markup)
}

// pdbRecords slices the file into its Palm Database records.
func pdbRecords(data []byte) ([][]byte, error) {
	if len(data) < pdbHeaderSize {
		return nil, fmt.Errorf("%w: file too small for a PDB header", ErrCorruptDocument)
	}

	numRecords := int(binary.BigEndian.Uint16(data[76:78]))
	listEnd := pdbHeaderSize + numRecords*pdbRecordEntrySize
	if numRecords == 0 || len(data) < listEnd {
		return nil, fmt.Errorf("%w: truncated record list", ErrCorruptDocument)
	}

	offsets := make([]uint32, numRecords)
	for i := 0; i < numRecords; i++ {
		entry := pdbHeaderSize + i*pdbRecordEntrySize
		offsets[i] = binary.BigEndian.Uint32(data[entry : entry+4])
	}

	records := make([][]byte, numRecords)
	for i := 0; i < numRecords; i++ {
		start := offsets[i]
		end := uint32(len(data))
		if i+1 < numRecords {
			end = offsets[i+1]
		}
		if start > end || end > uint32(len(data)) {
			return nil, fmt.Errorf("%w: record %d offsets out of range", ErrCorruptDocument, i)
		}
		records[i] = data[start:end]
	}
	return records, nil
}

// trimTrailingEntries drops the per-record trailing data described by the
// MOBI extra data flags. Each set bit above bit 0 is a backward-encoded
// variable-width entry at the record's tail; bit 0 is the multibyte overlap
// whose size lives in the low bits of the final byte.
func trimTrailingEntries(record []byte, flags uint16) []byte {
	for bit := 15; bit > 0; bit-- {
		if flags&(1<<bit) == 0 {
			continue
		}
		record = record[:len(record)-backwardVarint(record)]
	}
	if flags&1 != 0 && len(record) > 0 {
		size := int(record[len(record)-1]&0x3) + 1
		if size <= len(record) {
			record = record[:len(record)-size]
		}
	}
	return record
}

// backwardVarint reads the variable-width integer encoded backward at the
// end of the record, returning the full entry size it describes.
func backwardVarint(record []byte) int {
	value := 0
	for i := 0; i < 4 && i < len(record); i++ {
		b := record[len(record)-1-i]
		value |= int(b&0x7F) << (7 * i)
		if b&0x80 != 0 {
			break
		}
	}
	if value > len(record) {
		return 0
	}
	return value
}

// decompressPalmDoc expands one LZ77-compressed text record into out.
func decompressPalmDoc(record []byte, out *bytes.Buffer) {
	for i := 0; i < len(record); {
		c := record[i]
		i++

		switch {
		case c == 0x00 || (c >= 0x09 && c <= 0x7F):
			out.WriteByte(c)

		case c >= 0x01 && c <= 0x08:
			n := int(c)
			if i+n > len(record) {
				n = len(record) - i
			}
			out.Write(record[i : i+n])
			i += n

		case c >= 0xC0:
			out.WriteByte(' ')
			out.WriteByte(c ^ 0x80)

		default: // 0x80..0xBF: distance/length pair
			if i >= len(record) {
				return
			}
			pair := uint16(c)<<8 | uint16(record[i])
			i++

			distance := int((pair >> 3) & 0x7FF)
			length := int(pair&0x7) + 3
			if distance == 0 || distance > out.Len() {
				continue
			}
			// Copies may overlap their own output, so go byte by byte.
			for j := 0; j < length; j++ {
				out.WriteByte(out.Bytes()[out.Len()-distance])
			}
		}
	}
}

// cp1252High maps the 0x80-0x9F range where Windows-1252 departs from
// Latin-1. Zero entries decode to the replacement character.
var cp1252High = [32]rune{
	'€', 0, '‚', 'ƒ', '„', '…', '†', '‡',
	'ˆ', '‰', 'Š', '‹', 'Œ', 0, 'Ž', 0,
	0, '‘', '’', '“', '”', '•', '–', '—',
	'˜', '™', 'š', '›', 'œ', 0, 'ž', 'Ÿ',
}

// decodeMobiText converts a record payload to a Go string using the book's
// declared encoding.
func decodeMobiText(raw []byte, encoding uint32) string {
	if encoding == mobiEncodingUTF8 {
		return string(raw)
	}

	var sb strings.Builder
	sb.Grow(len(raw))
	for _, b := range raw {
		switch {
		case b < 0x80:
			sb.WriteByte(b)
		case b < 0xA0:
			r := cp1252High[b-0x80]
			if r == 0 {
				r = '�'
			}
			sb.WriteRune(r)
		default:
			sb.WriteRune(rune(b))
		}
	}
	return sb.String()
}

// stripHTML reduces the book's markup to its visible text.
func stripHTML(markup string) (string, error) {
	node, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCorruptDocument, err)
	}

	var content strings.Builder
	htmlText(node, &content)
	return content.String(), nil
}
