package parser

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"golang.org/x/text/encoding/charmap"
)

// CSVDelimiter is the field separator used by the exchange's csv exports.
const CSVDelimiter = ';'

// ReadCSV parses a Latin-1 encoded, ';'-delimited file. The first physical
// line is discarded and the second is the header. Lines the csv reader
// cannot tokenize, and lines with more fields than the header, are skipped;
// lines with fewer fields are padded with nil cells.
func ReadCSV(r io.Reader) (*Table, error) {
	br := bufio.NewReader(charmap.ISO8859_1.NewDecoder().Reader(r))

	if _, err := br.ReadString('\n'); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrNoColumns
		}
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	cr := csv.NewReader(br)
	cr.Comma = CSVDelimiter
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrNoColumns
		}
		return nil, classifyCSVError(err)
	}

	b := newBuilder(header)
	for {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				b.table.Skipped++
				continue
			}
			return nil, classifyCSVError(err)
		}
		b.add(fields)
	}
	return b.table, nil
}

// classifyCSVError separates tokenizer failures from failures of the
// underlying stream, which surface as decode errors.
func classifyCSVError(err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return fmt.Errorf("csv: %w", err)
	}
	return fmt.Errorf("%w: %v", ErrDecode, err)
}
