package models

import "time"

// UploadRecord is one accepted file in the upload history. Filename is the
// dedup key.
type UploadRecord struct {
	ID         string    `bson:"_id,omitempty" json:"id"`
	Filename   string    `bson:"filename" json:"filename"`
	UploadDate time.Time `bson:"upload_date" json:"upload_date"`
}

// Column names of the instrument file layout kept by the datalake.
const (
	ColReportDate    = "RptDt"
	ColTicker        = "TckrSymb"
	ColMarketName    = "MktNm"
	ColSecurityCat   = "SctyCtgyNm"
	ColISIN          = "ISIN"
	ColCorporateName = "CrpnNm"
)

// RequiredColumns lists the columns every upload must carry, in storage order.
var RequiredColumns = []string{
	ColReportDate,
	ColTicker,
	ColMarketName,
	ColSecurityCat,
	ColISIN,
	ColCorporateName,
}

// DataRecord is a normalized row. A nil field means the source cell had no
// value.
type DataRecord struct {
	RptDt      *string `bson:"RptDt" json:"RptDt"`
	TckrSymb   *string `bson:"TckrSymb" json:"TckrSymb"`
	MktNm      *string `bson:"MktNm" json:"MktNm"`
	SctyCtgyNm *string `bson:"SctyCtgyNm" json:"SctyCtgyNm"`
	ISIN       *string `bson:"ISIN" json:"ISIN"`
	CrpnNm     *string `bson:"CrpnNm" json:"CrpnNm"`
}

// NewDataRecord builds a record from a column-name keyed row, ignoring every
// column outside RequiredColumns.
func NewDataRecord(row map[string]*string) DataRecord {
	return DataRecord{
		RptDt:      row[ColReportDate],
		TckrSymb:   row[ColTicker],
		MktNm:      row[ColMarketName],
		SctyCtgyNm: row[ColSecurityCat],
		ISIN:       row[ColISIN],
		CrpnNm:     row[ColCorporateName],
	}
}
