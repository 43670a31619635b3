package types

import "time"

const (
	// DefaultScanFileName is stored when a scan arrives without a file name.
	DefaultScanFileName = "unknown-file"

	// DefaultScanTreatment is stored when a scan arrives without treatment guidance.
	DefaultScanTreatment = "No treatment guidance available"

	// ScanHistoryLimit caps the number of records returned by a history listing.
	ScanHistoryLimit = 50
)

// ScanHistory is a single recorded diagnosis.
// Disease, Confidence and Severity are never blank once persisted.
type ScanHistory struct {
	// ID is the store-assigned identifier of the record.
	ID string `json:"id" db:"id"`

	// FileName is the name of the image that was diagnosed.
	FileName string `json:"fileName" db:"file_name"`

	// Disease is the diagnosed disease label.
	Disease string `json:"disease" db:"disease"`

	// Confidence is the confidence label or score reported by the model.
	// It is kept as text and not validated as a number.
	Confidence string `json:"confidence" db:"confidence"`

	// Severity is the severity label of the diagnosis.
	Severity string `json:"severity" db:"severity"`

	// Treatment is the recommended treatment guidance.
	Treatment string `json:"treatment" db:"treatment"`

	// CreatedAt is when the scan happened; caller supplied or server time.
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}
