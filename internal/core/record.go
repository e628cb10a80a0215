package core

// Record is one labeling event as decoded from JSON.
//
// Expected keys are task_id, labeler_id, timestamp, time_spent_seconds and
// standards, but none is required. Unknown keys are carried along and ignored
// when flattening.
type Record map[string]any

// Column names of the exported CSV, in output order.
const (
	ColTaskID                     = "task_id"
	ColLabelerID                  = "labeler_id"
	ColTimestamp                  = "timestamp"
	ColTimeSpentSeconds           = "time_spent_seconds"
	ColPrimaryStandardID          = "primary_standard_id"
	ColPrimaryStandardCode        = "primary_standard_code"
	ColPrimaryStandardDescription = "primary_standard_description"
	ColSecondaryStandardIDs       = "secondary_standard_ids"
	ColSecondaryStandardCodes     = "secondary_standard_codes"
)

// Record keys read by Flatten that are not also column names.
const (
	keyStandards           = "standards"
	keyStandardID          = "id"
	keyStandardCode        = "code"
	keyStandardDescription = "description"
)

// SecondarySeparator joins the ids and codes of secondary standards.
const SecondarySeparator = ", "

// Columns is the fixed header of every export. It is always written in full.
var Columns = []string{
	ColTaskID,
	ColLabelerID,
	ColTimestamp,
	ColTimeSpentSeconds,
	ColPrimaryStandardID,
	ColPrimaryStandardCode,
	ColPrimaryStandardDescription,
	ColSecondaryStandardIDs,
	ColSecondaryStandardCodes,
}

// Row is the flat, fixed-schema form of one Record.
type Row struct {
	TaskID                     string
	LabelerID                  string
	Timestamp                  string
	TimeSpentSeconds           string
	PrimaryStandardID          string
	PrimaryStandardCode        string
	PrimaryStandardDescription string
	SecondaryStandardIDs       string
	SecondaryStandardCodes     string
}

// Values returns the row's cells in Columns order.
func (r Row) Values() []string {
	return []string{
		r.TaskID,
		r.LabelerID,
		r.Timestamp,
		r.TimeSpentSeconds,
		r.PrimaryStandardID,
		r.PrimaryStandardCode,
		r.PrimaryStandardDescription,
		r.SecondaryStandardIDs,
		r.SecondaryStandardCodes,
	}
}
