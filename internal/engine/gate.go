package engine

// detectorFamily names one of the gated achievement detector families.
type detectorFamily string

const (
	familyConsistency detectorFamily = "consistency"
	familyReduction   detectorFamily = "reduction"
	familyCorrelation detectorFamily = "correlation"
	familyNotes       detectorFamily = "note_lifestyle"
)

// familiesForLevel maps a user's complexity level to the detector families the
// calculation pass runs. The gate holds no detection logic; it is the rollout
// seam. Levels below 1 are treated as 1, levels above 4 as 4.
func familiesForLevel(level int) []detectorFamily {
	if level < 1 {
		level = 1
	}
	families := []detectorFamily{familyConsistency}
	if level >= 2 {
		families = append(families, familyReduction)
	}
	if level >= 3 {
		families = append(families, familyCorrelation)
	}
	if level >= 4 {
		families = append(families, familyNotes)
	}
	return families
}
