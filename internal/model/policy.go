package model

// OutcomesToFilterOut are call-center outcomes that mean the pet must never
// be contacted again.
var OutcomesToFilterOut = []string{
	"Client declined - pet died",
	"Deceased per client",
}

// phoneTypesToExclude are free-text phone type labels, as entered in the
// practice management systems, that mark a number as unusable for SMS.
var phoneTypesToExclude = map[string]struct{}{
	"# DISCONNECTED": {}, "# Disconnected?": {}, "# disconnected": {}, "#Disconnected": {},
	"Adam's work #": {}, "Ambree Work": {}, "Amie Work": {}, "Beth's work phone": {},
	"Betsy's Work": {}, "Bradley's - Melanie's work": {}, "Business": {}, "Business 2": {},
	"Business/Home": {}, "Carol's Phone": {}, "Cell-disc": {}, "Cellular & Work-FedEx": {},
	"DISCONNECTED": {}, "Disconnected": {}, "FAX": {}, "Fax": {}, "Fax #": {}, "Fax Number": {},
	"Front desk": {}, "H": {}, "HER WORK": {}, "HOME - DONT CALL": {}, "HOME UNLISTED": {},
	"HOME/WORK": {}, "WORK": {}, "Work": {}, "Work #": {}, "Work Phone": {}, "Wrong Number": {},
	"disconnected": {}, "fax": {}, "his work": {}, "work": {}, "work #": {}, "work phone": {},
	"wrong #": {}, "wrong number": {},
}

// ExcludedPhoneType reports whether a phone type label disqualifies the
// number. Labels match exactly, as stored.
func ExcludedPhoneType(label string) bool {
	_, ok := phoneTypesToExclude[label]
	return ok
}
