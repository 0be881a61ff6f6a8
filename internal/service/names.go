package service

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// NameList is a rendered list of pet names plus the verb that agrees with it.
type NameList struct {
	Capitalized string
	Lowercase   string
	Verb        string
}

// RenderNames joins pet names for the message body: one name as is, two or
// three joined with commas and a final "and", four or more collapsed to
// "your pets".
func RenderNames(names []string) NameList {
	switch n := len(names); {
	case n == 0:
		return NameList{}
	case n == 1:
		return NameList{Capitalized: names[0], Lowercase: names[0], Verb: "is"}
	case n <= 3:
		joined := strings.Join(names[:n-1], ", ") + " and " + names[n-1]
		return NameList{Capitalized: joined, Lowercase: joined, Verb: "are"}
	default:
		return NameList{Capitalized: "Your pets", Lowercase: "your pets", Verb: "are"}
	}
}

// TitleName normalises a stored patient name ("BELLA mae") to "Bella Mae".
func TitleName(name string) string {
	return cases.Title(language.English).String(strings.TrimSpace(name))
}
