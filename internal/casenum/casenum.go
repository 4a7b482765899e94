// Package casenum derives and parses tribunal case numbers of the form
// "ITA 108/NAG/2023".
package casenum

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

// CaseType is the appeal category prefix of a case number.
type CaseType string

const (
	CaseTypeITA CaseType = "ITA"
	CaseTypeMA  CaseType = "MA"
	CaseTypeSA  CaseType = "SA"
	CaseTypeCO  CaseType = "CO"
)

// DefaultPlaceOfFiling is the registry code used when a record omits one.
const DefaultPlaceOfFiling = "NAG"

// CaseTypes lists every accepted case type in display order.
var CaseTypes = []CaseType{CaseTypeITA, CaseTypeMA, CaseTypeSA, CaseTypeCO}

// Pattern matches a complete case number. Derive and Parse must agree with it.
var Pattern = regexp.MustCompile(`^(ITA|MA|SA|CO)\s(\d+)/([A-Z]{3})/(\d{4})$`)

// ErrInvalid is returned by Parse for strings that are not case numbers.
var ErrInvalid = errors.New("invalid case number")

// Parts are the four fields a case number is composed of.
type Parts struct {
	CaseType      CaseType
	SerialNumber  int
	PlaceOfFiling string
	YearOfFiling  int
}

// Valid reports whether t is a known case type.
func (t CaseType) Valid() bool {
	switch t {
	case CaseTypeITA, CaseTypeMA, CaseTypeSA, CaseTypeCO:
		return true
	}
	return false
}

// Derive formats the case number for the given fields.
func Derive(caseType CaseType, serialNumber int, placeOfFiling string, yearOfFiling int) string {
	return fmt.Sprintf("%s %d/%s/%d", caseType, serialNumber, placeOfFiling, yearOfFiling)
}

// String formats p as a case number.
func (p Parts) String() string {
	return Derive(p.CaseType, p.SerialNumber, p.PlaceOfFiling, p.YearOfFiling)
}

// Valid reports whether caseNo is a well formed case number.
func Valid(caseNo string) bool {
	return Pattern.MatchString(caseNo)
}

// Parse splits a case number back into its parts.
func Parse(caseNo string) (Parts, error) {
	m := Pattern.FindStringSubmatch(caseNo)
	if m == nil {
		return Parts{}, fmt.Errorf("%w: %q", ErrInvalid, caseNo)
	}

	serial, err := strconv.Atoi(m[2])
	if err != nil || serial <= 0 {
		return Parts{}, fmt.Errorf("%w: serial number %q", ErrInvalid, m[2])
	}
	year, _ := strconv.Atoi(m[4])

	return Parts{
		CaseType:      CaseType(m[1]),
		SerialNumber:  serial,
		PlaceOfFiling: m[3],
		YearOfFiling:  year,
	}, nil
}
