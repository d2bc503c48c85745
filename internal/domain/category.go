package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

type MajorCategory string

const (
	MajorStudy     MajorCategory = "STUDY"
	MajorBusiness  MajorCategory = "BUSINESS"
	MajorTravel    MajorCategory = "TRAVEL"
	MajorDailyLife MajorCategory = "DAILY_LIFE"
)

type MinorCategory string

const (
	MinorClassListening         MinorCategory = "CLASS_LISTENING"
	MinorDepartmentConversation MinorCategory = "DEPARTMENT_CONVERSATION"
	MinorAssignmentExam         MinorCategory = "ASSIGNMENT_EXAM"

	MinorMeetingConference MinorCategory = "MEETING_CONFERENCE"
	MinorCustomerService   MinorCategory = "CUSTOMER_SERVICE"
	MinorEmailReport       MinorCategory = "EMAIL_REPORT"

	MinorBackpacking MinorCategory = "BACKPACKING"
	MinorFamilyTrip  MinorCategory = "FAMILY_TRIP"
	MinorFriendTrip  MinorCategory = "FRIEND_TRIP"

	MinorShoppingDining  MinorCategory = "SHOPPING_DINING"
	MinorHospitalVisit   MinorCategory = "HOSPITAL_VISIT"
	MinorPublicTransport MinorCategory = "PUBLIC_TRANSPORT"
)

var (
	ErrEmptyCategories = errors.New("at least one category must be selected")
	ErrUnknownCategory = errors.New("unknown category")
)

var majorOrder = []MajorCategory{MajorStudy, MajorBusiness, MajorTravel, MajorDailyLife}

var majorDisplayNames = map[MajorCategory]string{
	MajorStudy:     "학습",
	MajorBusiness:  "업무",
	MajorTravel:    "여행",
	MajorDailyLife: "일상생활",
}

var minorsByMajor = map[MajorCategory][]MinorCategory{
	MajorStudy:     {MinorClassListening, MinorDepartmentConversation, MinorAssignmentExam},
	MajorBusiness:  {MinorMeetingConference, MinorCustomerService, MinorEmailReport},
	MajorTravel:    {MinorBackpacking, MinorFamilyTrip, MinorFriendTrip},
	MajorDailyLife: {MinorShoppingDining, MinorHospitalVisit, MinorPublicTransport},
}

var minorDisplayNames = map[MinorCategory]string{
	MinorClassListening:         "수업 듣기",
	MinorDepartmentConversation: "학과 대화",
	MinorAssignmentExam:         "과제/시험",
	MinorMeetingConference:      "회의/컨퍼런스",
	MinorCustomerService:        "고객 서비스",
	MinorEmailReport:            "이메일/보고서",
	MinorBackpacking:            "백패킹",
	MinorFamilyTrip:             "가족 여행",
	MinorFriendTrip:             "친구 여행",
	MinorShoppingDining:         "쇼핑/외식",
	MinorHospitalVisit:          "병원 방문",
	MinorPublicTransport:        "대중교통",
}

var majorOfMinor = func() map[MinorCategory]MajorCategory {
	out := make(map[MinorCategory]MajorCategory, len(minorDisplayNames))
	for major, minors := range minorsByMajor {
		for _, minor := range minors {
			out[minor] = major
		}
	}
	return out
}()

// Majors returns all major categories in canonical order.
func Majors() []MajorCategory {
	out := make([]MajorCategory, len(majorOrder))
	copy(out, majorOrder)
	return out
}

// ParseMajor accepts a case-insensitive category name.
func ParseMajor(s string) (MajorCategory, bool) {
	m := MajorCategory(strings.ToUpper(strings.TrimSpace(s)))
	_, ok := minorsByMajor[m]
	return m, ok
}

func ParseMinor(s string) (MinorCategory, bool) {
	m := MinorCategory(strings.ToUpper(strings.TrimSpace(s)))
	_, ok := majorOfMinor[m]
	return m, ok
}

func (m MajorCategory) DisplayName() string {
	return majorDisplayNames[m]
}

func (m MajorCategory) Minors() []MinorCategory {
	minors := minorsByMajor[m]
	out := make([]MinorCategory, len(minors))
	copy(out, minors)
	return out
}

func (m MinorCategory) DisplayName() string {
	return minorDisplayNames[m]
}

func (m MinorCategory) Major() MajorCategory {
	return majorOfMinor[m]
}

// CategorySelection is one (major, minor) pair picked by a user.
type CategorySelection struct {
	Major MajorCategory
	Minor MinorCategory
}

// CategoryMap is the wire and cache shape of a user's selections: major -> minors.
type CategoryMap map[string][]string

// GroupSelections folds selections into a CategoryMap keeping row order within each major.
func GroupSelections(selections []CategorySelection) CategoryMap {
	out := make(CategoryMap)
	for _, s := range selections {
		key := string(s.Major)
		out[key] = append(out[key], string(s.Minor))
	}
	return out
}

// Count returns the number of (major, minor) pairs in the map.
func (c CategoryMap) Count() int {
	n := 0
	for _, minors := range c {
		n += len(minors)
	}
	return n
}

// NormalizeSelections validates raw input and flattens it into unique selections.
// Majors are visited in canonical order and minors in input order; repeated pairs are
// returned separately so the caller can report them.
func NormalizeSelections(input map[string][]string) ([]CategorySelection, []CategorySelection, error) {
	grouped := make(map[MajorCategory][]string, len(input))
	rawKeys := make(map[MajorCategory][]string, len(input))
	for rawMajor := range input {
		major, ok := ParseMajor(rawMajor)
		if !ok {
			return nil, nil, fmt.Errorf("%w: major %q", ErrUnknownCategory, rawMajor)
		}
		rawKeys[major] = append(rawKeys[major], rawMajor)
	}
	for major, keys := range rawKeys {
		sort.Strings(keys)
		for _, key := range keys {
			grouped[major] = append(grouped[major], input[key]...)
		}
	}

	var (
		selections []CategorySelection
		duplicates []CategorySelection
		seen       = make(map[CategorySelection]struct{})
	)
	for _, major := range majorOrder {
		for _, rawMinor := range grouped[major] {
			minor, ok := ParseMinor(rawMinor)
			if !ok {
				return nil, nil, fmt.Errorf("%w: minor %q", ErrUnknownCategory, rawMinor)
			}
			if minor.Major() != major {
				return nil, nil, fmt.Errorf("%w: %s does not belong to %s", ErrUnknownCategory, minor, major)
			}

			sel := CategorySelection{Major: major, Minor: minor}
			if _, dup := seen[sel]; dup {
				duplicates = append(duplicates, sel)
				continue
			}
			seen[sel] = struct{}{}
			selections = append(selections, sel)
		}
	}

	if len(selections) == 0 {
		return nil, nil, ErrEmptyCategories
	}

	return selections, duplicates, nil
}
