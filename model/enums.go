package model

import (
	"github.com/jacentio/conference/apperr"
)

// TeeShirtSize is a profile's shirt size, stored as its string form.
type TeeShirtSize string

const (
	TeeShirtNotSpecified TeeShirtSize = "NOT_SPECIFIED"
	TeeShirtXSM          TeeShirtSize = "XS_M"
	TeeShirtXSW          TeeShirtSize = "XS_W"
	TeeShirtSM           TeeShirtSize = "S_M"
	TeeShirtSW           TeeShirtSize = "S_W"
	TeeShirtMM           TeeShirtSize = "M_M"
	TeeShirtMW           TeeShirtSize = "M_W"
	TeeShirtLM           TeeShirtSize = "L_M"
	TeeShirtLW           TeeShirtSize = "L_W"
	TeeShirtXLM          TeeShirtSize = "XL_M"
	TeeShirtXLW          TeeShirtSize = "XL_W"
	TeeShirtXXLM         TeeShirtSize = "XXL_M"
	TeeShirtXXLW         TeeShirtSize = "XXL_W"
	TeeShirtXXXLM        TeeShirtSize = "XXXL_M"
	TeeShirtXXXLW        TeeShirtSize = "XXXL_W"
)

var teeShirtSizes = map[TeeShirtSize]bool{
	TeeShirtNotSpecified: true,
	TeeShirtXSM:          true,
	TeeShirtXSW:          true,
	TeeShirtSM:           true,
	TeeShirtSW:           true,
	TeeShirtMM:           true,
	TeeShirtMW:           true,
	TeeShirtLM:           true,
	TeeShirtLW:           true,
	TeeShirtXLM:          true,
	TeeShirtXLW:          true,
	TeeShirtXXLM:         true,
	TeeShirtXXLW:         true,
	TeeShirtXXXLM:        true,
	TeeShirtXXXLW:        true,
}

// ParseTeeShirtSize validates s. An empty string is NOT_SPECIFIED.
func ParseTeeShirtSize(s string) (TeeShirtSize, error) {
	if s == "" {
		return TeeShirtNotSpecified, nil
	}
	size := TeeShirtSize(s)
	if !teeShirtSizes[size] {
		return "", apperr.Validation("teeShirtSize", "unknown size "+s)
	}
	return size, nil
}

// SessionType classifies a conference session, stored as its string form.
type SessionType string

const (
	SessionNotSpecified SessionType = "NOT_SPECIFIED"
	SessionWorkshop     SessionType = "WORKSHOP"
	SessionLecture      SessionType = "LECTURE"
	SessionKeynote      SessionType = "KEYNOTE"
)

// ParseSessionType validates s. An empty string is NOT_SPECIFIED.
func ParseSessionType(s string) (SessionType, error) {
	switch t := SessionType(s); t {
	case "":
		return SessionNotSpecified, nil
	case SessionNotSpecified, SessionWorkshop, SessionLecture, SessionKeynote:
		return t, nil
	}
	return "", apperr.Validation("typeOfSession", "unknown session type "+s)
}
