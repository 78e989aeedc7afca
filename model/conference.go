package model

import (
	"time"

	"github.com/jacentio/conference/apperr"
	"github.com/jacentio/conference/store"
)

// Defaults applied to a new conference when the form leaves a field empty.
const (
	DefaultCity = "Default City"
)

// DefaultTopics is the topic list of a conference created without topics.
var DefaultTopics = []string{"Default", "Topic"}

// Conference is an event organized by the profile its key lives under.
type Conference struct {
	Key             *store.Key
	Version         int64
	Name            string
	Description     string
	OrganizerUserID string
	Topics          []string
	City            string
	StartDate       time.Time
	EndDate         time.Time
	Month           int
	MaxAttendees    int
	SeatsAvailable  int
}

// NewConference builds a conference from a creation form, substituting
// defaults for empty fields. month is derived from the start date (0 if
// none) and every seat starts available.
func NewConference(key *store.Key, organizerUserID string, form ConferenceForm) (*Conference, error) {
	if form.Name == "" {
		return nil, apperr.Validation("name", "Conference 'name' field required")
	}

	c := &Conference{
		Key:             key,
		Name:            form.Name,
		Description:     form.Description,
		OrganizerUserID: organizerUserID,
		Topics:          append([]string(nil), form.Topics...),
		City:            form.City,
	}
	if len(c.Topics) == 0 {
		c.Topics = append([]string(nil), DefaultTopics...)
	}
	if c.City == "" {
		c.City = DefaultCity
	}
	if form.MaxAttendees != nil {
		if *form.MaxAttendees < 0 {
			return nil, apperr.Validation("maxAttendees", "must not be negative")
		}
		c.MaxAttendees = *form.MaxAttendees
	}
	c.SeatsAvailable = c.MaxAttendees

	if form.StartDate != "" {
		d, err := parseDate("startDate", form.StartDate)
		if err != nil {
			return nil, err
		}
		c.StartDate = d
		c.Month = int(d.Month())
	}
	if form.EndDate != "" {
		d, err := parseDate("endDate", form.EndDate)
		if err != nil {
			return nil, err
		}
		c.EndDate = d
	}
	return c, nil
}

// Apply copies the non-empty fields of form onto c. A new start date moves
// month with it. A new maxAttendees shifts seatsAvailable by the same
// amount; a reduction below the number of seats already taken is a
// conflict.
func (c *Conference) Apply(form ConferenceForm) error {
	if form.StartDate != "" {
		d, err := parseDate("startDate", form.StartDate)
		if err != nil {
			return err
		}
		c.StartDate = d
		c.Month = int(d.Month())
	}
	if form.EndDate != "" {
		d, err := parseDate("endDate", form.EndDate)
		if err != nil {
			return err
		}
		c.EndDate = d
	}
	if form.MaxAttendees != nil {
		limit := *form.MaxAttendees
		if limit < 0 {
			return apperr.Validation("maxAttendees", "must not be negative")
		}
		seats := c.SeatsAvailable + limit - c.MaxAttendees
		if seats < 0 {
			return apperr.Conflict(c.Key.Encode(), "maxAttendees is below the number of registered attendees")
		}
		c.MaxAttendees = limit
		c.SeatsAvailable = seats
	}
	if form.Name != "" {
		c.Name = form.Name
	}
	if form.Description != "" {
		c.Description = form.Description
	}
	if len(form.Topics) > 0 {
		c.Topics = append([]string(nil), form.Topics...)
	}
	if form.City != "" {
		c.City = form.City
	}
	return nil
}

// HasSeats reports whether at least one seat is left.
func (c *Conference) HasSeats() bool {
	return c.SeatsAvailable > 0
}

// TakeSeat decrements seatsAvailable. It reports false when sold out.
func (c *Conference) TakeSeat() bool {
	if !c.HasSeats() {
		return false
	}
	c.SeatsAvailable--
	return true
}

// ReleaseSeat increments seatsAvailable, never beyond maxAttendees.
func (c *Conference) ReleaseSeat() {
	if c.SeatsAvailable < c.MaxAttendees {
		c.SeatsAvailable++
	}
}

// Document maps the conference to its store document.
func (c *Conference) Document() *store.Document {
	doc := &store.Document{Key: c.Key, Version: c.Version}
	doc.Set("name", c.Name)
	doc.Set("description", c.Description)
	doc.Set("organizerUserId", c.OrganizerUserID)
	doc.Set("topics", c.Topics)
	doc.Set("city", c.City)
	doc.Set("startDate", formatDate(c.StartDate))
	doc.Set("endDate", formatDate(c.EndDate))
	doc.Set("month", c.Month)
	doc.Set("maxAttendees", c.MaxAttendees)
	doc.Set("seatsAvailable", c.SeatsAvailable)
	return doc
}

// ConferenceFromDocument maps a store document to a Conference. Malformed
// dates read back as zero.
func ConferenceFromDocument(doc *store.Document) *Conference {
	c := &Conference{
		Key:             doc.Key,
		Version:         doc.Version,
		Name:            doc.String("name"),
		Description:     doc.String("description"),
		OrganizerUserID: doc.String("organizerUserId"),
		Topics:          doc.Strings("topics"),
		City:            doc.String("city"),
		Month:           int(doc.Int("month")),
		MaxAttendees:    int(doc.Int("maxAttendees")),
		SeatsAvailable:  int(doc.Int("seatsAvailable")),
	}
	if s := doc.String("startDate"); s != "" {
		c.StartDate, _ = parseDate("startDate", s)
	}
	if s := doc.String("endDate"); s != "" {
		c.EndDate, _ = parseDate("endDate", s)
	}
	return c
}
