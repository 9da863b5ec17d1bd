package export

import (
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"
)

// CalendarEvent is a single VEVENT entry.
type CalendarEvent struct {
	UID         string
	Summary     string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
	Cancelled   bool
}

// ICSExporter renders iCalendar feeds with golang-ical.
type ICSExporter struct {
	productID string
}

// NewICSExporter constructs an exporter stamping feeds with productID.
func NewICSExporter(productID string) *ICSExporter {
	if productID == "" {
		productID = "-//supervisi-api//schedules//ID"
	}
	return &ICSExporter{productID: productID}
}

// Render serialises events into an RFC 5545 calendar.
func (e *ICSExporter) Render(name string, events []CalendarEvent) ([]byte, error) {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(e.productID)
	if name != "" {
		cal.SetName(name)
	}

	stamp := time.Now().UTC()
	for _, ev := range events {
		if ev.UID == "" {
			return nil, fmt.Errorf("calendar event requires uid")
		}
		event := cal.AddEvent(ev.UID)
		event.SetDtStampTime(stamp)
		event.SetStartAt(ev.Start.UTC())
		event.SetEndAt(ev.End.UTC())
		event.SetSummary(ev.Summary)
		if ev.Description != "" {
			event.SetDescription(ev.Description)
		}
		if ev.Location != "" {
			event.SetLocation(ev.Location)
		}
		if ev.Cancelled {
			event.SetStatus(ics.ObjectStatusCancelled)
		} else {
			event.SetStatus(ics.ObjectStatusConfirmed)
		}
	}
	return []byte(cal.Serialize()), nil
}
