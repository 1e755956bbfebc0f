package collector

import (
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/RyanW02/wineventchain/model/events"
)

// ParseEventXML decodes a single Windows event log record rendered as XML
// (the format EvtRender produces) into the agent's event model.
func ParseEventXML(raw []byte) (events.EventWithData, error) {
	var doc xmlEvent
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return events.EventWithData{}, fmt.Errorf("collector: parsing event xml: %w", err)
	}
	return doc.toModel()
}

type xmlEvent struct {
	XMLName   xml.Name     `xml:"Event"`
	System    *xmlSystem   `xml:"System"`
	EventData xmlEventData `xml:"EventData"`
}

// xmlSystem's fields are pointers (rather than bare string/uint64) purely
// so a missing element decodes to nil instead of being indistinguishable
// from a present-but-zero-valued one; toModel rejects any of them left
// nil, matching get_required_child's nine required elements.
type xmlSystem struct {
	Provider      *xmlProvider    `xml:"Provider"`
	EventID       *uint64         `xml:"EventID"`
	TimeCreated   *xmlTimeCreated `xml:"TimeCreated"`
	EventRecordID *uint64         `xml:"EventRecordID"`
	Correlation   *xmlCorrelation `xml:"Correlation"`
	Execution     *xmlExecution   `xml:"Execution"`
	Channel       *string         `xml:"Channel"`
	Computer      *string         `xml:"Computer"`
}

type xmlProvider struct {
	Name            *string `xml:"Name,attr"`
	Guid            *string `xml:"Guid,attr"`
	EventSourceName *string `xml:"EventSourceName,attr"`
}

type xmlTimeCreated struct {
	SystemTime string `xml:"SystemTime,attr"`
}

type xmlCorrelation struct {
	ActivityID *string `xml:"ActivityID,attr"`
}

type xmlExecution struct {
	ProcessID *uint64 `xml:"ProcessID,attr"`
	ThreadID  *uint64 `xml:"ThreadID,attr"`
}

type xmlEventData struct {
	Data []xmlData `xml:"Data"`
}

// xmlData decodes a single <Data Name="..."> element by hand, rather than
// relying on the ",chardata" struct tag, so an element with no text content
// (e.g. a self-closing <Data/>) decodes to a nil Value rather than an empty
// string.
type xmlData struct {
	Name  *string
	Value *string
}

func (d *xmlData) UnmarshalXML(dec *xml.Decoder, start xml.StartElement) error {
	for _, attr := range start.Attr {
		if attr.Name.Local == "Name" {
			v := attr.Value
			d.Name = &v
		}
	}

	var buf strings.Builder
	hasText := false
	for {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.CharData:
			hasText = true
			buf.Write(t)
		case xml.EndElement:
			if hasText {
				s := buf.String()
				d.Value = &s
			}
			return nil
		}
	}
}

func (e xmlEvent) toModel() (events.EventWithData, error) {
	if e.System == nil {
		return events.EventWithData{}, fmt.Errorf("collector: event xml missing required element System")
	}

	system, err := e.System.toModel()
	if err != nil {
		return events.EventWithData{}, err
	}

	data := make(events.EventData, 0, len(e.EventData.Data))
	for _, d := range e.EventData.Data {
		data = append(data, events.Data{Name: d.Name, Value: d.Value})
	}

	return events.EventWithData{System: system, EventData: data}, nil
}

func (s xmlSystem) toModel() (events.System, error) {
	if s.Provider == nil {
		return events.System{}, fmt.Errorf("collector: System xml missing required element Provider")
	}
	if s.EventID == nil {
		return events.System{}, fmt.Errorf("collector: System xml missing required element EventID")
	}
	if s.TimeCreated == nil {
		return events.System{}, fmt.Errorf("collector: System xml missing required element TimeCreated")
	}
	if s.EventRecordID == nil {
		return events.System{}, fmt.Errorf("collector: System xml missing required element EventRecordID")
	}
	if s.Correlation == nil {
		return events.System{}, fmt.Errorf("collector: System xml missing required element Correlation")
	}
	if s.Execution == nil {
		return events.System{}, fmt.Errorf("collector: System xml missing required element Execution")
	}
	if s.Channel == nil {
		return events.System{}, fmt.Errorf("collector: System xml missing required element Channel")
	}
	if s.Computer == nil {
		return events.System{}, fmt.Errorf("collector: System xml missing required element Computer")
	}

	provider, err := s.Provider.toModel()
	if err != nil {
		return events.System{}, err
	}

	timeCreated, err := s.TimeCreated.toModel()
	if err != nil {
		return events.System{}, err
	}

	correlation, err := s.Correlation.toModel()
	if err != nil {
		return events.System{}, err
	}

	return events.System{
		Provider:      provider,
		EventId:       *s.EventID,
		TimeCreated:   timeCreated,
		EventRecordId: *s.EventRecordID,
		Correlation:   correlation,
		Execution:     s.Execution.toModel(),
		Channel:       *s.Channel,
		Computer:      *s.Computer,
	}, nil
}

func (p xmlProvider) toModel() (events.Provider, error) {
	var guid *events.Guid
	if p.Guid != nil {
		g, err := events.ParseGuid(*p.Guid)
		if err != nil {
			return events.Provider{}, fmt.Errorf("collector: parsing provider guid: %w", err)
		}
		guid = &g
	}

	return events.Provider{
		Name:            p.Name,
		Guid:            guid,
		EventSourceName: p.EventSourceName,
	}, nil
}

func (t xmlTimeCreated) toModel() (events.TimeCreated, error) {
	parsed, err := time.Parse(time.RFC3339Nano, t.SystemTime)
	if err != nil {
		return events.TimeCreated{}, fmt.Errorf("collector: parsing TimeCreated.SystemTime: %w", err)
	}
	return events.TimeCreated{SystemTime: parsed}, nil
}

func (c xmlCorrelation) toModel() (events.Correlation, error) {
	if c.ActivityID == nil {
		return events.Correlation{}, nil
	}
	g, err := events.ParseGuid(*c.ActivityID)
	if err != nil {
		return events.Correlation{}, fmt.Errorf("collector: parsing correlation activity id: %w", err)
	}
	return events.Correlation{ActivityId: &g}, nil
}

func (e xmlExecution) toModel() events.Execution {
	return events.Execution{ProcessId: e.ProcessID, ThreadId: e.ThreadID}
}
