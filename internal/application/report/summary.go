package report

import (
	"cmp"
	"net/mail"
	"slices"
	"time"

	"mailfootprint/internal/domain/email"
)

// Per-email footprint estimates.
const (
	CO2KgPerEmail     = 0.004
	EnergyKWhPerEmail = 0.0003
)

const topSendersLimit = 10

const (
	SourceRecords  = "records"
	SourceCounters = "counters"
	SourceEmpty    = "empty"
)

type Summary struct {
	Source     string        `json:"source"`
	Inbox      int           `json:"inbox"`
	Sent       int           `json:"sent"`
	Total      int           `json:"total"`
	CO2Kg      float64       `json:"co2Kg"`
	EnergyKWh  float64       `json:"energyKWh"`
	Daily      []DayCount    `json:"daily,omitempty"`
	TopSenders []SenderCount `json:"topSenders,omitempty"`
	Suggestion string        `json:"suggestion"`
	LastSync   string        `json:"lastSync,omitempty"`
	LastReset  string        `json:"lastReset,omitempty"`
}

type DayCount struct {
	Day       string  `json:"day"`
	Inbox     int     `json:"inbox"`
	Sent      int     `json:"sent"`
	CO2Kg     float64 `json:"co2Kg"`
	EnergyKWh float64 `json:"energyKWh"`
}

type SenderCount struct {
	Address string `json:"address"`
	Count   int    `json:"count"`
}

// Summarize reads persisted state. Records win over the live counters when
// any exist. Days are bucketed in loc.
func Summarize(st email.State, loc *time.Location) Summary {
	if loc == nil {
		loc = time.Local
	}
	s := Summary{
		LastSync:  st.Stats.Timestamp,
		LastReset: st.LastReset,
	}

	switch {
	case len(st.Records) > 0:
		s.Source = SourceRecords
		for _, r := range st.Records {
			switch r.Direction {
			case email.Inbound:
				s.Inbox++
			case email.Outbound:
				s.Sent++
			}
		}
		s.Daily = daily(st.Records, loc)
		s.TopSenders = topSenders(st.Records)
	case st.Counters.Inbox > 0 || st.Counters.Sent > 0:
		s.Source = SourceCounters
		s.Inbox = st.Counters.Inbox
		s.Sent = st.Counters.Sent
	default:
		s.Source = SourceEmpty
	}

	s.Total = s.Inbox + s.Sent
	s.CO2Kg = float64(s.Total) * CO2KgPerEmail
	s.EnergyKWh = float64(s.Total) * EnergyKWhPerEmail
	s.Suggestion = Suggest(s)
	return s
}

func daily(records []email.MessageRecord, loc *time.Location) []DayCount {
	byDay := map[string]*DayCount{}
	for _, r := range records {
		t, err := mail.ParseDate(r.Date)
		if err != nil {
			continue
		}
		key := t.In(loc).Format(time.DateOnly)
		d, ok := byDay[key]
		if !ok {
			d = &DayCount{Day: key}
			byDay[key] = d
		}
		switch r.Direction {
		case email.Inbound:
			d.Inbox++
		case email.Outbound:
			d.Sent++
		}
	}

	out := make([]DayCount, 0, len(byDay))
	for _, d := range byDay {
		n := float64(d.Inbox + d.Sent)
		d.CO2Kg = n * CO2KgPerEmail
		d.EnergyKWh = n * EnergyKWhPerEmail
		out = append(out, *d)
	}
	slices.SortFunc(out, func(a, b DayCount) int { return cmp.Compare(a.Day, b.Day) })
	return out
}

func topSenders(records []email.MessageRecord) []SenderCount {
	counts := map[string]int{}
	for _, r := range records {
		if r.Direction == email.Inbound {
			counts[r.CounterpartAddress]++
		}
	}

	out := make([]SenderCount, 0, len(counts))
	for addr, n := range counts {
		out = append(out, SenderCount{Address: addr, Count: n})
	}
	slices.SortFunc(out, func(a, b SenderCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Address, b.Address)
	})
	if len(out) > topSendersLimit {
		out = out[:topSendersLimit]
	}
	return out
}
