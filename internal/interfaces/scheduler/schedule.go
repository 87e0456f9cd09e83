package scheduler

import "time"

// Schedule yields the first activation strictly after the given instant.
type Schedule interface {
	Next(after time.Time) time.Time
}

// DailyAt fires once a day at Hour:Minute in Loc.
type DailyAt struct {
	Hour   int
	Minute int
	Loc    *time.Location
}

func (d DailyAt) Next(after time.Time) time.Time {
	loc := d.Loc
	if loc == nil {
		loc = time.Local
	}
	t := after.In(loc)

	next := time.Date(t.Year(), t.Month(), t.Day(), d.Hour, d.Minute, 0, 0, loc)
	if !next.After(t) {
		next = time.Date(t.Year(), t.Month(), t.Day()+1, d.Hour, d.Minute, 0, 0, loc)
	}
	return next
}

// Every fires at a fixed interval.
type Every struct {
	Interval time.Duration
}

func (e Every) Next(after time.Time) time.Time {
	return after.Add(e.Interval)
}
