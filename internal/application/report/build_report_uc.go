package report

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"

	"mailfootprint/internal/domain/email"
)

type StateReader interface {
	Snapshot(ctx context.Context) (email.State, error)
}

// Advisor rewrites the rule-based suggestion into something more specific.
type Advisor interface {
	Advise(ctx context.Context, s Summary) (string, error)
}

type BuildReportUseCase struct {
	reader  StateReader
	advisor Advisor
	loc     *time.Location
	logger  zerolog.Logger
}

// NewBuildReportUseCase accepts a nil advisor.
func NewBuildReportUseCase(reader StateReader, advisor Advisor, loc *time.Location, logger zerolog.Logger) *BuildReportUseCase {
	return &BuildReportUseCase{
		reader:  reader,
		advisor: advisor,
		loc:     loc,
		logger:  logger,
	}
}

func (uc *BuildReportUseCase) Execute(ctx context.Context) (Summary, error) {
	st, err := uc.reader.Snapshot(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("read state: %w", err)
	}

	s := Summarize(st, uc.loc)
	if uc.advisor == nil || s.Source == SourceEmpty {
		return s, nil
	}

	advice, err := uc.advisor.Advise(ctx, s)
	if err != nil {
		uc.logger.Warn().Err(err).Msg("advisor failed, keeping rule-based suggestion")
		return s, nil
	}
	if advice = strings.TrimSpace(advice); advice != "" {
		s.Suggestion = advice
	}
	return s, nil
}

// Render writes a plain-text view of s.
func Render(w io.Writer, s Summary) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "Inbox\t%d\n", s.Inbox)
	fmt.Fprintf(tw, "Sent\t%d\n", s.Sent)
	fmt.Fprintf(tw, "Total\t%d\n", s.Total)
	fmt.Fprintf(tw, "CO2\t%.3f kg\n", s.CO2Kg)
	fmt.Fprintf(tw, "Energy\t%.4f kWh\n", s.EnergyKWh)
	if s.LastSync != "" {
		fmt.Fprintf(tw, "Last sync\t%s\n", s.LastSync)
	}
	if s.LastReset != "" {
		fmt.Fprintf(tw, "Last reset\t%s\n", s.LastReset)
	}
	fmt.Fprintf(tw, "Source\t%s\n", s.Source)

	if len(s.Daily) > 0 {
		fmt.Fprintln(tw, "\nDay\tInbox\tSent\tCO2 (kg)\tEnergy (kWh)")
		for _, d := range s.Daily {
			fmt.Fprintf(tw, "%s\t%d\t%d\t%.3f\t%.4f\n", d.Day, d.Inbox, d.Sent, d.CO2Kg, d.EnergyKWh)
		}
	}
	if len(s.TopSenders) > 0 {
		fmt.Fprintln(tw, "\nTop senders\tCount")
		for _, sc := range s.TopSenders {
			fmt.Fprintf(tw, "%s\t%d\n", sc.Address, sc.Count)
		}
	}
	fmt.Fprintf(tw, "\n%s\n", s.Suggestion)

	return tw.Flush()
}
