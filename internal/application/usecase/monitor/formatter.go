package monitor

import (
	"fmt"
	"strings"

	"basketsync/internal/domain/model"
)

const (
	ansiReset    = "\033[0m"
	ansiRed      = "\033[31m"
	ansiGreen    = "\033[32m"
	ansiYellow   = "\033[33m"
	ansiDim      = "\033[2m"
	ansiClearEOL = "\033[K"
)

const placeholder = "--"

func colorize(s, c string) string {
	if c == "" {
		return s
	}
	return c + s + ansiReset
}

type Formatter struct {
	// Color toggles ANSI sequences; tests and non-tty sinks turn it off.
	Color bool
}

func NewFormatter(color bool) *Formatter {
	return &Formatter{Color: color}
}

type RenderMode int

const (
	RenderLive RenderMode = iota
	RenderSnapshot
)

func (f *Formatter) paint(s, c string) string {
	if !f.Color {
		return s
	}
	return colorize(s, c)
}

func (f *Formatter) signed(v float64) string {
	s := fmt.Sprintf("%+.2f%%", v)
	switch {
	case v > 0:
		return f.paint(s, ansiGreen)
	case v < 0:
		return f.paint(s, ansiRed)
	default:
		return f.paint(s, ansiYellow)
	}
}

func (f *Formatter) optSigned(v *float64) string {
	if v == nil {
		return f.paint(placeholder, ansiDim)
	}
	return f.signed(*v)
}

// Status renders the sync indicator shown next to a basket.
func (f *Formatter) Status(val model.BasketValuation) string {
	st := val.Status
	switch {
	case st.Unavailable:
		return f.paint("data unavailable", ansiRed)
	case st.Error != model.ErrorNone:
		return f.paint("stale ("+string(st.Error)+")", ansiYellow)
	case st.Loading:
		return f.paint("syncing", ansiDim)
	case st.Refreshing:
		return f.paint("refreshing", ansiDim)
	case !val.MarketOpen:
		return f.paint("closed", ansiDim)
	default:
		return f.paint("live", ansiGreen)
	}
}

// Render builds the single status line covering all baskets.
func (f *Formatter) Render(vals []model.BasketValuation, mode RenderMode) string {
	var sb strings.Builder
	if mode == RenderLive {
		sb.WriteString("\r")
	}
	sb.WriteString(f.paint("[BSKT] ", ansiDim))

	for i, val := range vals {
		if i > 0 {
			sb.WriteString(f.paint("  ||  ", ansiDim))
		}
		sb.WriteString(val.BasketID)
		sb.WriteString(" ")
		if val.AsOf.IsZero() {
			sb.WriteString("R:" + f.paint(placeholder, ansiDim))
			sb.WriteString(" D:" + f.paint(placeholder, ansiDim))
		} else {
			sb.WriteString("R:" + f.signed(val.Summary.WeightedReturn))
			sb.WriteString(" D:" + f.signed(val.Summary.WeightedDayChange))
		}
		if n := len(val.Stale) + len(val.Missing); n > 0 {
			sb.WriteString(f.paint(fmt.Sprintf(" !%d", n), ansiYellow))
		}
		sb.WriteString(" ")
		sb.WriteString(f.Status(val))
	}

	if mode == RenderLive {
		sb.WriteString(ansiClearEOL)
	}
	return sb.String()
}

// RenderRows builds one line per position plus a summary line for a basket.
func (f *Formatter) RenderRows(val model.BasketValuation) []string {
	lines := make([]string, 0, len(val.Rows)+1)
	for _, r := range val.Rows {
		price := placeholder
		if r.CurrentPrice != nil {
			price = fmt.Sprintf("%.2f", *r.CurrentPrice)
		}
		flag := ""
		switch {
		case r.IsMissing:
			flag = " " + f.paint("missing", ansiRed)
		case r.IsStale:
			flag = " " + f.paint("stale", ansiYellow)
		}
		lines = append(lines, fmt.Sprintf("%s %-6s w=%6.2f px=%s ret=%s day=%s%s",
			val.BasketID, r.Ticker, r.Weight, price,
			f.optSigned(r.ReturnPercent), f.optSigned(r.DayChangePercent), flag))
	}
	s := val.Summary
	lines = append(lines, fmt.Sprintf("%s TOTAL  w=%6.2f ret=%s day=%s score=%.1f %s",
		val.BasketID, s.TotalWeight, f.signed(s.WeightedReturn), f.signed(s.WeightedDayChange), s.AvgScore, f.Status(val)))
	return lines
}
