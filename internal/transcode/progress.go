package transcode

import (
	"strconv"
	"strings"
)

// progressParser consumes ffmpeg's -progress key=value stream and converts
// elapsed-time markers into percentages of the total source duration.
//
// Grammar: one "key=value" pair per line. Keys of interest:
//
//	out_time_us / out_time_ms  elapsed time in microseconds
//	out_time                   elapsed time as HH:MM:SS.micros
//	progress                   "continue" while running, "end" on completion
//
// Anything else, including malformed or partial lines, is ignored. When the
// total duration is unknown (<= 0) no percentage is computable and Feed never
// reports one.
type progressParser struct {
	totalSeconds float64
	ended        bool
}

func newProgressParser(totalSeconds float64) *progressParser {
	return &progressParser{totalSeconds: totalSeconds}
}

// Feed parses one line. It returns (percent, true) when the line yields a new
// progress value.
func (p *progressParser) Feed(line string) (float64, bool) {
	key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
	if !ok {
		return 0, false
	}
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)

	switch key {
	case "out_time_us", "out_time_ms":
		// Both fields carry microseconds; out_time_ms is misnamed upstream.
		micros, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return 0, false
		}
		return p.percentFor(micros / 1e6)
	case "out_time":
		seconds, err := parseClock(value)
		if err != nil {
			return 0, false
		}
		return p.percentFor(seconds)
	case "progress":
		if value == "end" {
			p.ended = true
		}
		return 0, false
	default:
		return 0, false
	}
}

// Ended reports whether the stream announced normal completion.
func (p *progressParser) Ended() bool { return p.ended }

func (p *progressParser) percentFor(elapsedSeconds float64) (float64, bool) {
	if p.totalSeconds <= 0 {
		return 0, false
	}
	percent := elapsedSeconds / p.totalSeconds * 100
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	return percent, true
}

// parseClock converts "HH:MM:SS.micros" to seconds.
func parseClock(value string) (float64, error) {
	parts := strings.Split(value, ":")
	if len(parts) != 3 {
		return 0, strconv.ErrSyntax
	}
	hours, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 0, err
	}
	minutes, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return 0, err
	}
	seconds, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return 0, err
	}
	return hours*3600 + minutes*60 + seconds, nil
}
