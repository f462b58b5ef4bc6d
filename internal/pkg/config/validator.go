package config

import (
	"cmp"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/text/encoding/htmlindex"
)

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ValidateCronSchedule accepts a standard five-field cron expression
// ("minute hour day month weekday").
func ValidateCronSchedule(schedule string) error {
	if strings.TrimSpace(schedule) == "" {
		return errors.New("cron schedule is empty")
	}
	if _, err := cronParser.Parse(schedule); err != nil {
		return fmt.Errorf("cron schedule %q: %w", schedule, err)
	}
	return nil
}

// ValidateTimezone checks that the IANA name can be loaded. This depends on
// tzdata being present in the image.
func ValidateTimezone(timezone string) error {
	if timezone == "" {
		return errors.New("timezone is empty")
	}
	if _, err := time.LoadLocation(timezone); err != nil {
		return fmt.Errorf("timezone %q: %w", timezone, err)
	}
	return nil
}

// inRange checks lo <= v <= hi.
func inRange[T cmp.Ordered](v, lo, hi T) error {
	switch {
	case lo > hi:
		return fmt.Errorf("empty range [%v, %v]", lo, hi)
	case v < lo || v > hi:
		return fmt.Errorf("%v is outside [%v, %v]", v, lo, hi)
	}
	return nil
}

// ValidateDuration checks lo <= d <= hi.
func ValidateDuration(d, lo, hi time.Duration) error { return inRange(d, lo, hi) }

// ValidateIntRange checks lo <= v <= hi.
func ValidateIntRange(v, lo, hi int) error { return inRange(v, lo, hi) }

func ValidatePositiveDuration(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("%v is not positive", d)
	}
	return nil
}

const maxURLLength = 2048

// ValidateHTTPURL accepts absolute http and https URLs with a host.
func ValidateHTTPURL(raw string) error {
	if len(raw) > maxURLLength {
		return fmt.Errorf("url is longer than %d bytes", maxURLLength)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	switch {
	case u.Scheme != "http" && u.Scheme != "https":
		return fmt.Errorf("url %q: scheme must be http or https", raw)
	case u.Host == "":
		return fmt.Errorf("url %q: no host", raw)
	}
	return nil
}

// ValidateCharset accepts any WHATWG encoding label, e.g. "windows-1251"
// or "cp1251".
func ValidateCharset(name string) error {
	if _, err := htmlindex.Get(name); err != nil {
		return fmt.Errorf("charset %q: %w", name, err)
	}
	return nil
}

// ValidateLogLevel accepts debug, info, warn, warning and error in any case.
func ValidateLogLevel(level string) error {
	switch strings.ToLower(level) {
	case "debug", "info", "warn", "warning", "error":
		return nil
	}
	return fmt.Errorf("log level %q is not one of debug, info, warn, error", level)
}

// ValidateMonth accepts 1..12.
func ValidateMonth(month int) error {
	return ValidateIntRange(month, 1, 12)
}

// ValidateYear accepts four-digit years from 2000.
func ValidateYear(year int) error {
	return ValidateIntRange(year, 2000, 9999)
}
