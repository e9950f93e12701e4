package cli

import (
	"fmt"
	"time"

	"github.com/nexusnav/nexusnav/internal/card"
	"github.com/nexusnav/nexusnav/internal/errors"
)

// MinInterval keeps the dashboard from hammering the server.
const MinInterval = 500 * time.Millisecond

// ParseInterval parses a refresh interval flag.
// Returns zero duration if the flag is empty.
func ParseInterval(flag string) (time.Duration, error) {
	if flag == "" {
		return 0, nil
	}

	d, err := time.ParseDuration(flag)
	if err != nil {
		return 0, errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("'%s' doesn't look like a valid interval", flag),
			"Try something like 5s, 1m, or 500ms.")
	}
	if d < MinInterval {
		return 0, errors.New(errors.ErrConfig,
			"Interval too short",
			"Minimum interval is 500ms.")
	}
	return d, nil
}

// ParseNetworkFlag parses --network. Empty means "use the saved preference".
func ParseNetworkFlag(flag string) (card.NetworkMode, bool, error) {
	if flag == "" {
		return "", false, nil
	}
	mode, err := card.ParseNetworkMode(flag)
	if err != nil {
		return "", false, errors.New(errors.ErrValidation,
			fmt.Sprintf("Unknown network mode '%s'", flag),
			"Use auto, lan or wan.")
	}
	return mode, true, nil
}

// ParseTimeout parses a timeout flag.
// Returns zero duration if the flag is empty.
func ParseTimeout(flag string) (time.Duration, error) {
	if flag == "" {
		return 0, nil
	}

	d, err := time.ParseDuration(flag)
	if err != nil {
		return 0, errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("'%s' doesn't look like a valid timeout", flag),
			"Try something like 5s, 2m, or 500ms.")
	}
	return d, nil
}
