// Package parser converts raw feed text into structured observations.
//
// Feed lines are whitespace-separated positional fields:
//
//	IP ATTACKS REPORTS FIRST_SEEN LAST_SEEN
//
// with dates formatted as YYYY-MM-DD. Lines starting with '#' and blank lines
// are comments. Malformed lines are never an error, only skipped.
package parser

import (
	"bufio"
	"io"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/keerthanak2k4/blocklist-ingest/internal/models"
)

const commentMarker = "#"

// fieldCount is the number of positional fields a data line must carry.
const fieldCount = 5

// Parse reads feed text in a single pass and returns the well-formed
// observations along with the number of data lines that were skipped as
// malformed. Comment and blank lines are discarded silently and do not count
// as skipped.
func Parse(r io.Reader) ([]models.Observation, int) {
	var observations []models.Observation
	skipped := 0

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, commentMarker) {
			continue
		}

		obs, ok := parseLine(line)
		if !ok {
			skipped++
			continue
		}
		observations = append(observations, obs)
	}
	if err := scanner.Err(); err != nil {
		// A read error mid-stream loses the remaining lines; keep what
		// was parsed so far.
		skipped++
	}

	return observations, skipped
}

func parseLine(line string) (models.Observation, bool) {
	fields := strings.Fields(line)
	if len(fields) < fieldCount {
		return models.Observation{}, false
	}

	ip, err := netip.ParseAddr(fields[0])
	if err != nil {
		return models.Observation{}, false
	}

	attacks, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return models.Observation{}, false
	}

	reports, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return models.Observation{}, false
	}

	firstSeen, err := time.Parse(time.DateOnly, fields[3])
	if err != nil {
		return models.Observation{}, false
	}

	lastSeen, err := time.Parse(time.DateOnly, fields[4])
	if err != nil {
		return models.Observation{}, false
	}

	return models.Observation{
		IP:        ip,
		Attacks:   attacks,
		Reports:   reports,
		FirstSeen: firstSeen,
		LastSeen:  lastSeen,
	}, true
}
