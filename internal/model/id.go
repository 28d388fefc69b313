package model

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Every served decision carries an ID of the form
// dec_<10-digit unix seconds>_<8 hex chars>, which sorts roughly by creation
// time and stays greppable across logs and the journal.

var decisionIDPattern = regexp.MustCompile(`^dec_[0-9]{10}_[0-9a-f]{8}$`)

// NewDecisionID mints a fresh decision ID.
func NewDecisionID() (string, error) {
	var suffix [4]byte
	if _, err := rand.Read(suffix[:]); err != nil {
		return "", fmt.Errorf("read random suffix: %w", err)
	}
	return fmt.Sprintf("dec_%010d_%s", time.Now().Unix(), hex.EncodeToString(suffix[:])), nil
}

// ValidateDecisionID reports whether id has the decision ID shape.
func ValidateDecisionID(id string) bool {
	return decisionIDPattern.MatchString(id)
}

// DecisionIDTime extracts the creation timestamp embedded in a decision ID.
func DecisionIDTime(id string) (time.Time, error) {
	if !ValidateDecisionID(id) {
		return time.Time{}, fmt.Errorf("malformed decision ID %q", id)
	}
	seconds, err := strconv.ParseInt(strings.Split(id, "_")[1], 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("decision ID %q timestamp: %w", id, err)
	}
	return time.Unix(seconds, 0), nil
}
