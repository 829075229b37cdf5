package archive

import (
	"encoding/json"
	"math"
	"net/http"
	"sort"
	"time"
)

// Action is what the client must do about one failed archive call.
type Action int

const (
	// ActionInvalidCredential: invalidate the token and lease another.
	ActionInvalidCredential Action = iota
	// ActionCooldownLong: pause in place and retry with the same token.
	ActionCooldownLong
	// ActionReduceLimit: shrink the page size one ladder step and retry
	// with the same token; at the floor, escalate to a long token
	// cooldown plus rotation.
	ActionReduceLimit
	// ActionTransient: short pause, retry unchanged.
	ActionTransient
	// ActionRateLimited: cool the token down and rotate.
	ActionRateLimited
	// ActionUnknown: treat like a rate limit with the default cooldown.
	ActionUnknown
)

// Decision carries the classified action and, for rate limits, the cooldown
// computed from the quota usage header. Cooldown is zero when the header was
// absent or unparseable; the caller falls back to its default.
type Decision struct {
	Action   Action
	Cooldown time.Duration
}

// Error codes the archive uses for permanently unusable tokens.
var invalidTokenCodes = map[int]struct{}{
	10: {}, 102: {}, 190: {}, 463: {}, 467: {},
}

// Error codes the archive uses for quota exhaustion.
var rateLimitCodes = map[int]struct{}{
	4: {}, 17: {}, 32: {}, 613: {}, 80004: {},
}

const (
	subcodePauseAndRetry = 99
	codeThrottle         = 1
	codeTransient        = 2
)

// Classify maps one failed archive response to the action the client must
// take. It is a pure function. Precedence when several conditions could
// match: invalid credential, then the throttle code family, then transient,
// then rate limit, then unknown.
func Classify(httpStatus, code, subcode int, usageHeader string) Decision {
	if _, ok := invalidTokenCodes[code]; ok {
		return Decision{Action: ActionInvalidCredential}
	}
	if httpStatus == http.StatusUnauthorized || httpStatus == http.StatusForbidden {
		return Decision{Action: ActionInvalidCredential}
	}

	if code == codeThrottle {
		if subcode == subcodePauseAndRetry {
			return Decision{Action: ActionCooldownLong}
		}
		return Decision{Action: ActionReduceLimit}
	}

	if code == codeTransient {
		return Decision{Action: ActionTransient}
	}

	if _, limited := rateLimitCodes[code]; limited || httpStatus == http.StatusTooManyRequests {
		cd, _ := cooldownFromUsage(usageHeader)
		return Decision{Action: ActionRateLimited, Cooldown: cd}
	}

	return Decision{Action: ActionUnknown}
}

type usageRecord struct {
	TotalTime         float64  `json:"total_time"`
	TotalCPUTime      float64  `json:"total_cputime"`
	EstimatedRegainIn *float64 `json:"estimated_time_to_regain_access"`
}

// cooldownFromUsage derives a token cooldown from the quota usage header, a
// JSON object keyed by business-use-case id mapping to a list of usage
// records. The estimated time to regain access is taken as minutes. When
// usage time exceeds 90% a conservative floor keeps the cooldown from being
// optimistically short. Reports false when no estimate is present.
func cooldownFromUsage(header string) (time.Duration, bool) {
	if header == "" {
		return 0, false
	}
	var usage map[string][]usageRecord
	if err := json.Unmarshal([]byte(header), &usage); err != nil || len(usage) == 0 {
		return 0, false
	}

	// JSON object order is lost in a map; sort keys so the result is
	// deterministic for identical headers.
	keys := make([]string, 0, len(usage))
	for k := range usage {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		for _, rec := range usage[k] {
			if rec.EstimatedRegainIn == nil {
				continue
			}
			minutes := *rec.EstimatedRegainIn
			if maxTime := math.Max(rec.TotalTime, rec.TotalCPUTime); maxTime > 90 {
				floor := math.Max(1, math.Round((maxTime-90)*0.1))
				minutes = math.Max(minutes, floor)
			}
			return time.Duration(minutes) * time.Minute, true
		}
	}
	return 0, false
}

// limitLadder is the descending page-size ladder the client walks when the
// archive signals that a response would be too large.
var limitLadder = []int{500, 200, 100, 50}

// MinPageLimit is the ladder floor. Requests already at the floor that still
// fail escalate to a long cooldown instead of shrinking further.
const MinPageLimit = 50

// NextPageLimit returns the ladder step below cur. ok is false when cur is
// already at the floor. A size not on the ladder maps to 100.
func NextPageLimit(cur int) (next int, ok bool) {
	for i, l := range limitLadder {
		if l == cur {
			if i == len(limitLadder)-1 {
				return MinPageLimit, false
			}
			return limitLadder[i+1], true
		}
	}
	return 100, true
}
