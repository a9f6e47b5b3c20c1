package auth

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	accessTokenRe = regexp.MustCompile(`access_token=([^&]+)`)
	userIDRe      = regexp.MustCompile(`(?:^|[&#?])user_id=(\d+)`)
)

// ExtractToken pulls an access token out of whatever the operator pasted:
// a full redirect URL, a query fragment, or the bare token. Rules in
// priority order:
//
//  1. the value between "access_token=" and the next "&"
//  2. a "vk1.a."-prefixed value up to the next "&"
//  3. the raw trimmed input
func ExtractToken(input string) string {
	input = strings.TrimSpace(input)

	if strings.Contains(input, "access_token=") {
		if m := accessTokenRe.FindStringSubmatch(input); m != nil {
			return m[1]
		}
		return input
	}

	if strings.HasPrefix(input, "vk1.a.") {
		if idx := strings.IndexByte(input, '&'); idx > 0 {
			return input[:idx]
		}
		return input
	}

	return input
}

// ExtractUserID pulls the numeric user id out of the same pasted input.
// Returns 0 when no user_id parameter is present; the caller then asks the
// operator explicitly.
func ExtractUserID(input string) int64 {
	m := userIDRe.FindStringSubmatch(strings.TrimSpace(input))
	if m == nil {
		return 0
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0
	}
	return id
}
