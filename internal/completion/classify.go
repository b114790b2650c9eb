package completion

import "strings"

// IsJSON reports whether the response declares a JSON body.
func IsJSON(resp Response) bool {
	return contentTypeContains(resp, "application/json")
}

// IsEventStream reports whether the response declares a streaming body,
// either server-sent events or line-delimited JSON.
//
// IsJSON and IsEventStream are independent; callers decide precedence.
func IsEventStream(resp Response) bool {
	return contentTypeContains(resp, "application/stream+json", "text/event-stream")
}

func contentTypeContains(resp Response, substrings ...string) bool {
	ct := strings.ToLower(resp.Header("Content-Type"))
	if ct == "" {
		return false
	}
	for _, s := range substrings {
		if strings.Contains(ct, s) {
			return true
		}
	}
	return false
}
