package spider

import "net/http"

// defaultBlockedStatus is the fixed set of status codes the default
// classifier treats as anti-scraping or capacity signals: authentication
// challenges, rate limits, and server errors.
var defaultBlockedStatus = map[int]struct{}{
	http.StatusUnauthorized:        {},
	http.StatusForbidden:           {},
	http.StatusProxyAuthRequired:   {},
	http.StatusRequestTimeout:      {},
	http.StatusTooEarly:            {},
	http.StatusTooManyRequests:     {},
	http.StatusInternalServerError: {},
	http.StatusBadGateway:          {},
	http.StatusServiceUnavailable:  {},
	http.StatusGatewayTimeout:      {},
}

// DefaultClassifier classifies a response as blocked iff its status code is
// in the default set. Spiders override it with content-based heuristics via
// Spider.IsBlocked.
func DefaultClassifier() Classifier {
	return ClassifierFunc(func(resp *Response) bool {
		_, ok := defaultBlockedStatus[resp.StatusCode]
		return ok
	})
}
