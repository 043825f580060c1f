// Package relay fetches HTML pages through a ScraperAPI-style relay.
//
// Every request is sent to the relay endpoint with the API key and the
// target URL as query parameters:
//
//	http://api.scraperapi.com?api_key=<key>&url=<target>
//
// Failures stay inside the call: the caller receives an *errors.Error of
// type network (timeouts, resets, DNS) or status (non-200 responses).
package relay
