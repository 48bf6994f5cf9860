package loader

import "net/http"

// ClientForTest exposes the client a URLReader sends requests with.
func (r *URLReader) ClientForTest() *http.Client {
	return r.client
}
