// Copyright (c) 2026 bodhi contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package auth

import (
	"io"
	"net/url"
	"strings"
)

// newFormBody encodes form as an application/x-www-form-urlencoded body.
func newFormBody(form url.Values) io.ReadCloser {
	return io.NopCloser(strings.NewReader(form.Encode()))
}

// jsonBody wraps an already-marshaled JSON payload as a request body.
func jsonBody(payload []byte) io.Reader {
	return strings.NewReader(string(payload))
}
