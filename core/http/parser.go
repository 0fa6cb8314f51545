package http

import (
	"bytes"
	"errors"
	"strings"
)

var (
	// ErrInvalidRequest reports a malformed request line.
	ErrInvalidRequest = errors.New("invalid HTTP request")
	// ErrIncomplete reports that the buffer does not yet hold a full
	// request head; the caller should read more and retry.
	ErrIncomplete = errors.New("incomplete HTTP request")
)

var crlfcrlf = []byte("\r\n\r\n")

// HeadComplete reports whether data contains a full request head
// (terminated by an empty line).
func HeadComplete(data []byte) bool {
	return bytes.Contains(data, crlfcrlf)
}

// ParseRequestLine fills req's method, path and proto from the first
// line of data. The query string, if any, is split off the path but not
// decoded; DecodeQueryParams does that on demand.
func ParseRequestLine(data []byte, req *Request) (rawQuery string, err error) {
	lineEnd := bytes.IndexByte(data, '\n')
	if lineEnd == -1 {
		return "", ErrIncomplete
	}

	line := data[:lineEnd]
	if n := len(line); n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}

	sp1 := bytes.IndexByte(line, ' ')
	if sp1 == -1 {
		return "", ErrInvalidRequest
	}
	sp2 := bytes.IndexByte(line[sp1+1:], ' ')
	if sp2 == -1 {
		return "", ErrInvalidRequest
	}
	sp2 += sp1 + 1

	req.Method = string(line[:sp1])
	req.Proto = string(line[sp2+1:])

	path := line[sp1+1 : sp2]
	if len(path) == 0 {
		return "", ErrInvalidRequest
	}
	if q := bytes.IndexByte(path, '?'); q != -1 {
		rawQuery = string(path[q+1:])
		path = path[:q]
	}
	req.Path = string(path)
	return rawQuery, nil
}

// DecodeQueryParams splits a raw query string into ordered key/value
// pairs. An empty raw query returns the shared empty sentinel.
func DecodeQueryParams(rawQuery string) []KV {
	if rawQuery == "" {
		return EmptyQueryParams
	}

	params := make([]KV, 0, 4)
	for len(rawQuery) > 0 {
		pair := rawQuery
		if amp := strings.IndexByte(rawQuery, '&'); amp != -1 {
			pair = rawQuery[:amp]
			rawQuery = rawQuery[amp+1:]
		} else {
			rawQuery = ""
		}
		if pair == "" {
			continue
		}
		if eq := strings.IndexByte(pair, '='); eq != -1 {
			params = append(params, KV{Key: pair[:eq], Value: pair[eq+1:]})
		} else {
			params = append(params, KV{Key: pair})
		}
	}
	if len(params) == 0 {
		return EmptyQueryParams
	}
	return params
}

// HeaderValue scans the request head for a header and returns its value
// with leading spaces and tabs removed, or "". Trailing whitespace is
// kept. Matching is case-insensitive on the name.
func HeaderValue(data []byte, name string) string {
	for len(data) > 0 {
		lineEnd := bytes.IndexByte(data, '\n')
		if lineEnd == -1 {
			return ""
		}
		line := data[:lineEnd]
		data = data[lineEnd+1:]
		if n := len(line); n > 0 && line[n-1] == '\r' {
			line = line[:n-1]
		}
		if len(line) == 0 {
			return ""
		}

		colon := bytes.IndexByte(line, ':')
		if colon == -1 || colon != len(name) {
			continue
		}
		if !asciiEqualFold(line[:colon], name) {
			continue
		}
		value := line[colon+1:]
		for len(value) > 0 && (value[0] == ' ' || value[0] == '\t') {
			value = value[1:]
		}
		return string(value)
	}
	return ""
}

// IsKeepAlive decides connection persistence from the protocol version
// and the Connection header. HTTP/1.1 defaults to keep-alive unless the
// client asks to close; HTTP/1.0 must opt in.
func IsKeepAlive(proto, connection string) bool {
	if proto == "HTTP/1.0" {
		return asciiEqualFold([]byte(connection), "keep-alive")
	}
	return !asciiEqualFold([]byte(connection), "close")
}

func asciiEqualFold(b []byte, s string) bool {
	if len(b) != len(s) {
		return false
	}
	for i := 0; i < len(b); i++ {
		c, d := b[i], s[i]
		if 'A' <= c && c <= 'Z' {
			c += 'a' - 'A'
		}
		if 'A' <= d && d <= 'Z' {
			d += 'a' - 'A'
		}
		if c != d {
			return false
		}
	}
	return true
}
