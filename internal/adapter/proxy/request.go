package proxy

import (
	"bufio"
	"bytes"
	"io"
	"strings"

	"github.com/sentryproxy/sentryproxy/internal/core/domain"
)

// header is one request header, kept in receipt order so rewritten
// requests are reproducible rather than shuffled by map iteration.
type header struct {
	Key   string
	Value string
}

// request is the tokenized view of a client's request. Headers and
// Body are only populated when a route carries rewrite rules and the
// request was parsed through readFullRequest; the request-line-only
// fast path leaves them nil.
type request struct {
	Method  string
	Path    string
	Version string
	Headers []header
	Body    []byte
}

// readRequestLine reads and tokenizes the first line (method, path,
// version, space-separated) and returns the verbatim bytes read so
// far, so they can be replayed upstream untouched. This is the fast
// path for routes without rewrite rules, where nothing past the
// request line needs to be inspected.
func readRequestLine(r *bufio.Reader) (request, []byte, error) {
	line, err := r.ReadString('\n')
	if err != nil && line == "" {
		return request{}, nil, err
	}

	fields := strings.Fields(line)
	if len(fields) != 3 {
		return request{}, nil, domain.ErrMalformedRequest
	}

	return request{Method: fields[0], Path: fields[1], Version: fields[2]}, []byte(line), nil
}

// readFullRequest consumes r to EOF and parses the request line,
// headers and body out of it, for routes whose rewrite rules need to
// inspect or modify headers. The client is expected to close its
// write side once it has sent the request, matching this engine's
// single-request-per-connection protocol.
func readFullRequest(r io.Reader) (request, error) {
	data, err := io.ReadAll(r)
	if err != nil && len(data) == 0 {
		return request{}, err
	}
	return parseFullRequest(data)
}

func parseFullRequest(data []byte) (request, error) {
	headerBytes := data
	var body []byte
	if idx := bytes.Index(data, []byte("\r\n\r\n")); idx != -1 {
		headerBytes = data[:idx]
		body = data[idx+4:]
	}

	lines := strings.Split(string(headerBytes), "\r\n")
	fields := strings.Fields(lines[0])
	if len(fields) != 3 {
		return request{}, domain.ErrMalformedRequest
	}

	req := request{Method: fields[0], Path: fields[1], Version: fields[2], Body: body}
	for _, line := range lines[1:] {
		if line == "" {
			continue
		}
		if key, value, ok := strings.Cut(line, ": "); ok {
			req.Headers = append(req.Headers, header{Key: key, Value: value})
		}
	}
	return req, nil
}

// removeHeader drops every header named key.
func (r *request) removeHeader(key string) {
	out := r.Headers[:0]
	for _, h := range r.Headers {
		if h.Key != key {
			out = append(out, h)
		}
	}
	r.Headers = out
}

// setHeader overwrites key's value if present, else appends it.
func (r *request) setHeader(key, value string) {
	for i, h := range r.Headers {
		if h.Key == key {
			r.Headers[i].Value = value
			return
		}
	}
	r.Headers = append(r.Headers, header{Key: key, Value: value})
}

// bytes reconstructs the wire form of the request, re-tagged as
// HTTP/1.1 to match the rewritten header block.
func (r request) bytes() []byte {
	var b bytes.Buffer
	b.WriteString(r.Method)
	b.WriteByte(' ')
	b.WriteString(r.Path)
	b.WriteString(" HTTP/1.1\r\n")
	for _, h := range r.Headers {
		b.WriteString(h.Key)
		b.WriteString(": ")
		b.WriteString(h.Value)
		b.WriteString("\r\n")
	}
	b.WriteString("\r\n")
	b.Write(r.Body)
	return b.Bytes()
}

// applyRewrite runs route's rewrite rules over req in order. Each
// rule first tries a path rewrite (only when PathContains matches and
// ReplacePath is set), then unconditionally removes and adds its
// configured headers. A successful path rewrite stops the loop: later
// rules never run once a rule has rewritten the path.
func applyRewrite(rules []domain.RewriteRule, req request) request {
	for _, rule := range rules {
		rewrote := false
		if rule.PathContains != "" && strings.Contains(req.Path, rule.PathContains) && rule.ReplacePath != "" {
			req.Path = rule.ReplacePath
			rewrote = true
		}
		for _, h := range rule.RemoveHeaders {
			req.removeHeader(h)
		}
		for k, v := range rule.AddHeaders {
			req.setHeader(k, v)
		}
		if rewrote {
			break
		}
	}
	return req
}

// cacheKey is the cache lookup key for a request: its path alone.
// Requests to the same path with a different method or different
// headers share one cached body.
func cacheKey(req request) string {
	return req.Path
}

// rawRequestBytes replays the already-consumed request line followed
// by whatever the client had already sent and buffered alongside it,
// for the fast path where no rewrite rule needs the rest of the
// request.
func rawRequestBytes(requestLine []byte, reader *bufio.Reader) ([]byte, error) {
	if buffered := reader.Buffered(); buffered > 0 {
		rest := make([]byte, buffered)
		if _, err := io.ReadFull(reader, rest); err != nil {
			return nil, err
		}
		return append(requestLine, rest...), nil
	}
	return requestLine, nil
}

// writeRequest writes data to upstream verbatim.
func writeRequest(upstream io.Writer, data []byte) error {
	_, err := upstream.Write(data)
	return err
}
