package lineserver

import "strconv"

// OKRequestLine is the one request line that is served with Found.
const OKRequestLine = "GET /ok HTTP/1.1"

const (
	okPage       = "<!DOCTYPE html>\n<html>\n<head>\n<title>OK!</title>\n</head>\n<body>\n<p>Everything is ok</p>\n</body>\n</html>"
	notFoundPage = "<!DOCTYPE html>\n<html>\n<head>\n<title>NOT FOUND!</title>\n</head>\n<body>\n<p>Lost..</p>\n</body>\n</html>"
)

// Response is a status line plus body. Only the two variants below exist.
type Response struct {
	Status string
	Body   string
}

var (
	Found    = Response{Status: "HTTP/1.1 200 OK", Body: okPage}
	NotFound = Response{Status: "HTTP/1.1 404 NOT FOUND", Body: notFoundPage}
)

// Route selects the response for requestLine by exact comparison with
// OKRequestLine: no case folding, trimming or prefix matching.
func Route(requestLine string) Response {
	if requestLine == OKRequestLine {
		return Found
	}
	return NotFound
}

// ContentLength is the byte length of the body.
func (r Response) ContentLength() int {
	return len(r.Body)
}

// Bytes renders "{status}\r\nContent-Length: {n}\r\n\r\n{body}".
func (r Response) Bytes() []byte {
	n := strconv.Itoa(r.ContentLength())
	buf := make([]byte, 0, len(r.Status)+len("\r\nContent-Length: ")+len(n)+4+len(r.Body))
	buf = append(buf, r.Status...)
	buf = append(buf, "\r\nContent-Length: "...)
	buf = append(buf, n...)
	buf = append(buf, "\r\n\r\n"...)
	buf = append(buf, r.Body...)
	return buf
}
