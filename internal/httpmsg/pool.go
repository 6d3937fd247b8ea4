package httpmsg

import "sync"

var requestPool = sync.Pool{
	New: func() any { return newRequest() },
}

// AcquireRequest returns a zeroed Request from the pool (teacher idiom:
// one pooled object per logical unit of work, see server_shockwave.go's
// request pool). Callers must call ReleaseRequest once the response for
// it has been fully written.
func AcquireRequest() *Request {
	return requestPool.Get().(*Request)
}

// ReleaseRequest clears req and returns it to the pool. req must not be
// used again after this call.
func ReleaseRequest(req *Request) {
	req.reset()
	requestPool.Put(req)
}

var responsePool = sync.Pool{
	New: func() any { return newResponse() },
}

// AcquireResponse returns a zeroed Response from the pool.
func AcquireResponse() *Response {
	return responsePool.Get().(*Response)
}

// ReleaseResponse clears resp and returns it to the pool.
func ReleaseResponse(resp *Response) {
	resp.reset()
	responsePool.Put(resp)
}

var writerPool = sync.Pool{
	New: func() any { return &ResponseWriter{} },
}

// AcquireResponseWriter returns a ResponseWriter from the pool, stamped
// with serverName for the Server header.
func AcquireResponseWriter(serverName string) *ResponseWriter {
	w := writerPool.Get().(*ResponseWriter)
	w.serverName = serverName
	return w
}

// ReleaseResponseWriter clears w and returns it to the pool.
func ReleaseResponseWriter(w *ResponseWriter) {
	w.Reset(KeepAlive)
	w.serverName = ""
	writerPool.Put(w)
}
