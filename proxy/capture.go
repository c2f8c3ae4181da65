package proxy

import (
	"bytes"
	"io"
	"sync"
)

// captureBody tees a response body into a buffer and calls done once, on
// EOF, read error or Close, with everything the caller read.
type captureBody struct {
	src  io.ReadCloser
	buf  bytes.Buffer
	once sync.Once
	done func([]byte)
}

func newCaptureBody(src io.ReadCloser, done func([]byte)) *captureBody {
	return &captureBody{src: src, done: done}
}

func (c *captureBody) Read(p []byte) (int, error) {
	n, err := c.src.Read(p)
	if n > 0 {
		c.buf.Write(p[:n])
	}
	if err != nil {
		c.finish()
	}
	return n, err
}

func (c *captureBody) Close() error {
	err := c.src.Close()
	c.finish()
	return err
}

func (c *captureBody) finish() {
	c.once.Do(func() {
		c.done(bytes.Clone(c.buf.Bytes()))
	})
}
