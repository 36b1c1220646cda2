package uploadsvc

import (
	"io"
	"sync"
)

// progressReader reports the share of size read so far, never going backwards.
type progressReader struct {
	r    io.Reader
	size int64
	fn   func(int)

	mu   sync.Mutex
	read int64
	last int
}

func newProgressReader(r io.Reader, size int64, fn func(int)) *progressReader {
	return &progressReader{r: r, size: size, fn: fn, last: -1}
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.mu.Lock()
		p.read += int64(n)
		pct := 99
		if p.size > 0 && p.read < p.size {
			pct = int(p.read * 100 / p.size)
		}
		p.report(pct)
		p.mu.Unlock()
	}
	return n, err
}

// done reports completion once the server accepted the upload.
func (p *progressReader) done() {
	p.mu.Lock()
	p.report(100)
	p.mu.Unlock()
}

func (p *progressReader) report(pct int) {
	if pct <= p.last || p.fn == nil {
		return
	}
	p.last = pct
	p.fn(pct)
}
