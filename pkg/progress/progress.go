// Package progress carries load progress from the reader and the chunked
// processor to whatever displays it. Percentages run from 0 to 100: the first
// half covers reading the file, the second half decoding it.
package progress

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"sync"

	"golang.org/x/time/rate"
)

const (
	// ReadShare is the part of the scale reserved for reading input.
	ReadShare = 50.0
	Done      = 100.0
)

// Status texts shown next to the percentage.
const (
	StatusReading = "جاري قراءة الملف..."
	StatusParsing = "جاري تحليل البيانات..."
)

// StatusProcessing renders the per-chunk status text.
func StatusProcessing(processed, total int) string {
	return fmt.Sprintf("جاري معالجة البيانات... %d/%d", processed, total)
}

// Sink receives progress updates.
type Sink interface {
	Report(percent float64, status string)
}

// Func adapts a plain function to a Sink.
type Func func(percent float64, status string)

func (f Func) Report(percent float64, status string) { f(percent, status) }

type discard struct{}

func (discard) Report(float64, string) {}

// Discard drops every update.
var Discard Sink = discard{}

// Reader reports the reading phase while the wrapped reader is consumed.
type Reader struct {
	r     io.Reader
	total int64
	read  int64
	sink  Sink
	done  bool
}

// NewReader wraps r, whose full length is total bytes.
func NewReader(r io.Reader, total int64, sink Sink) *Reader {
	if sink == nil {
		sink = Discard
	}
	sink.Report(0, StatusReading)
	return &Reader{r: r, total: total, sink: sink}
}

func (pr *Reader) Read(p []byte) (int, error) {
	n, err := pr.r.Read(p)
	pr.read += int64(n)
	if err == io.EOF {
		if !pr.done {
			pr.done = true
			pr.sink.Report(ReadShare, StatusParsing)
		}
		return n, err
	}
	if n > 0 && pr.total > 0 {
		pct := float64(pr.read) / float64(pr.total) * ReadShare
		if pct >= ReadShare {
			pct = math.Nextafter(ReadShare, 0)
		}
		pr.sink.Report(pct, StatusReading)
	}
	return n, err
}

// Throttle forwards at most the updates the limiter allows. The start, the
// end of reading and completion always go through.
func Throttle(sink Sink, limiter *rate.Limiter) Sink {
	return &throttled{sink: sink, limiter: limiter}
}

type throttled struct {
	mu      sync.Mutex
	sink    Sink
	limiter *rate.Limiter
}

func (t *throttled) Report(percent float64, status string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if percent <= 0 || percent == ReadShare || percent >= Done || t.limiter.Allow() {
		t.sink.Report(percent, status)
	}
}

var sizeUnits = []string{"Bytes", "KB", "MB", "GB"}

// FormatSize renders a byte count the way the upload panel shows it, with at
// most two decimals and trailing zeros dropped: 1536 -> "1.5 KB".
func FormatSize(bytes int64) string {
	if bytes <= 0 {
		return "0 Bytes"
	}
	i := int(math.Floor(math.Log(float64(bytes)) / math.Log(1024)))
	if i >= len(sizeUnits) {
		i = len(sizeUnits) - 1
	}
	v := float64(bytes) / math.Pow(1024, float64(i))
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64) + " " + sizeUnits[i]
}
