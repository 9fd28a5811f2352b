package fetch

import "time"

// rateWindowSpan bounds how far back the instantaneous rate looks.
const rateWindowSpan = 5 * time.Second

type rateSample struct {
	at    time.Time
	bytes int64
}

// rateWindow computes transfer rate over a short trailing window so the
// number reflects current link conditions instead of the whole-transfer
// average.
type rateWindow struct {
	samples []rateSample
}

func newRateWindow(now time.Time) *rateWindow {
	return &rateWindow{samples: []rateSample{{at: now}}}
}

func (w *rateWindow) observe(now time.Time, totalBytes int64) {
	w.samples = append(w.samples, rateSample{at: now, bytes: totalBytes})

	cutoff := now.Add(-rateWindowSpan)
	// Keep one sample older than the cutoff as the window's left edge.
	for len(w.samples) > 2 && w.samples[1].at.Before(cutoff) {
		w.samples = w.samples[1:]
	}
}

func (w *rateWindow) rate(now time.Time) float64 {
	oldest := w.samples[0]
	newest := w.samples[len(w.samples)-1]

	span := newest.at.Sub(oldest.at)
	if span <= 0 {
		return 0
	}

	return float64(newest.bytes-oldest.bytes) / span.Seconds()
}
