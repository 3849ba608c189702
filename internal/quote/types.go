package quote

import "time"

// WatermarkID is the reserved key of the watermark row. Real identifiers start at 1.
const WatermarkID int64 = 0

// Record is the parsed result of one quote identifier.
type Record struct {
	ID          int64     `json:"id"`
	Text        string    `json:"text"`
	SourceURL   string    `json:"url"`
	Likes       int64     `json:"likes"`
	PublishedAt time.Time `json:"date"`
}

// FetchStatus classifies a transport response.
type FetchStatus string

// Fetch outcomes reported by a Transport.
const (
	StatusOK         FetchStatus = "ok"
	StatusRedirected FetchStatus = "redirected"
)

// FetchResult is what a Transport yields for one identifier.
type FetchResult struct {
	Status  FetchStatus
	URL     string
	Content []byte
}

// Summary reports the outcome of one harvest run.
//
// Skipped counts gaps plus failed identifiers; Failed isolates the transport,
// extraction and store failures so they can be told apart from true gaps.
type Summary struct {
	Processed int64 `json:"processed"`
	Skipped   int64 `json:"skipped"`
	Failed    int64 `json:"failed"`
	FinalToID int64 `json:"final_to_id"`
}

// Gaps returns the number of identifiers confirmed not to exist.
func (s Summary) Gaps() int64 {
	return s.Skipped - s.Failed
}
