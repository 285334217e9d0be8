package domain

// Candidate is a ranked item fetched from a content source.
type Candidate struct {
	SourceID   string // identifies the source (e.g., "reddit", "feed")
	ExternalID string
	Title      string
	URL        string
	Permalink  string
	Score      int
	Flagged    bool
}

// Asset is a media file downloaded into local storage.
type Asset struct {
	Name      string
	Path      string
	SourceURL string
	Size      int64
}
