package reddit

// Listing represents the Reddit listing response structure.
type Listing struct {
	Kind string      `json:"kind"`
	Data ListingData `json:"data"`
}

type ListingData struct {
	After    *string `json:"after"`
	Children []Thing `json:"children"`
}

type Thing struct {
	Kind string `json:"kind"`
	Data Post   `json:"data"`
}

type Post struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	URL       string `json:"url"`
	Permalink string `json:"permalink"`
	PostHint  string `json:"post_hint"`
	Score     int    `json:"score"`
	Over18    bool   `json:"over_18"`
	IsVideo   bool   `json:"is_video"`
}
