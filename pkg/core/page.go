package core

// ContentType classifies a page for the content-type search filters.
type ContentType string

const (
	ContentTypePage  ContentType = "page"
	ContentTypePDF   ContentType = "pdf"
	ContentTypeVideo ContentType = "video"
	ContentTypeTweet ContentType = "tweet"
	ContentTypeEvent ContentType = "event"
)

// Page is a stored web page. URL is the normalized form produced by
// NormalizeURL and doubles as the page identifier everywhere.
type Page struct {
	URL         string      `json:"url"`
	FullURL     string      `json:"full_url"`
	FullPDFURL  string      `json:"full_pdf_url,omitempty"`
	Title       string      `json:"title"`
	Domain      string      `json:"domain"`
	Hostname    string      `json:"hostname"`
	ContentType ContentType `json:"content_type"`
	FavIcon     string      `json:"fav_icon,omitempty"`
	Text        string      `json:"text,omitempty"`
}

// NewPage builds a Page from a raw URL, deriving the normalized id, domain,
// hostname and content type.
func NewPage(rawURL, title string) (Page, error) {
	normalized, err := NormalizeURL(rawURL)
	if err != nil {
		return Page{}, err
	}
	hostname := Hostname(normalized)
	return Page{
		URL:         normalized,
		FullURL:     rawURL,
		Title:       title,
		Domain:      Domain(hostname),
		Hostname:    hostname,
		ContentType: DetectContentType(rawURL),
	}, nil
}

// Visit records a page being opened. Time is in milliseconds since the epoch.
type Visit struct {
	PageURL string `json:"page_url"`
	Time    int64  `json:"time"`
}

// Bookmark marks a page as saved. A page has at most one bookmark.
type Bookmark struct {
	PageURL string `json:"page_url"`
	Time    int64  `json:"time"`
}

// List is a user collection of pages, ordered in the sidebar by OrderKey.
type List struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	OrderKey  int64  `json:"order_key"`
	CreatedAt int64  `json:"created_at"`
}

// SearchResultPage is one page in a search response. It is built per
// response and never stored.
type SearchResultPage struct {
	URL                   string       `json:"url"`
	FullURL               string       `json:"full_url,omitempty"`
	FullPDFURL            string       `json:"full_pdf_url,omitempty"`
	Title                 string       `json:"title,omitempty"`
	FavIcon               string       `json:"fav_icon,omitempty"`
	DisplayTime           int64        `json:"display_time"`
	Lists                 []int64      `json:"lists"`
	Text                  string       `json:"text,omitempty"`
	TotalAnnotationsCount int          `json:"total_annotations_count"`
	Annotations           []Annotation `json:"annotations"`
}
