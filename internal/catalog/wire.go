package catalog

// Wire schema of one catalog page. Only title, url, and type are guaranteed
// per item; every other field defaults at this boundary (empty string, false,
// or nil) so absence never leaks into the aggregation logic.

type catalogPage struct {
	Lineups lineupResults `json:"lineups"`
}

type lineupResults struct {
	Results []lineup `json:"results"`
}

type lineup struct {
	Title string       `json:"title"`
	Items []lineupItem `json:"items"`
}

type lineupItem struct {
	Title        string  `json:"title"`
	Key          string  `json:"key"`
	Description  string  `json:"description"`
	URL          string  `json:"url"`
	Images       *images `json:"images"`
	AirDate      string  `json:"air_date"`
	AirDateAlt   string  `json:"airDate"` // some feed versions camel-case it
	Type         string  `json:"type"`
	Tier         string  `json:"tier"`
	IsVodEnabled bool    `json:"isVodEnabled"`
	IDMedia      *int64  `json:"idMedia"`
}

type images struct {
	Card       *image `json:"card"`
	Background *image `json:"background"`
}

type image struct {
	URL string `json:"url"`
}

// identityKey prefers the numeric media id over the slug key.
func (it lineupItem) identityKey() string {
	if it.IDMedia != nil {
		return formatMediaID(*it.IDMedia)
	}
	return it.Key
}

// thumbnail prefers the card image, falls back to background, else empty.
func (it lineupItem) thumbnail() string {
	if it.Images == nil {
		return ""
	}
	if it.Images.Card != nil {
		return it.Images.Card.URL
	}
	if it.Images.Background != nil {
		return it.Images.Background.URL
	}
	return ""
}

// airDate prefers the primary field over the camel-cased alternate.
func (it lineupItem) airDate() string {
	if it.AirDate != "" {
		return it.AirDate
	}
	return it.AirDateAlt
}
