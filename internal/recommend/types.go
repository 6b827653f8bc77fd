package recommend

// Recommendations is the result of a lookup for one file.
type Recommendations struct {
	Query string   `json:"query"`
	URLs  []string `json:"urls"`
}

// searchResponse is the envelope returned by the content search API.
type searchResponse struct {
	Response struct {
		Status  string         `json:"status"`
		Total   int            `json:"total"`
		Results []searchResult `json:"results"`
	} `json:"response"`
}

type searchResult struct {
	ID     string `json:"id"`
	WebURL string `json:"webUrl"`
	Fields struct {
		Headline string `json:"headline"`
	} `json:"fields"`
}
