package models

// ResultPage is one page of documents returned by a session call.
type ResultPage struct {
	Items     []*Document `json:"items"`
	Page      int         `json:"page"`
	Exhausted bool        `json:"exhausted"`
	// Total is the number of results accumulated by the session so far.
	Total int `json:"total"`
}
