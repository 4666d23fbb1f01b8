package model

// Route is a stored price path and its activation flag.
type Route struct {
	Index  int      `json:"index"`
	Path   []string `json:"path"`
	Active bool     `json:"active"`
}
