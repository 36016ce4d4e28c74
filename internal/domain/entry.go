package domain

// Entry is one item of a directory listing as answered by FETCH;path;true.
type Entry struct {
	IsDirectory bool   `json:"isDirectory"`
	Size        int64  `json:"size"`
	Name        string `json:"name"`
}

// BaseName returns the entry name without its leading directory.
func (e Entry) BaseName() string {
	return BaseName(e.Name)
}

// Listing is the JSON envelope of a directory listing.
type Listing struct {
	Items []Entry `json:"items"`
}
