package domain

import "sort"

// Valve is one irrigation valve as served by GET /valves.
type Valve struct {
	Alias      string `json:"alias"`
	Disabled   bool   `json:"disabled"`
	State      bool   `json:"state"`
	Identifier int    `json:"identifier"`
	Timer      string `json:"timer"`
}

// ValveList is the JSON envelope of GET /valves.
type ValveList struct {
	Items []Valve `json:"items"`
}

// SortValves orders valves by identifier.
func SortValves(v []Valve) {
	sort.Slice(v, func(i, j int) bool { return v[i].Identifier < v[j].Identifier })
}
