package response

// Status is a simple status body
type Status struct {
	Status string `json:"status"`
}

// Stats reports relay counters
type Stats struct {
	Players     int `json:"players"`
	Connections int `json:"connections"`
}
