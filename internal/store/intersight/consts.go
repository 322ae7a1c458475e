package intersight

const (
	// response header carrying the id that correlates a request with the server logs
	traceIDHeader = "X-Starship-Traceid"

	// list responses carry their matches in this field
	resultsField = "Results"

	contentTypeJSON = "application/json"
)
