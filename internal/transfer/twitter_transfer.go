package transfer

type TwitterCreateRequest struct {
	Text string `json:"text"`
}

type TwitterCreateResponse struct {
	Data CreatedPost `json:"data"`
}

type CreatedPost struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type TwitterErrorResponse struct {
	Title  string              `json:"title"`
	Detail string              `json:"detail"`
	Status int                 `json:"status"`
	Errors []TwitterErrorEntry `json:"errors"`
}

type TwitterErrorEntry struct {
	Message string `json:"message"`
}

// Message picks the most descriptive text the API returned.
func (e *TwitterErrorResponse) Message() string {
	switch {
	case e.Detail != "":
		return e.Detail
	case len(e.Errors) > 0 && e.Errors[0].Message != "":
		return e.Errors[0].Message
	default:
		return e.Title
	}
}
