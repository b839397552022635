package dto

type OpenExternalRequest struct {
	URL string `json:"url"`
}
