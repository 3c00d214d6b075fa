package core

// ErrorResponse is the JSON body of every failed /api request.
type ErrorResponse struct {
	Error string `json:"error"`
}

const (
	contentTypeJSON = "application/json; charset=utf-8"
	contentTypeHTML = "text/html; charset=utf-8"
	contentTypeCSS  = "text/css; charset=utf-8"

	// styleCacheControl lets clients keep the stylesheet for a day.
	styleCacheControl = "public, max-age=86400"

	// noStoreCacheControl forces every /api hit back to the server so a new
	// image is drawn even when the file name repeats.
	noStoreCacheControl = "no-cache, no-store, must-revalidate"

	genericAPIErrorMessage   = "An unknown internal server error occurred."
	genericIndexErrorMessage = "Error fetching data for index page."
)
