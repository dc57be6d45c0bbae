package models

type ShortenRequest struct {
	URL string `json:"url" validate:"required,url"`
}

type ShortenResponse struct {
	Alias string `json:"alias"`
}

type ErrorResponse struct {
	Error      string `json:"error"`
	RetryAfter int64  `json:"retry_after,omitempty"`
}

type DailyClicks struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

type AliasReport struct {
	Alias       string        `json:"alias"`
	OriginalURL string        `json:"original_url"`
	TotalClicks int64         `json:"total_clicks"`
	DailyClicks []DailyClicks `json:"daily_clicks"`
}

type AnalyticsResponse struct {
	URLs []AliasReport `json:"urls"`
}

type HealthResponse struct {
	Status       string            `json:"status"`
	Dependencies map[string]string `json:"dependencies"`
}
