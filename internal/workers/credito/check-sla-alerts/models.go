// internal/workers/credito/check-sla-alerts/models.go
package checkslaalerts

type Input struct {
	Limit int `json:"limit,omitempty"`
}

type Output struct {
	Revisadas   int      `json:"revisadas"`
	Vencidas    []string `json:"vencidas"`
	Notificadas int      `json:"notificadas"`
	Fallidas    []string `json:"fallidas"`
}
