package domain

// ErrorResponse é o corpo de erro de todas as rotas.
// Category é estável (ex: QUOTA_EXCEEDED, INVALID_TRANSITION) e serve para o cliente decidir o fluxo.
// @Description Corpo padronizado de erro: código HTTP, categoria estável e mensagem legível.
type ErrorResponse struct {
	Code     int    `json:"code" example:"400"`
	Category string `json:"category" example:"INVALID_INPUT"`
	Message  string `json:"message" example:"O título deve ter entre 3 e 200 caracteres."`
}
