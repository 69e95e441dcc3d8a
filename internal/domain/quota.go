package domain

// QuotaCounter é o contador de anúncios de um par (usuário, tipo).
// Count é um valor derivado: deve sempre igualar o número real de anúncios
// não excluídos do usuário para o tipo, em qualquer estado de moderação.
type QuotaCounter struct {
	UserID   string `json:"user_id"`
	Kind     Kind   `json:"kind"`
	Count    int    `json:"count"`
	MaxLimit *int   `json:"maxLimit"` // nil = ilimitado
}

// ListingLimitView é a resposta de GET /users/{id}/listing-limit para um tipo.
type ListingLimitView struct {
	Count    int  `json:"count"`
	MaxLimit *int `json:"maxLimit"`
}

// QuotaDrift descreve um contador corrigido pela reconciliação.
type QuotaDrift struct {
	UserID string `json:"user_id"`
	Kind   Kind   `json:"kind"`
	Cached int    `json:"cached"`
	Actual int    `json:"actual"`
}
