package domain

import (
	"encoding/json"
	"fmt"
	"strings"

	apperror "goimovel/internal/errors"
)

// Status é o estado de moderação de um anúncio.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// ParseStatus converte o segmento de URL da fila de moderação em Status.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusApproved, StatusRejected:
		return Status(s), nil
	}
	return "", apperror.NewValidationError(fmt.Sprintf("Status '%s' desconhecido.", s))
}

// Rating é a nota atribuída pelo administrador na aprovação.
type Rating string

const (
	RatingA     Rating = "A"
	RatingB     Rating = "B"
	RatingBPlus Rating = "B+"
	RatingC     Rating = "C"
	RatingD     Rating = "D"
)

// ParseRating valida a nota contra o conjunto fixo {A, B, B+, C, D}.
func ParseRating(s string) (Rating, error) {
	switch Rating(s) {
	case RatingA, RatingB, RatingBPlus, RatingC, RatingD:
		return Rating(s), nil
	}
	return "", apperror.NewValidationError(fmt.Sprintf("Rating '%s' inválido. Valores aceitos: A, B, B+, C, D.", s))
}

// Lifecycle é o estado de moderação como variante fechada:
// Pending | Approved{rating} | Rejected{reason}.
// Os campos não são exportados; só as transições abaixo produzem novos valores,
// então a aplicação nunca observa uma combinação ilegal. O valor zero é Pending.
type Lifecycle struct {
	status Status
	rating Rating
	reason string
}

// Pending devolve o estado inicial de um anúncio.
func Pending() Lifecycle {
	return Lifecycle{status: StatusPending}
}

// Status devolve o estado corrente.
func (l Lifecycle) Status() Status {
	if l.status == "" {
		return StatusPending
	}
	return l.status
}

// Rating devolve a nota, presente somente em Approved.
func (l Lifecycle) Rating() (Rating, bool) {
	return l.rating, l.Status() == StatusApproved
}

// RejectionReason devolve o motivo, presente somente em Rejected.
func (l Lifecycle) RejectionReason() (string, bool) {
	return l.reason, l.Status() == StatusRejected
}

// Approve aplica Pending → Approved.
func (l Lifecycle) Approve(rating Rating) (Lifecycle, error) {
	if _, err := ParseRating(string(rating)); err != nil {
		return l, err
	}
	if l.Status() != StatusPending {
		return l, apperror.NewInvalidTransitionError(fmt.Sprintf("Somente anúncios pendentes podem ser aprovados (estado atual: %s).", l.Status()))
	}
	return Lifecycle{status: StatusApproved, rating: rating}, nil
}

// Reject aplica Pending → Rejected.
func (l Lifecycle) Reject(reason string) (Lifecycle, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return l, apperror.NewValidationError("O motivo da rejeição não pode ser vazio.")
	}
	if l.Status() != StatusPending {
		return l, apperror.NewInvalidTransitionError(fmt.Sprintf("Somente anúncios pendentes podem ser rejeitados (estado atual: %s).", l.Status()))
	}
	return Lifecycle{status: StatusRejected, reason: reason}, nil
}

// Resubmit aplica Rejected → Pending, limpando motivo e nota.
func (l Lifecycle) Resubmit() (Lifecycle, error) {
	if l.Status() != StatusRejected {
		return l, apperror.NewInvalidTransitionError(fmt.Sprintf("Somente anúncios rejeitados podem ser reenviados (estado atual: %s).", l.Status()))
	}
	return Pending(), nil
}

// --- Fronteira de armazenamento ---

// LifecycleRecord é o formato persistido (dois booleanos + campos anuláveis).
type LifecycleRecord struct {
	Moderated       bool    `json:"moderated"`
	Rejected        bool    `json:"rejected"`
	RejectionReason *string `json:"rejection_reason"`
	PropertyRating  *string `json:"property_rating"`
}

// Record traduz o estado para o formato persistido.
func (l Lifecycle) Record() LifecycleRecord {
	switch l.Status() {
	case StatusApproved:
		rating := string(l.rating)
		return LifecycleRecord{Moderated: true, PropertyRating: &rating}
	case StatusRejected:
		reason := l.reason
		return LifecycleRecord{Rejected: true, RejectionReason: &reason}
	default:
		return LifecycleRecord{}
	}
}

// LifecycleFromRecord reconstrói o estado a partir do formato persistido,
// recusando qualquer combinação que viole os invariantes.
func LifecycleFromRecord(rec LifecycleRecord) (Lifecycle, error) {
	switch {
	case rec.Moderated && rec.Rejected:
		return Lifecycle{}, apperror.NewInternalError("Registro de ciclo de vida inconsistente: moderated e rejected simultâneos.", nil)
	case rec.Moderated:
		if rec.PropertyRating == nil || rec.RejectionReason != nil {
			return Lifecycle{}, apperror.NewInternalError("Registro de ciclo de vida inconsistente: aprovado sem rating.", nil)
		}
		rating, err := ParseRating(*rec.PropertyRating)
		if err != nil {
			return Lifecycle{}, apperror.NewInternalError("Registro de ciclo de vida com rating desconhecido.", err)
		}
		return Lifecycle{status: StatusApproved, rating: rating}, nil
	case rec.Rejected:
		if rec.RejectionReason == nil || strings.TrimSpace(*rec.RejectionReason) == "" || rec.PropertyRating != nil {
			return Lifecycle{}, apperror.NewInternalError("Registro de ciclo de vida inconsistente: rejeitado sem motivo.", nil)
		}
		return Lifecycle{status: StatusRejected, reason: *rec.RejectionReason}, nil
	default:
		if rec.RejectionReason != nil || rec.PropertyRating != nil {
			return Lifecycle{}, apperror.NewInternalError("Registro de ciclo de vida inconsistente: pendente com dados de moderação.", nil)
		}
		return Pending(), nil
	}
}

type lifecycleJSON struct {
	Status Status `json:"status"`
	LifecycleRecord
}

// MarshalJSON expõe o estado e o formato de dois booleanos usado pelos clientes.
func (l Lifecycle) MarshalJSON() ([]byte, error) {
	return json.Marshal(lifecycleJSON{Status: l.Status(), LifecycleRecord: l.Record()})
}

// UnmarshalJSON valida o registro ao decodificar (usado na leitura do cache).
func (l *Lifecycle) UnmarshalJSON(data []byte) error {
	var raw lifecycleJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := LifecycleFromRecord(raw.LifecycleRecord)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}
