package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "goimovel_http_requests_total",
			Help: "Total de requisições HTTP por rota, método e status",
		},
		[]string{"route", "method", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "goimovel_http_request_duration_seconds",
			Help:    "Duração das requisições HTTP",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	ListingsSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "goimovel_listings_submitted_total",
			Help: "Anúncios criados com sucesso",
		},
		[]string{"kind", "role"},
	)

	QuotaRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "goimovel_quota_exceeded_total",
			Help: "Tentativas de criação recusadas por limite de anúncios",
		},
		[]string{"kind", "role"},
	)

	ModerationDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "goimovel_moderation_decisions_total",
			Help: "Transições de moderação aplicadas",
		},
		[]string{"kind", "action"},
	)

	QuotaDriftCorrected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "goimovel_quota_drift_corrected_total",
			Help: "Contadores de limite corrigidos pela reconciliação",
		},
	)

	RateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "goimovel_rate_limited_total",
			Help: "Requisições recusadas pelo rate limiter",
		},
	)
)
