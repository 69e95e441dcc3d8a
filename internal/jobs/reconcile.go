package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"goimovel/internal/domain"
	"goimovel/internal/pkg/logger"
	"goimovel/internal/pkg/metrics"
)

// QuotaReconciler é o pedaço do repositório de anúncios usado pela reconciliação.
type QuotaReconciler interface {
	ReconcileQuotas(ctx context.Context) ([]domain.QuotaDrift, error)
}

// Scheduler agenda a reconciliação periódica dos contadores de limite.
type Scheduler struct {
	cron    *cron.Cron
	repo    QuotaReconciler
	timeout time.Duration
	logger  logger.Logger
}

// NewScheduler cria o agendador (UTC, precisão de segundos) e registra o job.
func NewScheduler(spec string, repo QuotaReconciler, timeout time.Duration, log logger.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:    cron.New(cron.WithLocation(time.UTC), cron.WithSeconds()),
		repo:    repo,
		timeout: timeout,
		logger:  log,
	}
	if _, err := s.cron.AddFunc(spec, s.ReconcileQuotas); err != nil {
		return nil, err
	}
	return s, nil
}

// ReconcileQuotas recalcula os contadores a partir da contagem real de anúncios.
func (s *Scheduler) ReconcileQuotas() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	drifts, err := s.repo.ReconcileQuotas(ctx)
	if err != nil {
		s.logger.Error("Falha na reconciliação dos contadores.", err)
		return
	}
	for _, d := range drifts {
		s.logger.Warn("Contador de anúncios corrigido.", map[string]interface{}{
			"user_id": d.UserID,
			"kind":    d.Kind,
			"cached":  d.Cached,
			"actual":  d.Actual,
		})
	}
	metrics.QuotaDriftCorrected.Add(float64(len(drifts)))
	s.logger.Info("Reconciliação concluída.", map[string]interface{}{"corrected": len(drifts)})
}

// Start inicia o agendador em background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop para o agendador e espera o job em execução terminar.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
