package ports

import (
	"context"

	"github.com/polywhaler/polywhaler/internal/domain"
)

// CandidateProvider obtiene los candidatos graduados del scoring service.
type CandidateProvider interface {
	// FetchCandidates devuelve los candidatos rankeados del ciclo junto
	// con los contadores de diagnóstico del feed.
	FetchCandidates(ctx context.Context) ([]domain.Candidate, domain.CandidateDebug, error)
}

// PickNotifier reporta al scoring service las apuestas colocadas.
type PickNotifier interface {
	// NotifyPick envía la metadata del pick. El caller trata cualquier
	// error como no fatal.
	NotifyPick(ctx context.Context, pick domain.Pick) error
}
