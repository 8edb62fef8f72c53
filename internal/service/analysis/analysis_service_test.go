package analysis

import (
	"context"
	"testing"

	"compatlab-service/internal/domain/analysis"
	xerrors "compatlab-service/internal/pkg/errors"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestRequestStatusValid(t *testing.T) {
	assert.True(t, analysis.StatusEmAndamento.Valid())
	assert.True(t, analysis.StatusFinalizado.Valid())

	for _, s := range []analysis.RequestStatus{"", "cancelada", "pendente", "EM_ANDAMENTO"} {
		assert.False(t, s.Valid(), string(s))
	}
}

func TestSetStatusRejectsUnknownToken(t *testing.T) {
	svc := &AnalysisService{logger: zap.NewNop()}

	_, err := svc.SetStatus(context.Background(), 1, "pendente")
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
}
