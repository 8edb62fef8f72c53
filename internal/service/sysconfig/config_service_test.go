package sysconfig

import (
	"context"
	"testing"

	"compatlab-service/internal/domain/sysconfig"
	xerrors "compatlab-service/internal/pkg/errors"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestCreateRejectsNonPositivePrice(t *testing.T) {
	svc := NewConfigService(nil, nil, zap.NewNop())

	_, err := svc.Create(context.Background(), &sysconfig.CreateInput{PrecoDoCredito: 0})
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)

	_, err = svc.Create(context.Background(), &sysconfig.CreateInput{PrecoDoCredito: -2})
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
}
