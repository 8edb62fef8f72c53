package credit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"compatlab-service/internal/domain/user"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubBalanceService struct {
	adjusted *user.AdjustBalanceInput
	saldo    int
}

func (s *stubBalanceService) BalanceOf(ctx context.Context, userID int64) (int, *user.User, error) {
	return s.saldo, &user.User{ID: userID}, nil
}

func (s *stubBalanceService) Adjust(ctx context.Context, operatorID int64, in *user.AdjustBalanceInput) (int, error) {
	s.adjusted = in
	return s.saldo, nil
}

func adjustRequest(t *testing.T, caller *user.User, body string) (*httptest.ResponseRecorder, *stubBalanceService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svc := &stubBalanceService{saldo: 42}
	h := NewCreditHandler(svc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPatch, "/usuarios/saldo", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	if caller != nil {
		c.Set("current_user", caller)
	}

	h.AdjustBalance(c)
	return w, svc
}

func TestAdjustBalancePermissions(t *testing.T) {
	comum := &user.User{ID: 7, TipoUsuario: user.TypeComum}
	admin := &user.User{ID: 1, TipoUsuario: user.TypeAdministrativo}

	tests := []struct {
		name       string
		caller     *user.User
		body       string
		wantStatus int
		wantCall   bool
	}{
		{
			name:       "common user adds to own balance",
			caller:     comum,
			body:       `{"operacao":"add","quantidade":5}`,
			wantStatus: http.StatusOK,
			wantCall:   true,
		},
		{
			name:       "common user subtracts from own balance",
			caller:     comum,
			body:       `{"operacao":"subtract","quantidade":5,"id_usuario":7}`,
			wantStatus: http.StatusOK,
			wantCall:   true,
		},
		{
			name:       "common user cannot set",
			caller:     comum,
			body:       `{"operacao":"set","quantidade":5}`,
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "common user cannot touch another balance",
			caller:     comum,
			body:       `{"operacao":"add","quantidade":5,"id_usuario":8}`,
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "admin sets another balance",
			caller:     admin,
			body:       `{"operacao":"set","quantidade":5,"id_usuario":8}`,
			wantStatus: http.StatusOK,
			wantCall:   true,
		},
		{
			name:       "missing caller",
			caller:     nil,
			body:       `{"operacao":"add","quantidade":5}`,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "malformed body",
			caller:     comum,
			body:       `{"quantidade":5}`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, svc := adjustRequest(t, tt.caller, tt.body)
			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantCall {
				require.NotNil(t, svc.adjusted)
			} else {
				assert.Nil(t, svc.adjusted)
			}
		})
	}
}
