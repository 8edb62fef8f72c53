// internal/domain/user/entity.go
package user

import (
	"database/sql"
	"time"
)

type UserType string

const (
	TypeComum          UserType = "comum"
	TypeAdministrativo UserType = "administrativo"
)

type User struct {
	ID                int64          `json:"id"`
	Nome              string         `json:"nome"`
	Email             string         `json:"email"`
	SenhaHash         string         `json:"-"`
	TipoUsuario       UserType       `json:"tipo_usuario"`
	JaFezCompra       bool           `json:"ja_fez_compra"`
	VinculoAssinatura sql.NullInt64  `json:"id_vinculo_assinatura,omitempty"`
	StripeCustomerID  sql.NullString `json:"-"`
	CreatedAt         time.Time      `json:"created_at"`
}

// IsAdmin reports whether the user has administrative privileges.
func (u *User) IsAdmin() bool {
	return u.TipoUsuario == TypeAdministrativo
}
