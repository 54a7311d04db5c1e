package auth

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"rh-portal-be/internal/models"
)

// roleAliases maps every spelling issued by the portal's identity records
// onto the two sides of a conversation. Anything else is rejected.
var roleAliases = map[string]models.Role{
	"admin":         models.RoleAdmin,
	"administrador": models.RoleAdmin,
	"administrator": models.RoleAdmin,
	"adm":           models.RoleAdmin,
	"superadmin":    models.RoleAdmin,
	"super_admin":   models.RoleAdmin,
	"rh":            models.RoleAdmin,
	"hr":            models.RoleAdmin,

	"colab":         models.RoleColab,
	"colaborador":   models.RoleColab,
	"colaboradora":  models.RoleColab,
	"employee":      models.RoleColab,
	"funcionario":   models.RoleColab,
	"funcionário":   models.RoleColab,
	"user":          models.RoleColab,
	"usuario":       models.RoleColab,
	"usuário":       models.RoleColab,
}

// NormalizeRole resolves a raw role claim. Case, surrounding blanks and
// hyphens are ignored ("Super-Admin" == "super_admin").
func NormalizeRole(raw string) (models.Role, bool) {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.ReplaceAll(key, "-", "_")
	role, ok := roleAliases[key]
	return role, ok
}

// UserID accepts the user_id claim as a JSON number or a numeric string.
type UserID uint

func (u *UserID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*u = 0
		return nil
	}

	var raw string
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
	} else {
		raw = string(data)
	}

	n, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return fmt.Errorf("user_id: %w", err)
	}
	*u = UserID(n)
	return nil
}
