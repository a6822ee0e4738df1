package tables

import (
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/JonMunkholm/stockdash/internal/core"
)

// MinPasswordLength is the shortest password accepted for a user.
const MinPasswordLength = 8

func userType() core.RecordType {
	return core.RecordType{
		Name:  Users,
		Label: "Utilisateurs",
		Fields: []core.Field{
			idField(),
			{Name: "email", Label: "E-mail", Kind: core.KindString, MaxLength: 100, Unique: true, Normalizer: NormalizeEmail},
			{Name: "first_name", Label: "Pr\u00e9nom", Kind: core.KindString, MaxLength: 100},
			{Name: "last_name", Label: "Nom", Kind: core.KindString, MaxLength: 200},
			{Name: "password", Label: "Mot de passe", Kind: core.KindString, MaxLength: 100, Sensitive: true},
			{Name: "roles", Label: "R\u00f4les", Kind: core.KindJSON, Default: core.DefaultStatic, DefaultValue: json.RawMessage(`[]`)},
			createdAtField(),
		},
		Display: func(rec core.Record, _ core.Refs) string {
			return fmt.Sprintf("%v %v", rec["first_name"], rec["last_name"])
		},
		Prepare: hashPassword,
	}
}

// hashPassword replaces a plain password with its bcrypt hash. Values that
// are already bcrypt hashes pass through.
func hashPassword(rec core.Record) error {
	pw, ok := rec["password"].(string)
	if !ok {
		return nil
	}
	if IsBcryptHash(pw) {
		return nil
	}
	if len([]rune(pw)) < MinPasswordLength {
		return core.ValidationErrors{{
			Field:   "password",
			Message: fmt.Sprintf("must be at least %d characters", MinPasswordLength),
		}}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	rec["password"] = string(hash)
	return nil
}

// IsBcryptHash reports whether s looks like a bcrypt hash.
func IsBcryptHash(s string) bool {
	return len(s) == 60 && (strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$"))
}
