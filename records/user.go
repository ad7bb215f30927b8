package records

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is the shortest password a user may set.
const MinPasswordLength = 6

// HashCost is the bcrypt cost used when hashing passwords.
var HashCost = bcrypt.DefaultCost

// User is a member account.
type User struct {
	Meta
	Name     string `dynamodbav:"name" json:"name"`
	Username string `dynamodbav:"username,omitempty" json:"username,omitempty"`
	Email    string `dynamodbav:"email" json:"email"`
	Phone    string `dynamodbav:"phone,omitempty" json:"phone,omitempty"`
	Website  string `dynamodbav:"website,omitempty" json:"website,omitempty"`
	Photo    string `dynamodbav:"photo,omitempty" json:"photo,omitempty"`
	Password string `dynamodbav:"password,omitempty" json:"-"`

	// plain is set while Password holds a value that has not been hashed.
	plain bool
}

func (*User) TableName() string         { return string(Users) }
func (u *User) EntityRef() string       { return "user#" + u.ID }
func (*User) EntityType() string        { return "user" }
func (*User) Collection() Collection    { return Users }
func (*User) ProtectedFields() []string { return []string{"password"} }

// UniqueFields makes emails unique across users, ignoring case.
func (u *User) UniqueFields() map[string]string {
	return map[string]string{"email": strings.ToLower(u.Email)}
}

// SetPassword stages a new plaintext password. It is hashed by BeforeSave.
func (u *User) SetPassword(password string) {
	u.Password = password
	u.plain = true
}

// BeforeSave normalizes the email and hashes a staged password.
func (u *User) BeforeSave() error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if !u.plain {
		return nil
	}
	if len(u.Password) < MinPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrValidation, MinPasswordLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), HashCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	u.Password = string(hash)
	u.plain = false
	return nil
}

// MatchPassword reports whether password matches the stored hash.
func (u *User) MatchPassword(password string) bool {
	if u.Password == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)) == nil
}

func (u *User) Validate() error {
	if err := required("name", u.Name); err != nil {
		return err
	}
	if err := required("email", u.Email); err != nil {
		return err
	}
	if at := strings.Index(u.Email, "@"); at < 1 || at == len(u.Email)-1 {
		return fmt.Errorf("%w: email %q is not valid", ErrValidation, u.Email)
	}
	return required("password", u.Password)
}

func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: %s is required", ErrValidation, field)
	}
	return nil
}
