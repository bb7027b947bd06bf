package auth

import "golang.org/x/crypto/bcrypt"

// HashPassword produces the operator hash stored in
// AUTH_OPERATOR_PASSWORD_HASH. `docchat hash-password` prints its output.
func HashPassword(password string, cost int) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// ComparePassword checks an operator login attempt against the configured
// hash. A nil error means the password matches.
func ComparePassword(hashed, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
}
