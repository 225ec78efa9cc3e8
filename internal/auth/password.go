package auth

import "golang.org/x/crypto/bcrypt"

// HashPassword hashes a plaintext password with the configured bcrypt
// cost. A cost outside bcrypt's supported range falls back to the
// library default instead of surfacing a misconfiguration as a
// registration error.
func HashPassword(password string, cost int) (string, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// ComparePassword verifies a password against its hashed value.
func ComparePassword(hashed, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
}
