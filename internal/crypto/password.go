package crypto

import "golang.org/x/crypto/bcrypt"

// MinPasswordCost is the floor applied to the configured bcrypt cost.
const MinPasswordCost = 10

func HashPassword(password string, cost int) (string, error) {
	if cost < MinPasswordCost {
		cost = MinPasswordCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func CheckPassword(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}
