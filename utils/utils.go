package utils

import "golang.org/x/crypto/bcrypt"

const BcryptCost = 14

// HashDeviceKey хэширует ключ устройства (касса, консоль скорера) для
// хранения в конфигурации.
func HashDeviceKey(key string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(key), BcryptCost)
	return string(bytes), err
}

// CheckDeviceKey сверяет предъявленный ключ устройства с хэшем.
func CheckDeviceKey(key, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)) == nil
}
