package registry

import (
	"strings"

	"wildcard-party-be/internal/service/game"
)

// 去掉了容易混淆的 I、L、O、0、1
const (
	CODE_ALPHABET = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
	CODE_LENGTH   = 5
)

func NewCode(rnd *game.Random) string {
	var sb strings.Builder
	sb.Grow(CODE_LENGTH)

	for range CODE_LENGTH {
		sb.WriteByte(CODE_ALPHABET[rnd.IntN(len(CODE_ALPHABET))])
	}

	return sb.String()
}

// NormalizeCode strips whitespace and upper-cases user input.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.Join(strings.Fields(code), ""))
}

func ValidCode(code string) bool {
	if len(code) != CODE_LENGTH {
		return false
	}

	for i := 0; i < len(code); i++ {
		if strings.IndexByte(CODE_ALPHABET, code[i]) < 0 {
			return false
		}
	}

	return true
}
