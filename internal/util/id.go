package util

import (
	"crypto/rand"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// Generate 生成指定长度的随机字母数字串
func Generate(n int) string {
	var sb strings.Builder
	sb.Grow(n)
	max := big.NewInt(int64(len(alphabet)))
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand 不可用时退回 uuid 字符
			return strings.ReplaceAll(uuid.NewString(), "-", "")[:n]
		}
		sb.WriteByte(alphabet[idx.Int64()])
	}
	return sb.String()
}

// Secret 生成去掉连字符的 uuid，用作访问密钥
func Secret() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
