package deid

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/google/uuid"
)

// DeriveKey 从原始患者标识派生稳定假名键：SHA-256(raw+salt) 截取前 32 个十六进制字符。
// 单向、确定：相同输入恒得相同输出，支持按键 upsert 而不回传原始标识。
func DeriveKey(rawIdentifier, salt string) string {
	sum := sha256.Sum256([]byte(rawIdentifier + salt))
	return hex.EncodeToString(sum[:])[:32]
}

// RandomSourceID 入站事件缺少患者标识时的替代标识。
// 必须是新鲜随机值：派生键不能与该患者未来任何真实标识的哈希发生关联。
func RandomSourceID() string {
	return "anonymous-" + uuid.New().String()
}
