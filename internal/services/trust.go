package services

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/bionicotaku/lingo-services-ingestion/internal/models/po"
)

// checksumHexLength 为 MD5 摘要的十六进制长度。
const checksumHexLength = 32

// ValidateDeclaredChecksum 校验预约阶段的摘要声明是否与信任协议匹配：
// Mode A 必须携带 32 位小写 hex 摘要，Mode B 禁止携带任何声明。
func ValidateDeclaredChecksum(mode po.TrustMode, declared *string) error {
	switch mode {
	case po.TrustModeA:
		if declared == nil || *declared == "" {
			return ValidationError("checksum_required", "mode A reservation requires declared_checksum")
		}
		if !isLowerHex32(*declared) {
			return ValidationError("checksum_format", "declared_checksum must be 32 lowercase hex characters")
		}
	case po.TrustModeB:
		if declared != nil && *declared != "" {
			return ValidationError("checksum_forbidden", "mode B reservation must not declare a checksum")
		}
	default:
		return ValidationError("trust_mode", fmt.Sprintf("unknown trust mode: %s", string(mode)))
	}
	return nil
}

// ResolveVerifiedChecksum 在 finalize 阶段裁决最终采信的摘要。
// Mode A 比对声明值与实测值，不一致返回 IntegrityMismatchError；
// Mode B 直接采信实测值。
func ResolveVerifiedChecksum(mode po.TrustMode, declared *string, computed string) (string, error) {
	if !isLowerHex32(computed) {
		return "", StorageError("object digest unavailable or malformed", fmt.Errorf("computed digest %q", computed))
	}
	switch mode {
	case po.TrustModeA:
		if declared == nil || *declared == "" {
			return "", ValidationError("checksum_required", "mode A entry has no declared checksum")
		}
		if *declared != computed {
			return "", IntegrityMismatchError(fmt.Sprintf("declared checksum %s does not match stored object %s", *declared, computed))
		}
		return computed, nil
	case po.TrustModeB:
		return computed, nil
	default:
		return "", ValidationError("trust_mode", fmt.Sprintf("unknown trust mode: %s", string(mode)))
	}
}

// NormalizeDigest 将存储侧返回的 base64 MD5 规整为小写 hex。
// 存储属性里的摘要是 base64 编码，比对前统一为 hex。
func NormalizeDigest(md5Base64 string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(md5Base64)
	if err != nil {
		return "", fmt.Errorf("decode object md5: %w", err)
	}
	if len(raw) != 16 {
		return "", fmt.Errorf("object md5 has unexpected length %d", len(raw))
	}
	return hex.EncodeToString(raw), nil
}

func isLowerHex32(s string) bool {
	if len(s) != checksumHexLength {
		return false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		default:
			return false
		}
	}
	return true
}

// NormalizeChecksumInput 去除声明摘要两端空白并统一为小写。
// 大写 hex 属常见客户端差异，入库前归一。
func NormalizeChecksumInput(declared *string) *string {
	if declared == nil {
		return nil
	}
	v := strings.ToLower(strings.TrimSpace(*declared))
	if v == "" {
		return nil
	}
	return &v
}
